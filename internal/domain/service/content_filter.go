package service

import (
	"regexp"
	"strings"
)

// ContentRule is one named detection category. Adding a category means
// appending a rule, not branching logic.
type ContentRule struct {
	Name    string
	Pattern *regexp.Regexp
}

type ScanResult struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
}

var defaultContentRules = []ContentRule{
	{
		// Digit groups of 3-4 separated by spaces, dots or hyphens, with
		// optional country code and parenthesized area code, or a bare
		// run of 10+ digits.
		Name:    "phone",
		Pattern: regexp.MustCompile(`(\+?\d{1,3}[\s.\-]?)?(\(\d{2,4}\)[\s.\-]?)?\d{3,4}[\s.\-]\d{3,4}([\s.\-]\d{3,4})?|\d{10,}`),
	},
	{
		Name:    "email",
		Pattern: regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`),
	},
	{
		Name:    "url",
		Pattern: regexp.MustCompile(`(?i)(https?://|www\.)[a-z0-9][a-z0-9\-._]*\.[a-z]{2,}(/[^\s]*)?`),
	},
	{
		Name:    "social_handle",
		Pattern: regexp.MustCompile(`(?i)@[a-z0-9_][a-z0-9_.]{2,}|\b(snapchat|instagram|insta|ig|whatsapp|telegram|facebook|fb)\b\s*:?\s*\S*|\bx\.com/\S+`),
	},
}

var riskyPhrases = []string{
	"call me",
	"text me",
	"dm me",
	"pm me",
	"whatsapp me",
	"message me on",
	"add me on",
	"find me on",
	"reach me at",
	"hit me up on",
	"send your number",
	"give me your number",
	"your phone number",
	"my number is",
	"contact me outside",
	"off the app",
	"off this app",
	"take this offline",
}

// ContentFilterService flags message text that tries to move a
// conversation off-platform. Pure and deterministic; it never errors.
type ContentFilterService struct {
	rules   []ContentRule
	phrases []string
}

func NewContentFilterService() *ContentFilterService {
	return &ContentFilterService{
		rules:   defaultContentRules,
		phrases: riskyPhrases,
	}
}

// Scan checks text against every rule and the risky-phrase list. A message
// matching multiple categories is still flagged once; Categories lists
// every match for logging.
func (s *ContentFilterService) Scan(text string) ScanResult {
	result := ScanResult{}
	if text == "" {
		return result
	}

	for _, rule := range s.rules {
		if rule.Pattern.MatchString(text) {
			result.Flagged = true
			result.Categories = append(result.Categories, rule.Name)
		}
	}

	lowered := strings.ToLower(text)
	for _, phrase := range s.phrases {
		if strings.Contains(lowered, phrase) {
			result.Flagged = true
			result.Categories = append(result.Categories, "risky_phrase")
			break
		}
	}

	return result
}

// ContainsSensitiveInfo is the boolean contract most callers need.
func (s *ContentFilterService) ContainsSensitiveInfo(text string) bool {
	return s.Scan(text).Flagged
}
