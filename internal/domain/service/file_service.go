package service

import (
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (url, objectName string, err error)
	DeleteFile(ctx context.Context, fileURL string) error
	Close() error
}

// MaxAttachmentSize caps chat attachment uploads at 10 MiB.
const MaxAttachmentSize = 10 << 20

const (
	ScanStatusClean    = "clean"
	ScanStatusRejected = "rejected"
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// ScanAttachment sniffs the real MIME type from content rather than
// trusting the declared one, and checks it against the allow-list.
func ScanAttachment(data []byte) (mimeType string, scanStatus string) {
	detected := mimetype.Detect(data)
	mimeType = detected.String()

	if allowedAttachmentTypes[mimeType] {
		return mimeType, ScanStatusClean
	}
	return mimeType, ScanStatusRejected
}
