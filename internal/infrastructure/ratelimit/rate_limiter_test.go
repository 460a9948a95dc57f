package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	bucket := NewTokenBucket(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := bucket.Allow()
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, waitTime := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, waitTime, time.Duration(0))
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)

	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(15 * time.Millisecond)

	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesUsersAndActions(t *testing.T) {
	limiter := NewRateLimiter()

	// Drain one user's send_message budget.
	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("user-1", "send_message")
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow("user-1", "send_message")
	assert.False(t, allowed)

	// A different user is unaffected.
	allowed, _ = limiter.Allow("user-2", "send_message")
	assert.True(t, allowed)

	// So is the same user on another action.
	allowed, _ = limiter.Allow("user-1", "typing")
	assert.True(t, allowed)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter()

	limiter.Allow("user-1", "send_message")
	assert.Len(t, limiter.buckets, 1)

	// Fresh buckets survive cleanup.
	limiter.Cleanup()
	assert.Len(t, limiter.buckets, 1)

	limiter.buckets["user-1:send_message"].lastRefill = time.Now().Add(-2 * time.Hour)
	limiter.Cleanup()
	assert.Len(t, limiter.buckets, 0)
}
