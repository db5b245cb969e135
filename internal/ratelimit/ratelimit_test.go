package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTakeWithinBurst(t *testing.T) {
	b := NewBucket(10, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, b.Take(ctx))
	}
	// 5 tokens fit inside the initial allowance; no meaningful blocking.
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestTakeHonorsContextCancel(t *testing.T) {
	b := NewBucket(1, 0)
	b.Penalize(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, b.Take(ctx))
}

func TestPenalizeOpensCooldown(t *testing.T) {
	b := NewBucket(100, 0)
	ctx := context.Background()

	assert.True(t, b.Take(ctx))
	b.Penalize(150 * time.Millisecond)

	start := time.Now()
	assert.True(t, b.Take(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPenalizeKeepsLongestCooldown(t *testing.T) {
	b := NewBucket(100, 0)
	b.Penalize(200 * time.Millisecond)
	b.Penalize(10 * time.Millisecond)

	start := time.Now()
	assert.True(t, b.Take(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
