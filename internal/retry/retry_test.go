package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), []time.Duration{time.Millisecond, time.Millisecond}, func(attempt int) error {
		attempts++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	err := Do(context.Background(), []time.Duration{time.Millisecond}, func(attempt int) error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestDoAbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, []time.Duration{time.Second}, func(attempt int) error {
		return errors.New("retryable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
