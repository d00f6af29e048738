package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundWrapsSentinel(t *testing.T) {
	err := NotFound("account", "acc-123")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "account acc-123", Message(err))
}

func TestMessageKeepsWrappedContext(t *testing.T) {
	err := fmt.Errorf("transfer failed: %w", ErrInsufficientBalance)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, "transfer failed", Message(err))
}

func TestMessageWithoutSentinel(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
