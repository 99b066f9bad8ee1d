package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	err := Invalid("invalid table name: %s", "1abc")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "invalid table name: 1abc", err.Error())

	wrapped := fmt.Errorf("create row: %w", err)
	assert.True(t, IsValidation(wrapped))

	assert.False(t, IsValidation(ErrNotFound))
	assert.False(t, IsValidation(errors.New("boom")))
}
