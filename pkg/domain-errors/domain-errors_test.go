package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeConflict, "duplicate active consent")
	require.Error(t, err)
	assert.Equal(t, "duplicate active consent", err.Error())
	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))
}

func TestWrap_PreservesDomainCode(t *testing.T) {
	inner := New(CodeNotFound, "consent not found")
	wrapped := Wrap(inner, CodeInternal, "failed to load consent")

	assert.True(t, HasCode(wrapped, CodeNotFound), "original domain code must survive wrapping")
	assert.Equal(t, "failed to load consent", wrapped.Error())
	assert.True(t, errors.Is(wrapped, inner))
}

func TestWrap_PlainError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	wrapped := Wrap(inner, CodeInternal, "store unavailable")

	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.ErrorIs(t, wrapped, inner)
}

func TestHasCode_NonDomainError(t *testing.T) {
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestError_MessageFallsBackToCode(t *testing.T) {
	err := &Error{Code: CodeInvalidState}
	assert.Equal(t, string(CodeInvalidState), err.Error())
}
