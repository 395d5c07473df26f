package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := New(CodeNotFound, "diagram d1 not found")
	assert.Equal(t, "not_found: diagram d1 not found", err.Error())

	wrapped := Wrap(errors.New("disk full"), CodeTransactionFailure, "write diagram")
	assert.Equal(t, "transaction_failure: write diagram: disk full", wrapped.Error())
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := New(CodeUnauthorized, "token rejected")
	err := fmt.Errorf("sync diagram: %w", base)

	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNetworkFailure(err))
	assert.Equal(t, CodeUnauthorized, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestWrap_NilError(t *testing.T) {
	err := Wrap(nil, CodeInvalid, "missing id")
	assert.Nil(t, err.Err)
	assert.Equal(t, CodeInvalid, err.Code)
}

func TestWithMeta(t *testing.T) {
	err := New(CodeSchemaMismatch, "collection missing").WithMeta("collection", "notes")
	assert.Equal(t, "notes", err.Meta["collection"])
	assert.True(t, IsSchemaMismatch(err))
}
