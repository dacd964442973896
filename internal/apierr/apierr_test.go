package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_SetKindAndMessage(t *testing.T) {
	err := NotFound("material %s not found", "abc")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, "material abc not found", err.Message)
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindPayloadTooLarge, cause, "upload too large")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPayloadTooLarge, err.Kind)
}

func TestAs_ExtractsTypedError(t *testing.T) {
	var err error = Conflict("duplicate name")
	got, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindConflict, got.Kind)
}

func TestAs_FalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindTimeout, KindOf(Timeout("slow")))
}

func TestError_FormatsWithAndWithoutCause(t *testing.T) {
	plain := Validation("bad input")
	assert.Equal(t, "validation_error: bad input", plain.Error())

	wrapped := Wrap(KindInternal, errors.New("db down"), "save failed")
	assert.Contains(t, wrapped.Error(), "db down")
	assert.Contains(t, wrapped.Error(), "save failed")
}
