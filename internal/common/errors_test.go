package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindSignature, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindForbidden, http.StatusForbidden},
		{KindTransient, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.kind), tt.kind.String())
	}
}

func TestKindOf_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewNotFoundError("Debt"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
}

func TestKindOf_UntaggedIsTransient(t *testing.T) {
	assert.Equal(t, KindTransient, KindOf(errors.New("connection reset")))
	assert.False(t, IsKind(nil, KindTransient))
}

func TestTransientErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransientError("record payment", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to record payment")
}
