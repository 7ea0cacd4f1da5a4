package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := Wrap(errors.New("bad seed"), ErrValidation.Code, ErrValidation.Status, "invalid request")
	assert.Same(t, wrapped, FromError(wrapped))
	assert.Nil(t, FromError(nil))
}

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrNotFound, "course not found")
	assert.Equal(t, "course not found", clone.Message)
	assert.Equal(t, ErrNotFound.Code, clone.Code)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestHasCode(t *testing.T) {
	clone := Clone(ErrNotDraft, "only drafts can be published")
	assert.True(t, HasCode(clone, ErrNotDraft))
	assert.False(t, HasCode(clone, ErrConflict))
	assert.False(t, HasCode(errors.New("plain"), ErrNotDraft))
	assert.True(t, errors.Is(ErrCacheMiss, ErrCacheMiss))
}

type sectionInput struct {
	Name string `validate:"required"`
}

type courseInput struct {
	Branch   string         `validate:"required"`
	Semester int            `validate:"min=1"`
	Sections []sectionInput `validate:"dive"`
}

func TestInvalidFlattensValidatorFields(t *testing.T) {
	err := validator.New().Struct(courseInput{Sections: []sectionInput{{}}})
	require.Error(t, err)

	appErr := Invalid(err, "invalid course payload")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, map[string]string{
		"branch":           "required",
		"semester":         "min",
		"sections[0].name": "required",
	}, appErr.Fields)
}

func TestInvalidWithoutValidatorErrors(t *testing.T) {
	appErr := Invalid(errors.New("unexpected EOF"), "invalid payload")
	assert.Nil(t, appErr.Fields)
	assert.True(t, HasCode(appErr, ErrValidation))
}
