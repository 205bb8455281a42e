package utils

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Title       string   `json:"title" validate:"required,notblank,max=10"`
	Description string   `json:"description" validate:"required,notblank,min=10"`
	Latitude    *float64 `json:"latitude" validate:"required"`
}

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, ConfigureValidator(v))
	return v
}

func TestValidationErrors_FieldMessages(t *testing.T) {
	v := newTestValidator(t)

	err := v.Struct(samplePayload{Title: strings.Repeat("x", 11), Description: "short"})
	details := ValidationErrors(err)

	assert.Equal(t, map[string]string{
		"title":       "Title must be less than 10 characters",
		"description": "Description must be at least 10 characters",
		"latitude":    "Latitude is required",
	}, details)
}

func TestValidationErrors_BlankIsRequired(t *testing.T) {
	v := newTestValidator(t)
	lat := 0.0

	err := v.Struct(samplePayload{Title: "   ", Description: "long enough text", Latitude: &lat})
	assert.Equal(t, map[string]string{"title": "Title is required"}, ValidationErrors(err))
}

func TestValidationErrors_QueryFieldsUseFormName(t *testing.T) {
	v := newTestValidator(t)
	query := struct {
		RadiusKm float64 `form:"radiusKm" validate:"gte=0"`
	}{RadiusKm: -1}

	err := v.Struct(query)
	assert.Equal(t, map[string]string{"radiusKm": "RadiusKm must not be negative"}, ValidationErrors(err))
}

func TestValidationErrors_NotAValidationError(t *testing.T) {
	assert.Nil(t, ValidationErrors(assert.AnError))
}
