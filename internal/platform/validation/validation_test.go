package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string  `json:"id" binding:"required,ulid"`
	Color string  `json:"color" binding:"required,test_color"`
	Shade *string `json:"shade" binding:"omitempty,test_color"`
}

func TestEnumAndULID(t *testing.T) {
	Setup()
	RegisterEnum("test_color", "RED", "BLUE")

	ok := sample{ID: "01HZX3K4Y7W8N9P0Q1R2S3T4V5", Color: "RED"}
	require.NoError(t, binding.Validator.ValidateStruct(&ok))

	bad := "GREEN"
	err := binding.Validator.ValidateStruct(&sample{ID: "nope", Color: "RED", Shade: &bad})
	require.Error(t, err)
	msg := Message(err)
	assert.Contains(t, msg, "ID must be a ULID")
	assert.Contains(t, msg, "Shade must be one of BLUE, RED")

	assert.True(t, OneOf("test_color", "BLUE"))
	assert.False(t, OneOf("test_color", "GREEN"))
}

func TestMessageNonValidation(t *testing.T) {
	assert.Equal(t, "invalid request body", Message(assert.AnError))
}
