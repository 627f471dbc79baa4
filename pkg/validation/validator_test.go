package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDetails(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, ToDetails(nil))
	})

	t.Run("json syntax error", func(t *testing.T) {
		var payload map[string]any
		err := json.Unmarshal([]byte("{"), &payload)
		require.Error(t, err)
		assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	})

	t.Run("validator errors keyed by field", func(t *testing.T) {
		type req struct {
			Username string `json:"username" validate:"required"`
			Password string `json:"password" validate:"required,min=4"`
		}
		v := validator.New()
		err := v.Struct(req{Password: "x"})
		require.Error(t, err)

		details := ToDetails(err)
		assert.Equal(t, "is required", details["Username"])
		assert.Equal(t, "must be at least 4 characters long", details["Password"])
	})

	t.Run("unknown errors fall back", func(t *testing.T) {
		assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("boom")))
	})
}
