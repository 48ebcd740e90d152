package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareResponse_NoExtraction(t *testing.T) {
	t.Run("scalar passes through unwrapped", func(t *testing.T) {
		out := PrepareResponse("plain text", "", false)
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, "plain text", out.Response)
	})

	t.Run("mapping passes through", func(t *testing.T) {
		data := map[string]interface{}{"status": "active"}
		out := PrepareResponse(data, "", true)
		assert.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, data, out.Response)
	})
}

func TestPrepareResponse_Extraction(t *testing.T) {
	data := map[string]interface{}{
		"user": map[string]interface{}{
			"address": map[string]interface{}{"city": "London"},
		},
	}

	t.Run("nested path", func(t *testing.T) {
		out := PrepareResponse(data, "user.address.city", true)
		require.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, "London", out.Response)
	})

	t.Run("missing field becomes error outcome", func(t *testing.T) {
		out := PrepareResponse(data, "user.address.missing", true)
		assert.Equal(t, StatusError, out.Status)
		assert.Equal(t, "field not found: user.address.missing", out.Error)
		assert.Nil(t, out.Response)
	})

	t.Run("extraction without schema is rejected", func(t *testing.T) {
		out := PrepareResponse(data, "user.address.city", false)
		assert.Equal(t, StatusError, out.Status)
		assert.Equal(t, "field extraction requires a schema", out.Error)
	})

	t.Run("scalar is wrapped before extraction", func(t *testing.T) {
		out := PrepareResponse("42", "result", true)
		require.Equal(t, StatusSuccess, out.Status)
		assert.Equal(t, "42", out.Response)
	})

	t.Run("malformed path becomes error outcome", func(t *testing.T) {
		out := PrepareResponse(data, "user..city", true)
		assert.Equal(t, StatusError, out.Status)
		assert.Equal(t, "invalid field path format", out.Error)
	})
}
