package shared

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	t.Run("StatusKind", func(t *testing.T) {
		assert.Equal(t, KindAuth, StatusKind(401))
		assert.Equal(t, KindPermission, StatusKind(403))
		assert.Equal(t, KindServer, StatusKind(503))
		assert.Equal(t, KindUnknown, StatusKind(404))
	})

	t.Run("KindOfWrapped", func(t *testing.T) {
		err := fmt.Errorf("failed to save: %w", &Error{Kind: KindNetwork, Op: "create"})
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.True(t, IsNetwork(err))
		assert.False(t, IsValidation(err))
	})

	t.Run("DefaultMessage", func(t *testing.T) {
		err := &Error{Kind: KindServer, Op: "update", Status: 500}
		assert.Equal(t, "update: operation failed (status 500)", err.Error())
	})

	t.Run("Validation", func(t *testing.T) {
		err := Validation("name is required")
		assert.True(t, IsValidation(err))
		assert.Equal(t, "name is required", err.Error())
	})
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "abc", "c": null}`), &v))
	assert.Equal(t, ID("42"), v.A)
	assert.Equal(t, ID("abc"), v.B)
	assert.Equal(t, ID(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}

func TestIDLocalPrefixes(t *testing.T) {
	assert.True(t, ID("temp_1700000000000").IsTemp())
	assert.True(t, ID("guest-1700000000000").HasLocalPrefix("guest"))
	assert.True(t, ID("temp_1").HasLocalPrefix(""))
	assert.False(t, ID("42").HasLocalPrefix("guest"))
	assert.False(t, ID("guestbook").HasLocalPrefix("guest"))
}
