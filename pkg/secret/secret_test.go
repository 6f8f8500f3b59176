package secret

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_RedactsEverywhere(t *testing.T) {
	t.Parallel()
	s := Secret("super-secret-value")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))
	assert.NotContains(t, string(data), "super-secret-value")
}

func TestSecret_ValueReturnsActual(t *testing.T) {
	t.Parallel()
	s := Secret("super-secret-value")
	assert.Equal(t, "super-secret-value", s.Value())
}
