package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecorder_CompressesLargePayloads(t *testing.T) {
	r, err := NewAuditRecorder(nil)
	require.NoError(t, err)

	small := json.RawMessage(`{"quantity":3}`)
	payload, compressed, algo := r.encode(small)
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.JSONEq(t, string(small), string(payload))

	large := json.RawMessage(`{"note":"` + strings.Repeat("x", DefaultCompressThreshold) + `"}`)
	payload, compressed, algo = r.encode(large)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, payload)
	assert.Less(t, len(compressed), len(large))

	restored, err := r.decode(payload, compressed, algo)
	require.NoError(t, err)
	assert.Equal(t, string(large), string(restored))
}
