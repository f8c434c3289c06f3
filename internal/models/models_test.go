package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFileSizeSerializesAsInteger(t *testing.T) {
	size := int64(4096)
	doc := Document{ID: "d1", FileSize: &size}

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"file_size":4096`)

	t.Run("the maximum stays exact", func(t *testing.T) {
		max := MaxFileSize
		doc := Document{ID: "d1", FileSize: &max}

		out, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"file_size":9007199254740991`)
	})

	t.Run("absent size is null", func(t *testing.T) {
		out, err := json.Marshal(Document{ID: "d1"})
		require.NoError(t, err)
		assert.Contains(t, string(out), `"file_size":null`)
	})
}

func TestChunkEmbeddingIsNotSerialized(t *testing.T) {
	ch := Chunk{ID: "c1", Content: "text", Embedding: []float32{1, 2, 3}}

	out, err := json.Marshal(ch)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "embedding")
	assert.NotContains(t, string(out), `1,2,3`)
}
