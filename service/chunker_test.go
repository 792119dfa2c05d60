package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText(t *testing.T) {
	t.Run("empty input yields nothing", func(t *testing.T) {
		assert.Nil(t, ChunkText(""))
		assert.Nil(t, ChunkText("   \n  "))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := ChunkText("one line of extracted text")
		assert.Equal(t, []string{"one line of extracted text"}, chunks)
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 200) // 2000 chars
		chunks := ChunkText(text)
		assert.Len(t, chunks, 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), chunkSize)
		}
		// Consecutive chunks share the overlap region.
		tail := chunks[0][len(chunks[0])-chunkOverlap:]
		assert.True(t, strings.HasPrefix(chunks[1], tail))
	})
}
