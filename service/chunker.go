package services

import "strings"

const (
	chunkSize    = 800
	chunkOverlap = 100
)

// ChunkText splits extracted text into overlapping slices for retrieval.
func ChunkText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := end - chunkOverlap
		if next <= start || end == len(text) {
			break
		}
		start = next
	}
	return chunks
}
