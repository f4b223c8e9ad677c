package textproc

// Chunk is one window of text plus its 0-based emission order.
type Chunk struct {
	Text     string
	Position int
}

// Split walks the text in windows of size characters, advancing by
// size-overlap each step; the final remainder is emitted as the last chunk
// regardless of its length. Text no longer than size yields exactly one
// chunk. The size/overlap relation is validated at startup by the config
// layer, not here.
func Split(text string, size, overlap int) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []Chunk{{Text: text, Position: 0}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Text:     string(runes[start:end]),
			Position: len(chunks),
		})

		if end >= len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
