// Package chunk splits extracted text into overlapping windows sized for the
// embedding model.
package chunk

const (
	DefaultSize    = 1000
	DefaultOverlap = 150

	// MaxChunksPerDoc caps runaway documents; MaxDocChars truncates the
	// input silently before chunking.
	MaxChunksPerDoc = 400
	MaxDocChars     = 400_000
)

// Chunk is one window of text with its rune offsets in the source document.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Split slides a window of `size` characters over text with `overlap`
// characters shared between consecutive windows. Windows are measured in
// runes, never bytes: a boundary that lands mid-rune would emit invalid
// UTF-8 that json.Marshal mangles on the way to the embedding API. The final
// window may be shorter than size. Once a window reaches end-of-text the
// loop stops: the overlap arithmetic must not produce a trailing window past
// EOF, or a window that restarts at end-overlap when end already equals the
// text length.
func Split(text string, size, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 2
		}
	}
	runes := []rune(text)
	if len(runes) > MaxDocChars {
		runes = runes[:MaxDocChars]
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{Text: string(runes[start:end]), Start: start, End: end})
		if end >= len(runes) || len(chunks) >= MaxChunksPerDoc {
			return chunks
		}
		start = end - overlap
	}
}
