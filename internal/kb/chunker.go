package kb

// Chunking defaults, tuned for conversational transcripts.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits a transcript into overlapping chunks. Sizes are in runes so
// multibyte text never splits mid-character.
//
// The stride between chunk starts is fixed at Size-Overlap, so for input
// length L the chunk count is ceil((L-Overlap)/(Size-Overlap)) and every
// chunk except possibly the last is at most Size long. A chunk's trailing
// edge may retreat to a paragraph, line, sentence, or word boundary within
// the overlap window; the retreated text is still covered by the next chunk.
type Chunker struct {
	Size    int
	Overlap int
}

// Split chunks text. Returns nil for empty input.
func (c Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := size - overlap
	var chunks []string
	for start := 0; ; start += stride {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:boundaryCut(runes, start, end, overlap)]))
	}
}

// boundaryCut finds the best cut position in (start, end], searching only the
// overlap window so the fixed stride still re-covers everything dropped here.
func boundaryCut(runes []rune, start, end, overlap int) int {
	lo := end - overlap
	if lo <= start {
		lo = start + 1
	}

	// Paragraph break, then line break, then sentence end, then word break.
	for i := end; i > lo; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > lo; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > lo; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	for i := end; i > lo; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return end
}
