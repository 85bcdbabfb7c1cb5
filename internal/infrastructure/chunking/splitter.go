package chunking

import "strings"

const (
	defaultChunkSize = 600
	defaultOverlap   = 100
)

// Splitter cuts long legal documents into indexable chunks. Cut points
// prefer sentence boundaries so statute clauses and judgment sentences stay
// intact.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

var cutMarks = map[rune]bool{
	'。': true,
	'；': true,
	'！': true,
	'？': true,
	'\n': true,
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{string(runes)}
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cutPoint walks back from the hard limit looking for a sentence boundary.
// The search window is a quarter of the chunk size; past that a mid-sentence
// cut beats an undersized chunk.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	limit := end - s.ChunkSize/4
	if limit <= start {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if cutMarks[runes[i]] {
			return i + 1
		}
	}
	return end
}
