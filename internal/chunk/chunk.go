// Package chunk splits document text into overlapping chunks for embedding.
//
// The splitter works recursively: it tries to split on paragraph breaks
// first, then line breaks, then spaces, and finally falls back to a hard
// character split. Adjacent chunks share an overlap so retrieval does
// not lose context at chunk boundaries.
package chunk

import "strings"

// Default chunking parameters.
const (
	DefaultSize    = 2000
	DefaultOverlap = 200
)

// defaultSeparators are tried in order; the empty string is the hard
// character-split fallback and must come last.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text into chunks of at most Size characters with
// Overlap characters shared between adjacent chunks.
type Splitter struct {
	Size    int
	Overlap int

	separators []string
}

// NewSplitter creates a Splitter. Non-positive size or negative overlap
// fall back to the defaults; overlap is clamped below size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Splitter{
		Size:       size,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split splits text into chunks. Whitespace-only input yields no
// chunks. A literal-constructed Splitter{Size, Overlap} gets the same
// normalization NewSplitter applies.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sp := s
	if sp.Size <= 0 || sp.Overlap < 0 || sp.Overlap >= sp.Size || len(sp.separators) == 0 {
		sp = NewSplitter(s.Size, s.Overlap)
	}
	return sp.split(text, sp.separators)
}

// split recursively splits text using the first separator that occurs
// in it, descending to finer separators for pieces that are still too
// large.
func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	rest := []string{}
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = hardSplit(text, s.Size, s.Overlap)
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if len(piece) < s.Size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge joins small pieces back together into chunks of at most Size
// characters, carrying Overlap characters worth of trailing pieces into
// the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		pieceLen := len(piece) + len(sep)
		if total+pieceLen > s.Size && len(window) > 0 {
			flush()
			// Drop leading pieces until the retained tail fits the overlap.
			for total > s.Overlap || (total+pieceLen > s.Size && total > 0) {
				total -= len(window[0]) + len(sep)
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += pieceLen
	}
	flush()
	return chunks
}

// hardSplit cuts text into fixed-size slices, used when no separator is
// available. Each slice starts overlap characters before the previous
// one ended, so adjacent slices share that much content.
func hardSplit(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; ; start += step {
		end := min(start+size, len(text))
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}
