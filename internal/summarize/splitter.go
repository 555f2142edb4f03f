package summarize

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"audio-digest/internal/domain"
)

// DefaultSeparators prefer paragraph, then line, then word breaks before a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into bounded chunks with overlapping context.
// Sizes are measured in runes.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter with DefaultSeparators.
func NewSplitter(chunkSize, overlap int) Splitter {
	return Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in order. Blank text yields no chunks.
func (s Splitter) Split(text string) []domain.Chunk {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	pieces := s.split(text, seps)
	return lo.Map(pieces, func(p string, i int) domain.Chunk {
		return domain.Chunk{Index: i, Text: p}
	})
}

func (s Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge packs small pieces into chunks no longer than ChunkSize, carrying up
// to Overlap runes of trailing pieces into the next chunk.
func (s Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var (
		out     []string
		current []string
		total   int
	)
	joinLen := func(n int) int {
		if len(current) > 0 {
			return n + sepLen
		}
		return n
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+joinLen(n) > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				out = append(out, chunk)
			}
			for len(current) > 0 && (total > s.Overlap || (total+joinLen(n) > s.ChunkSize && total > 0)) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += joinLen(n)
		current = append(current, piece)
	}
	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		out = append(out, chunk)
	}
	return out
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = lo.Map([]rune(text), func(r rune, _ int) string { return string(r) })
	} else {
		parts = strings.Split(text, separator)
	}
	return lo.Filter(parts, func(p string, _ int) bool { return p != "" })
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
