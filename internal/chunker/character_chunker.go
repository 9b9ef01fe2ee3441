package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"ragqa/internal/domain"
)

// Defaults match the corpus the demo was tuned on.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// separators are tried in order when looking for a natural break inside a window.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

// CharacterChunker splits each page into windows of at most size characters,
// consecutive windows sharing roughly overlap characters. Windows end on the
// coarsest separator found in their second half, so segments rarely cut a
// sentence or word in two.
type CharacterChunker struct {
	size    int
	overlap int
}

func NewCharacterChunker(size, overlap int) *CharacterChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &CharacterChunker{size: size, overlap: overlap}
}

func (c *CharacterChunker) Chunk(pages []domain.Page) ([]domain.Segment, error) {
	var segments []domain.Segment
	for _, page := range pages {
		runes := []rune(page.Text)
		start := 0
		for start < len(runes) {
			end := start + c.size
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = c.breakPoint(runes, start, end)
			}
			if text := strings.TrimSpace(string(runes[start:end])); text != "" {
				segments = append(segments, newSegment(page, start+leadingSpace(runes[start:end]), len(segments), text))
			}
			if end == len(runes) {
				break
			}
			start = c.nextStart(runes, start, end)
		}
	}
	return segments, nil
}

// breakPoint returns the rune index just past the last separator in the
// second half of runes[start:end], or end when there is none.
func (c *CharacterChunker) breakPoint(runes []rune, start, end int) int {
	lo := start + c.size/2
	window := string(runes[lo:end])
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			return lo + utf8.RuneCountInString(window[:idx+len(sep)])
		}
	}
	return end
}

// nextStart steps back by the overlap and then forward to a word boundary.
func (c *CharacterChunker) nextStart(runes []rune, start, end int) int {
	next := end - c.overlap
	if next <= start {
		return end
	}
	for i := next; i < end; i++ {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i + 1
		}
	}
	return next
}

func newSegment(page domain.Page, offset, position int, text string) domain.Segment {
	return domain.Segment{
		ID:       fmt.Sprintf("%s:%d:%d", page.Source, page.Number, offset),
		Source:   page.Source,
		Page:     page.Number,
		Offset:   offset,
		Position: position,
		Text:     text,
	}
}

// leadingSpace counts the whitespace runes TrimSpace would drop from the front.
func leadingSpace(rs []rune) int {
	n := 0
	for n < len(rs) && unicode.IsSpace(rs[n]) {
		n++
	}
	return n
}

func runeOffset(s string, byteOffset int) int {
	return utf8.RuneCountInString(s[:byteOffset])
}
