package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"ragqa/internal/domain"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

func (c *SentenceChunker) Chunk(pages []domain.Page) ([]domain.Segment, error) {
	var segments []domain.Segment
	for _, page := range pages {
		locs := c.splitter.FindAllStringIndex(page.Text, -1)
		if len(locs) == 0 {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			locs = [][]int{{0, len(page.Text)}}
		}
		i := 0
		for i < len(locs) {
			end := i + c.sentencesPerChunk
			if end > len(locs) {
				end = len(locs)
			}
			parts := make([]string, 0, end-i)
			for _, loc := range locs[i:end] {
				parts = append(parts, strings.TrimSpace(page.Text[loc[0]:loc[1]]))
			}
			segments = append(segments, newSegment(page, sentenceStart(page.Text, locs[i]), len(segments), strings.Join(parts, " ")))
			if end == len(locs) {
				break
			}
			i = end - c.overlapSentences
		}
	}
	return segments, nil
}

// sentenceStart is the rune offset of the first non-space rune of loc.
func sentenceStart(text string, loc []int) int {
	raw := text[loc[0]:loc[1]]
	return runeOffset(text, loc[0]+len(raw)-len(strings.TrimLeftFunc(raw, unicode.IsSpace)))
}
