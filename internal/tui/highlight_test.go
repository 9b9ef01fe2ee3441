package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestSentence(t *testing.T) {
	sentences := []string{"The sky is blue.", "Leave is 25 days per year.", "Ask HR."}
	assert.Equal(t, 1, bestSentence(sentences, "How many days of leave?"))
	assert.Equal(t, -1, bestSentence(sentences, "?!"))
	assert.Equal(t, 0, bestSentence(sentences, "unrelated words"), "ties keep the first sentence")
}

func TestTokenOverlapCountsDistinctWords(t *testing.T) {
	q := toTokenSet("leave leave days")
	assert.Equal(t, 2, tokenOverlapScore(q, "Leave, leave and more leave for days."))
	assert.Contains(t, toTokenSet("Don’t stop"), "don’t")
}

func TestHighlightBestSentenceKeepsText(t *testing.T) {
	out := highlightBestSentence("First part. Second part about leave.", "leave")
	assert.Contains(t, out, "First part.")
	assert.Contains(t, out, "Second part about leave.")
	assert.Equal(t, "  ", highlightBestSentence("  ", "leave"))
}
