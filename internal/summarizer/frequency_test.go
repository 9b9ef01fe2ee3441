package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencySummarizer_PicksDominantSentences(t *testing.T) {
	text := "Agents plan tasks. Agents act on plans and agents reflect. The weather was mild. Agents use tools to act."
	s := NewFrequencySummarizer()

	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, "weather")
	assert.True(t, strings.HasPrefix(out, "Agents"))
}

func TestFrequencySummarizer_KeepsOriginalOrder(t *testing.T) {
	text := "Alpha agents. Beta filler text. Gamma agents agents."
	s := NewFrequencySummarizer()

	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Alpha"), strings.Index(out, "Gamma"))
}

func TestFrequencySummarizer_NoSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("  just words  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just words", out)
}

func TestFrequencySummarizer_TrailingFragment(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("Refunds take two weeks. Refunds need a receipt", 5)
	require.NoError(t, err)
	assert.Equal(t, "Refunds take two weeks. Refunds need a receipt", out)
}
