package domain

// Page is one linear span of text read from a source document, such as a
// single PDF page or a whole plain-text file.
type Page struct {
	Source string
	Number int // 1-based; 0 when the source has no pages
	Text   string
}

// Segment is a bounded span of source text used as the retrieval unit.
// Segments are immutable once the chunker has produced them.
type Segment struct {
	ID       string
	Source   string
	Page     int
	Offset   int // character offset within the page
	Position int // ordinal of the segment within the corpus
	Text     string
}

// ScoredSegment is a segment paired with its cosine similarity to a query.
type ScoredSegment struct {
	Segment Segment
	Score   float64
}

// RetrievalResult is the ordered (most to least similar) set of segments
// returned for one question.
type RetrievalResult []ScoredSegment

// Texts returns the segment texts in retrieval order.
func (r RetrievalResult) Texts() []string {
	out := make([]string, len(r))
	for i, s := range r {
		out[i] = s.Segment.Text
	}
	return out
}

// FallbackAnswer is returned verbatim when no context could be retrieved,
// and is the sentence the model is instructed to emit when the context
// does not contain the answer.
const FallbackAnswer = "Answer not available in the provided document."

// Answer is the result of one pipeline invocation.
type Answer struct {
	Text       string
	Confidence float64
	Context    RetrievalResult
}

// NotFound reports whether the answer came from the empty-context path.
func (a Answer) NotFound() bool {
	return len(a.Context) == 0 && a.Text == FallbackAnswer
}

// Chunker splits pages into segments suitable for retrieval indexing.
type Chunker interface {
	Chunk(pages []Page) ([]Segment, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
