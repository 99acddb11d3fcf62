package commonModels

type DocKind string

const (
	PDF     DocKind = "PDF"
	DOCX    DocKind = "DOCX"
	EMAIL   DocKind = "EMAIL"
	TEXT    DocKind = "TEXT"
	UNKNOWN DocKind = "UNKNOWN"
)

// Document is the fetched payload. It is not modified after the fetch and is dropped
// once extraction finishes.
type Document struct {
	SourceURL   string
	Raw         []byte
	Kind        DocKind
	ContentType string
}

// TextSegment is a run of extracted text. Origin is diagnostic only ("page 3", "body").
type TextSegment struct {
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

// TokenSpan is a half-open token range [Start, End) over the normalized document text.
type TokenSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Passage struct {
	Id   string    `json:"id"`
	Text string    `json:"text"`
	Span TokenSpan `json:"span"`
}

// Match is a retrieval hit. Order is the insertion position of the passage in the index.
type Match struct {
	Passage Passage `json:"passage"`
	Score   float32 `json:"score"`
	Order   int     `json:"order"`
}
