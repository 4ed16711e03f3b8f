package knowledge

import "time"

// NoMatchText is the literal the dialogue layer historically received when
// nothing in the FAQ corpus cleared the threshold.
const NoMatchText = "в базе нет подходящего ответа"

// QA is a single question/answer pair of the source corpus.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Entry is an embedded corpus pair as published in the index. IDs are
// sequential from 1 in corpus order.
type Entry struct {
	ID        int64
	Question  string
	Answer    string
	Embedding []float32
}

// Scored is an index hit before threshold gating.
type Scored struct {
	Entry      Entry
	Similarity float64
}

// Match is a ranked result handed to callers.
type Match struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// Outcome is either NoMatch (no matches) or a non-empty ranked list.
type Outcome struct {
	Matches []Match `json:"matches"`
}

// NoMatch is the sentinel outcome: the caller must not generate an answer
// from retrieved context.
var NoMatch = Outcome{}

// Found reports whether at least one match cleared the threshold.
func (o Outcome) Found() bool {
	return len(o.Matches) > 0
}

// Best returns the highest ranked match.
func (o Outcome) Best() (Match, bool) {
	if !o.Found() {
		return Match{}, false
	}
	return o.Matches[0], true
}

// Context renders the outcome the way it is forwarded into the LLM prompt.
func (o Outcome) Context() string {
	if !o.Found() {
		return NoMatchText
	}
	return FormatMatches(o.Matches)
}

// BuildReport describes a finished build.
type BuildReport struct {
	Entries     int           `json:"entries"`
	Dimensions  int           `json:"dimensions"`
	Fingerprint string        `json:"fingerprint"`
	Skipped     bool          `json:"skipped"`
	Duration    time.Duration `json:"durationMs"`
}

// Stats describes what is currently published.
type Stats struct {
	Entries     int    `json:"entries"`
	Fingerprint string `json:"fingerprint,omitempty"`
}
