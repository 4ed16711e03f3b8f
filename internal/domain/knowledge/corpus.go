package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Corpus is the ordered FAQ source. Order matters: it fixes entry IDs and
// therefore tie-breaking between equally similar entries.
type Corpus []QA

// LoadCorpus reads a JSON object mapping question text to answer text.
func LoadCorpus(path string) (Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	corpus, err := DecodeCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return corpus, nil
}

// DecodeCorpus streams the object token by token so document order survives;
// decoding into a map would randomize IDs between runs.
func DecodeCorpus(r io.Reader) (Corpus, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Corpus{}, nil
		}
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("corpus must be a JSON object of question -> answer")
	}

	var (
		corpus Corpus
		seen   = make(map[string]string)
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read question: %w", err)
		}
		key, _ := keyTok.(string)
		var answer string
		if err := dec.Decode(&answer); err != nil {
			return nil, fmt.Errorf("answer for %q must be a string: %w", key, err)
		}
		question := strings.TrimSpace(key)
		answer = strings.TrimSpace(answer)
		normalized := NormalizeQuestion(question)
		switch {
		case normalized == "":
			return nil, fmt.Errorf("entry %d: question is blank", len(corpus)+1)
		case answer == "":
			return nil, fmt.Errorf("question %q: answer is blank", question)
		}
		if prev, dup := seen[normalized]; dup {
			return nil, fmt.Errorf("question %q duplicates %q", question, prev)
		}
		seen[normalized] = question
		corpus = append(corpus, QA{Question: question, Answer: answer})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read corpus end: %w", err)
	}
	return corpus, nil
}

// Questions returns the question texts in corpus order.
func (c Corpus) Questions() []string {
	out := make([]string, len(c))
	for i, qa := range c {
		out[i] = qa.Question
	}
	return out
}

// Fingerprint identifies the corpus content together with the embedding
// model, so an index built by another model never counts as current.
func (c Corpus) Fingerprint(model string) string {
	h := sha256.New()
	writeField := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	writeField(model)
	for _, qa := range c {
		writeField(qa.Question)
		writeField(qa.Answer)
	}
	return hex.EncodeToString(h.Sum(nil))
}
