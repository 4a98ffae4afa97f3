// Package tokenize counts tokens using a fixed byte-pair encoding, as
// spec.md §6 requires ("a published OpenAI tokenizer; any equivalent
// encoder is acceptable so long as it yields the same counts").
package tokenize

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the encoding used across the pipeline for page token
// counts and window budgets. cl100k_base matches the GPT-4 family of models
// the rest of this repository's LLM providers target.
const DefaultEncoding = "cl100k_base"

var (
	once    sync.Once
	encoder *tiktoken.Tiktoken
	initErr error
)

func encoding() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		encoder, initErr = tiktoken.GetEncoding(DefaultEncoding)
	})
	return encoder, initErr
}

// Count returns the token count of text under the default encoding. If the
// encoder fails to initialize (offline environments without the bundled
// BPE ranks), it falls back to a conservative words*1.3 estimate rather
// than failing page loading outright.
func Count(text string) int {
	enc, err := encoding()
	if err != nil || enc == nil {
		return fallbackCount(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func fallbackCount(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return int(float64(words)*1.3) + 1
}
