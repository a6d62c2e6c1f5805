package lms

import (
	"github.com/tiktoken-go/tokenizer"
)

type TokenCounter = func(text string) (int, error)

// BPETokenCounter counts o200k tokens. It approximates every provider.
type BPETokenCounter TokenCounter

func (Module) BPETokenCounter() BPETokenCounter {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return func(string) (int, error) {
			return 0, err
		}
	}

	return func(text string) (int, error) {
		n, err := enc.Count(text)
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}
