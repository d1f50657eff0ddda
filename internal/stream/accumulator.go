package stream

import (
	"context"
	"errors"
	"io"
	"strings"
)

// DefaultChunkSize is the read buffer used by Consume
const DefaultChunkSize = 4096

// Accumulator concatenates decoded chunks into a running buffer
type Accumulator struct {
	dec    *Decoder
	buf    strings.Builder
	chunks int
}

// NewAccumulator creates an empty Accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{dec: NewDecoder()}
}

// Add decodes chunk, appends it to the buffer and returns the whole text so far.
// changed is false when the chunk completed no character.
func (a *Accumulator) Add(chunk []byte) (text string, changed bool, err error) {
	a.chunks++
	s, err := a.dec.Decode(chunk)
	if err != nil {
		return a.buf.String(), false, err
	}
	if s == "" {
		return a.buf.String(), false, nil
	}
	a.buf.WriteString(s)
	return a.buf.String(), true, nil
}

// Finish flushes the decoder and returns the final text
func (a *Accumulator) Finish() (text string, changed bool, err error) {
	s, err := a.dec.Flush()
	if err != nil {
		return a.buf.String(), false, err
	}
	if s == "" {
		return a.buf.String(), false, nil
	}
	a.buf.WriteString(s)
	return a.buf.String(), true, nil
}

// String returns the text accumulated so far
func (a *Accumulator) String() string {
	return a.buf.String()
}

// Chunks returns how many chunks have been added
func (a *Accumulator) Chunks() int {
	return a.chunks
}

// Consume reads r chunk by chunk until EOF, calling onText with the running
// text after every chunk that adds characters. Reads are strictly sequential.
// It returns the final text and the number of chunks read.
func Consume(ctx context.Context, r io.Reader, onText func(text string)) (string, int, error) {
	acc := NewAccumulator()
	buf := make([]byte, DefaultChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return acc.String(), acc.Chunks(), err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			text, changed, err := acc.Add(buf[:n])
			if err != nil {
				return text, acc.Chunks(), err
			}
			if changed && onText != nil {
				onText(text)
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return acc.String(), acc.Chunks(), readErr
			}
			text, changed, err := acc.Finish()
			if err != nil {
				return text, acc.Chunks(), err
			}
			if changed && onText != nil {
				onText(text)
			}
			return text, acc.Chunks(), nil
		}
	}
}
