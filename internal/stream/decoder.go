// Package stream turns a chunked byte stream into incrementally growing text.
package stream

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder decodes UTF-8 text delivered in arbitrary byte chunks.
//
// Bytes of a multi-byte sequence that is cut by a chunk boundary are held
// back until the next chunk completes them. Invalid sequences decode to
// U+FFFD. A Decoder is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

// NewDecoder creates a Decoder with empty state
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode consumes chunk and returns the text it completes.
// The result may be empty when chunk only carries part of a character.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	return d.decode(chunk, false)
}

// Flush returns whatever is still held back, decoding an incomplete trailing
// sequence as U+FFFD, and resets the decoder.
func (d *Decoder) Flush() (string, error) {
	out, err := d.decode(nil, true)
	d.Reset()
	return out, err
}

// Reset drops any held-back bytes
func (d *Decoder) Reset() {
	d.pending = nil
	d.t.Reset()
}

func (d *Decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil

	if len(src) == 0 {
		return "", nil
	}

	// Every source byte expands to at most one replacement rune.
	need := len(src)*utf8.RuneLen(utf8.RuneError) + utf8.UTFMax
	if cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	d.dst = d.dst[:cap(d.dst)]

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
			return out.String(), nil
		case transform.ErrShortSrc:
			d.pending = append(d.pending, src...)
			return out.String(), nil
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
		default:
			return out.String(), err
		}
	}
}
