// Package csvio implements the streaming CSV front end of the ingestion
// pipeline: a quote-aware tokenizer, the locale-tolerant header mapper and
// the row normalizer.
package csvio

import (
	"bufio"
	"io"
	"strings"
)

// Tokenizer turns a byte stream into logical CSV records in a single forward
// pass. Quoted fields may contain the delimiter, doubled quotes and literal
// line breaks; quote state is carried across physical lines until the quote
// closes. Fields are trimmed of surrounding whitespace. An unterminated
// quote at end of input flushes whatever was buffered as the final field
// instead of raising an error, so a truncated upload still yields its last
// partial record.
type Tokenizer struct {
	r         *bufio.Reader
	bytesRead int64
	done      bool
}

// NewTokenizer wraps r. The tokenizer owns the reader's position; it is not
// restartable once consumed.
func NewTokenizer(r io.Reader) *Tokenizer {
	return &Tokenizer{r: bufio.NewReaderSize(r, 64*1024)}
}

// BytesRead returns the number of input bytes consumed so far. Used for
// byte-based progress reporting.
func (t *Tokenizer) BytesRead() int64 { return t.bytesRead }

// Next returns the next logical record. It returns io.EOF after the last
// record; any other error comes from the underlying reader. Blank physical
// lines yield no record.
func (t *Tokenizer) Next() ([]string, error) {
	if t.done {
		return nil, io.EOF
	}

	var (
		field    strings.Builder
		fields   []string
		inQuotes bool
		sawAny   bool
	)

	flushField := func() {
		fields = append(fields, strings.TrimSpace(field.String()))
		field.Reset()
	}

	for {
		b, err := t.r.ReadByte()
		if err != nil {
			t.done = true
			if err != io.EOF {
				return nil, err
			}
			// Best-effort tail: flush buffered content, including an
			// unterminated quoted field.
			if sawAny {
				flushField()
				return fields, nil
			}
			return nil, io.EOF
		}
		t.bytesRead++

		switch {
		case b == '"':
			sawAny = true
			if inQuotes {
				// A doubled quote inside a quoted field is a literal quote.
				next, err := t.r.Peek(1)
				if err == nil && next[0] == '"' {
					if _, err := t.r.ReadByte(); err == nil {
						t.bytesRead++
					}
					field.WriteByte('"')
					continue
				}
				inQuotes = false
			} else {
				inQuotes = true
			}

		case b == ',' && !inQuotes:
			sawAny = true
			flushField()

		case b == '\n' && !inQuotes:
			if !sawAny && field.Len() == 0 && len(fields) == 0 {
				continue // blank line
			}
			flushField()
			return fields, nil

		case b == '\r' && !inQuotes:
			// swallowed; the subsequent \n (if any) terminates the record

		default:
			sawAny = true
			field.WriteByte(b)
		}
	}
}

// EncodeRow serializes one record back to CSV text (without a trailing
// newline). A field is quoted when it contains the delimiter, a quote or a
// line break; embedded quotes are doubled. Tokenizing the result yields the
// original record.
func EncodeRow(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(f, ",\"\n\r") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(f)
		}
	}
	return b.String()
}
