// Package agentstream decodes the agent's line-delimited `data: <json>` event
// stream into classified domain events.
package agentstream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"maestro-console/internal/domain"
)

// DefaultMaxLineBytes bounds a single pending line.
const DefaultMaxLineBytes = 1 << 20

var (
	dataPrefix = []byte("data: ")
	doneSignal = []byte("[DONE]")
)

// Record is one complete `data: ` line whose payload is well-formed JSON.
type Record struct {
	Seq     int
	Payload json.RawMessage
}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// MaxLineBytes caps the buffered partial line. Zero means DefaultMaxLineBytes.
	MaxLineBytes int
	// OnMalformed is called for every recognized line that is dropped.
	// err wraps domain.ErrMalformedRecord or domain.ErrRecordTooLarge.
	OnMalformed func(line []byte, err error)
}

// DecoderStats counts what the decoder has seen so far.
type DecoderStats struct {
	Records   int
	Malformed int
	Skipped   int
}

// Decoder splits raw chunks into Records. It is not safe for concurrent use;
// a session owns exactly one Decoder.
type Decoder struct {
	buf       []byte
	maxLine   int
	overflow  bool
	seq       int
	stats     DecoderStats
	onMalform func([]byte, error)
}

// NewDecoder creates a Decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Decoder{maxLine: maxLine, onMalform: opts.OnMalformed}
}

// Feed appends chunk to the pending buffer and returns every Record completed
// by it, in wire order. A trailing partial line is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Record {
	var out []Record
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			d.appendPartial(chunk)
			break
		}
		d.appendPartial(chunk[:i])
		chunk = chunk[i+1:]
		out = d.completeLine(out)
	}
	return out
}

// Flush emits the unterminated tail, if any, as a final Record. Called once
// the transport reports end of stream.
func (d *Decoder) Flush() []Record {
	if len(d.buf) == 0 && !d.overflow {
		return nil
	}
	return d.completeLine(nil)
}

// Stats returns counters accumulated since creation.
func (d *Decoder) Stats() DecoderStats { return d.stats }

func (d *Decoder) appendPartial(p []byte) {
	if d.overflow {
		return
	}
	if len(d.buf)+len(p) > d.maxLine {
		d.overflow = true
		d.buf = d.buf[:0]
		return
	}
	d.buf = append(d.buf, p...)
}

func (d *Decoder) completeLine(out []Record) []Record {
	if d.overflow {
		d.overflow = false
		d.buf = d.buf[:0]
		d.malformed(nil, domain.NewDomainError("Decoder.Feed", domain.ErrRecordTooLarge,
			fmt.Sprintf("line longer than %d bytes", d.maxLine)))
		return out
	}

	line := bytes.TrimSuffix(d.buf, []byte("\r"))
	d.buf = d.buf[:0]

	if !bytes.HasPrefix(line, dataPrefix) {
		if len(line) > 0 {
			d.stats.Skipped++
		}
		return out
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	// Common OpenAI-style termination signal; the agent closes the body instead.
	if bytes.Equal(payload, doneSignal) {
		d.stats.Skipped++
		return out
	}
	if !json.Valid(payload) {
		d.malformed(line, domain.NewDomainError("Decoder.Feed", domain.ErrMalformedRecord, "invalid json payload"))
		return out
	}

	d.seq++
	d.stats.Records++
	// The buffer is reused, so the payload must be copied out.
	return append(out, Record{Seq: d.seq, Payload: bytes.Clone(payload)})
}

func (d *Decoder) malformed(line []byte, err error) {
	d.stats.Malformed++
	if d.onMalform != nil {
		d.onMalform(bytes.Clone(line), err)
	}
}
