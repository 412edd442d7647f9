// Package sse turns an arbitrary byte stream into a sequence of
// data-frame payloads, independent of chunk boundaries.
package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
)

const dataPrefix = "data: "

// Decoder accumulates raw chunks and emits complete line-delimited
// payloads. Only lines carrying the "data: " prefix are surfaced;
// comments, retry directives, and blank lines are dropped. The carry-over
// buffer holds raw bytes, so a multi-byte character split across chunks
// is reassembled before any string is materialized.
type Decoder struct {
	buf []byte
}

// Feed appends a chunk and returns every payload whose terminating
// newline arrived with it, in order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var payloads []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if p, ok := payload(line); ok {
			payloads = append(payloads, p)
		}
	}
	return payloads
}

// Flush surfaces a trailing payload that was never newline-terminated.
// Call once, when the underlying stream has closed.
func (d *Decoder) Flush() (string, bool) {
	line := d.buf
	d.buf = nil
	return payload(line)
}

func payload(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return "", false
	}
	return string(line[len(dataPrefix):]), true
}

// ReadAll reads r to EOF, invoking fn for each decoded payload in arrival
// order. A chunk already delivered is fully processed before the next
// read is issued; cancellation is checked between reads, so an abort
// stops further reads without dropping payloads in hand. A trailing
// unterminated payload is flushed when the stream closes.
func ReadAll(ctx context.Context, r io.Reader, fn func(payload string) error) error {
	var d Decoder
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, p := range d.Feed(buf[:n]) {
				if ferr := fn(p); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if p, ok := d.Flush(); ok {
				return fn(p)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
