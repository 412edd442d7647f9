package sse

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestFeedCompleteLines(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("data: one\n\ndata: two\n"))
	want := []string{"one", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFeedDropsNonDataLines(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte(": comment\nretry: 3000\n\ndata: kept\nevent: foo\n"))
	if !reflect.DeepEqual(got, []string{"kept"}) {
		t.Errorf("got %v, want [kept]", got)
	}
}

func TestFeedCarriesPartialLine(t *testing.T) {
	var d Decoder
	if got := d.Feed([]byte("data: hel")); got != nil {
		t.Fatalf("expected no payloads for partial line, got %v", got)
	}
	got := d.Feed([]byte("lo\n"))
	if !reflect.DeepEqual(got, []string{"hello"}) {
		t.Errorf("got %v, want [hello]", got)
	}
}

func TestFeedTrimsCarriageReturn(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("data: crlf\r\n"))
	if !reflect.DeepEqual(got, []string{"crlf"}) {
		t.Errorf("got %v, want [crlf]", got)
	}
}

func TestFlushTrailingPayload(t *testing.T) {
	var d Decoder
	d.Feed([]byte("data: done\ndata: tail"))
	p, ok := d.Flush()
	if !ok || p != "tail" {
		t.Errorf("got (%q, %v), want (tail, true)", p, ok)
	}
	if _, ok := d.Flush(); ok {
		t.Error("second flush should yield nothing")
	}
}

func TestFlushIgnoresNonData(t *testing.T) {
	var d Decoder
	d.Feed([]byte(": partial comment"))
	if p, ok := d.Flush(); ok {
		t.Errorf("expected nothing, got %q", p)
	}
}

// decodeSplit runs the full input through a fresh Decoder split at the
// given byte offset and returns the decoded payload sequence.
func decodeSplit(input []byte, at int) []string {
	var d Decoder
	out := d.Feed(input[:at])
	out = append(out, d.Feed(input[at:])...)
	if p, ok := d.Flush(); ok {
		out = append(out, p)
	}
	return out
}

func TestChunkBoundaryIndependence(t *testing.T) {
	input := []byte("data: {\"type\":\"message_start\"}\n\ndata: {\"type\":\"message_stop\"}\n\n")
	want := decodeSplit(input, 0)
	if len(want) != 2 {
		t.Fatalf("expected 2 payloads, got %v", want)
	}
	for at := 1; at <= len(input); at++ {
		if got := decodeSplit(input, at); !reflect.DeepEqual(got, want) {
			t.Errorf("split at %d: got %v, want %v", at, got, want)
		}
	}
}

func TestChunkBoundaryMultibyte(t *testing.T) {
	input := []byte("data: héllo wörld ✓\n")
	want := decodeSplit(input, 0)
	for at := 1; at <= len(input); at++ {
		if got := decodeSplit(input, at); !reflect.DeepEqual(got, want) {
			t.Errorf("split at %d: got %v, want %v", at, got, want)
		}
	}
}

// oneByteReader delivers the underlying data a single byte per Read.
type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestReadAll(t *testing.T) {
	r := &oneByteReader{data: []byte("data: a\ndata: b\ndata: tail")}
	var got []string
	err := ReadAll(context.Background(), r, func(p string) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "tail"}) {
		t.Errorf("got %v", got)
	}
}

func TestReadAllCallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := ReadAll(context.Background(), strings.NewReader("data: a\n"), func(string) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
}

func TestReadAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ReadAll(ctx, strings.NewReader("data: a\n"), func(string) error {
		t.Error("callback should not run after cancel")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
