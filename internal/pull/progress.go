// Package pull turns a one-shot "pull a model" request into a supervised,
// cancellable background task with live progress, and tracks every task in
// a process-wide registry.
package pull

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// ProgressEvent is one parsed line from the daemon's streamed pull
// response. Events are immutable values; the decoder never holds a
// reference to the task consuming them.
type ProgressEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Err       string `json:"error,omitempty"`
}

// TerminalSuccess reports whether the daemon signalled overall success.
// An event carries at most one of Err or terminal success.
func (e ProgressEvent) TerminalSuccess() bool { return e.Status == "success" }

// Decoder reads newline-delimited JSON status objects from a pull stream
// and yields them in stream order. Lines that fail to parse are dropped:
// one garbled status line must not abort an otherwise healthy
// multi-gigabyte transfer. A trailing line with no delimiter is discarded
// even when it parses, since it may be an artifact of the connection dying
// mid-write. The decoder does no retries; it stops when the stream closes.
type Decoder struct {
	r    *bufio.Reader
	err  error
	done bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next well-formed event. ok is false once the stream is
// exhausted; check Err afterwards to distinguish clean close from a
// transport failure.
func (d *Decoder) Next() (ev ProgressEvent, ok bool) {
	for !d.done {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// Any bytes returned alongside the error are an undelimited
			// fragment; drop them regardless of whether they parse.
			d.done = true
			if err != io.EOF {
				d.err = err
			}
			return ProgressEvent{}, false
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if jerr := json.Unmarshal(line, &ev); jerr != nil {
			ev = ProgressEvent{}
			continue
		}
		return ev, true
	}
	return ProgressEvent{}, false
}

// Err returns the underlying read error, if any, once Next has returned
// false. A clean stream close yields nil.
func (d *Decoder) Err() error { return d.err }
