// Package sse implements the line-oriented Server-Sent-Events framing used
// by the streaming analysis endpoints: an encoder for handlers and a
// buffering decoder for clients and tests. Frames are `data: <json>` blocks
// terminated by a blank line.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one wire frame payload. Type is a small closed set:
// progress, chunk, thinking, complete, error, pass_start, pass_complete.
type Event struct {
	Type        string          `json:"type"`
	Data        string          `json:"data,omitempty"`
	Message     string          `json:"message,omitempty"`
	Pass        int             `json:"pass,omitempty"`
	PassName    string          `json:"pass_name,omitempty"`
	TotalPasses int             `json:"total_passes,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Encoder serializes events onto an HTTP response, flushing after each frame
// so clients see deltas as they happen. Events go out in call order; the
// encoder never reorders or coalesces.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder prepares w for SSE output. Headers are set immediately.
func NewEncoder(w http.ResponseWriter) *Encoder {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher}
}

// Write emits one event frame.
func (e *Encoder) Write(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Decoder reassembles data payloads from a byte stream that may be split at
// arbitrary offsets. Feed returns the payloads completed by that chunk;
// Flush returns a trailing frame that never saw its blank-line terminator.
type Decoder struct {
	buf strings.Builder
}

// Feed consumes the next chunk of bytes and returns zero or more complete
// data payloads, in order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf.Write(chunk)

	text := d.buf.String()
	var out []string
	for {
		idx := strings.Index(text, "\n\n")
		if idx < 0 {
			break
		}
		frame := text[:idx]
		text = text[idx+2:]
		if data, ok := parseFrame(frame); ok {
			out = append(out, data)
		}
	}
	d.buf.Reset()
	d.buf.WriteString(text)
	return out
}

// Flush drains any partial trailing frame. Call once at end of stream so an
// unterminated final frame is not silently dropped.
func (d *Decoder) Flush() (string, bool) {
	rest := d.buf.String()
	d.buf.Reset()
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return parseFrame(rest)
}

// parseFrame extracts the data field from one frame: data lines are joined
// with newlines, the "data:" prefix and at most one leading space stripped.
func parseFrame(frame string) (string, bool) {
	var lines []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimPrefix(line, "data:")
		data = strings.TrimPrefix(data, " ")
		lines = append(lines, data)
	}
	if lines == nil {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
