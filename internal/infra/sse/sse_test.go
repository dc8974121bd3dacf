package sse

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_HeadersAndFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)

	require.NoError(t, enc.Write(Event{Type: "chunk", Data: "hello"}))
	require.NoError(t, enc.Write(Event{Type: "complete"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"type":"chunk","data":"hello"}`+"\n\n")
	assert.Contains(t, body, `data: {"type":"complete"}`+"\n\n")
	assert.True(t, rec.Flushed)
}

func TestEncoder_OmitsEmptyFields(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)
	require.NoError(t, enc.Write(Event{Type: "pass_start", Pass: 2, PassName: "deep-analysis", TotalPasses: 4}))

	var ev map[string]any
	line := rec.Body.String()
	require.NoError(t, json.Unmarshal([]byte(line[len("data: "):len(line)-2]), &ev))
	assert.NotContains(t, ev, "data")
	assert.NotContains(t, ev, "message")
	assert.NotContains(t, ev, "result")
	assert.Equal(t, float64(2), ev["pass"])
}

func TestDecoder_RoundTripAcrossArbitrarySplits(t *testing.T) {
	payloads := []string{
		`{"type":"progress","message":"analyzing"}`,
		`{"type":"chunk","data":"a b c"}`,
		`{"type":"thinking","data":"hmm"}`,
		`{"type":"complete","result":{"overview":"x"}}`,
	}
	var wire []byte
	for _, p := range payloads {
		wire = append(wire, []byte("data: "+p+"\n\n")...)
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 16, len(wire)} {
		var d Decoder
		var got []string
		for i := 0; i < len(wire); i += chunkSize {
			end := i + chunkSize
			if end > len(wire) {
				end = len(wire)
			}
			got = append(got, d.Feed(wire[i:end])...)
		}
		if data, ok := d.Flush(); ok {
			got = append(got, data)
		}
		assert.Equal(t, payloads, got, "chunk size %d", chunkSize)
	}
}

func TestDecoder_FlushRecoversUnterminatedFrame(t *testing.T) {
	var d Decoder
	out := d.Feed([]byte("data: {\"type\":\"chunk\"}\n\ndata: {\"type\":\"error\"}"))
	require.Equal(t, []string{`{"type":"chunk"}`}, out)

	data, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, `{"type":"error"}`, data)

	// a second flush has nothing left
	_, ok = d.Flush()
	assert.False(t, ok)
}

func TestDecoder_MultiLineData(t *testing.T) {
	var d Decoder
	out := d.Feed([]byte("data: line one\ndata: line two\n\n"))
	require.Len(t, out, 1)
	assert.Equal(t, "line one\nline two", out[0])
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	var d Decoder
	out := d.Feed([]byte(": keepalive comment\n\nevent: ping\n\ndata: real\n\n"))
	assert.Equal(t, []string{"real"}, out)
}

func TestDecoder_CRLFTolerant(t *testing.T) {
	var d Decoder
	out := d.Feed([]byte("data: one\r\n\ndata: two\n\n"))
	require.Len(t, out, 2)
	assert.Equal(t, "one", out[0])
	assert.Equal(t, "two", out[1])
}

func TestDecoder_EmptyFlush(t *testing.T) {
	var d Decoder
	d.Feed([]byte("data: done\n\n  \n"))
	_, ok := d.Flush()
	assert.False(t, ok)
}
