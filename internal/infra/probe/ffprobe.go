// Package probe fills in video metadata server-side with ffprobe when the
// client did not supply it. Strictly best-effort: a missing binary or an
// unreadable file leaves the metadata as the client sent it.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

type FFProbe struct {
	bin string
}

func New() *FFProbe {
	return &FFProbe{bin: "ffprobe"}
}

// Available reports whether the ffprobe binary can be found.
func (p *FFProbe) Available() bool {
	_, err := exec.LookPath(p.bin)
	return err == nil
}

// Probe inspects the video bytes and returns duration and dimensions.
func (p *FFProbe) Probe(ctx context.Context, data []byte, mimeType string) (*domain.VideoMetadata, error) {
	f, err := os.CreateTemp("", "motionspec-probe-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		f.Name(),
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var doc struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}

	meta := &domain.VideoMetadata{
		SizeBytes: int64(len(data)),
		MimeType:  mimeType,
	}
	meta.DurationSeconds, _ = strconv.ParseFloat(doc.Format.Duration, 64)
	for _, s := range doc.Streams {
		if s.CodecType == "video" {
			meta.Width = s.Width
			meta.Height = s.Height
			break
		}
	}
	return meta, nil
}
