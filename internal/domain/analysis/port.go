package analysis

import "context"

// FragmentKind tags one streamed token fragment from a provider. Providers
// decode their own response shapes and emit this union immediately, so the
// orchestrator never inspects provider-specific payloads.
type FragmentKind int

const (
	FragmentOutput FragmentKind = iota
	FragmentThinking
)

// Fragment is one streamed delta. Err, when set, terminates the stream.
type Fragment struct {
	Kind FragmentKind
	Text string
	Err  error
}

// GenerateParams are the per-call model knobs, selected from the quality
// tables. ThinkingBudget <= 0 disables thought streaming where a provider
// supports toggling it.
type GenerateParams struct {
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	ThinkingBudget  int32
}

// GenerateRequest is one complete model invocation: the video, an optional
// keyframe-grid still, the instruction text, and the model knobs.
type GenerateRequest struct {
	Video  VideoPart
	Image  *Image
	Prompt string
	Params GenerateParams
}

// VisionProvider port: one vision-model backend. Two implementations exist
// (Gemini-family and OpenAI-compatible) with different content-part
// encodings; the orchestrator is agnostic.
type VisionProvider interface {
	Name() string

	// Generate blocks until the full response text is available.
	// An empty response is ErrProviderRejection, never an empty success.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Stream yields fragments in provider order. The channel is closed when
	// the call ends; a Fragment with Err set is terminal.
	Stream(ctx context.Context, req GenerateRequest) (<-chan Fragment, error)

	// SupportsRemoteFiles reports whether UploadVideo is available.
	SupportsRemoteFiles() bool

	// UploadVideo pushes bytes to the provider's file store and blocks until
	// the file is ready to reference, or fails with ErrTimeout /
	// ErrProviderRejection. The returned part is remote.
	UploadVideo(ctx context.Context, data []byte, mimeType string) (VideoPart, error)

	// DeleteFile removes an uploaded file resource. Best-effort cleanup;
	// callers log failures and move on.
	DeleteFile(ctx context.Context, remoteName string) error
}

// BlobStore port: the relay used to get large client uploads to the server.
// Consumed strictly as write-bytes/get-key, read-by-key, delete-by-key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MetadataProber port: server-side extraction of duration and dimensions
// from raw video bytes. Best-effort; callers fall back to client-supplied
// metadata on any error.
type MetadataProber interface {
	Probe(ctx context.Context, data []byte, mimeType string) (*VideoMetadata, error)
}

// Ledger port: "spend N units, only if balance >= N". Billing is resolved
// upstream of the core; this seam exists so a paid deployment can plug a
// real ledger in.
type Ledger interface {
	Spend(ctx context.Context, userID string, units int) error
}
