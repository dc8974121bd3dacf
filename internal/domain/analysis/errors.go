package analysis

import "errors"

// Error taxonomy for the analysis core. Callers match with errors.Is and map
// to transport-level responses; everything is wrapped with %w so provider
// detail survives.

// ErrInvalidInput marks bad request data (unknown format/quality/trigger,
// missing video). Always raised before any provider call.
var ErrInvalidInput = errors.New("invalid analysis input")

// ErrTransport marks a failure to reach the vision provider or a network
// failure mid-stream.
var ErrTransport = errors.New("vision provider unreachable")

// ErrProviderRejection marks an empty response, a content-safety refusal, or
// a remote file entering a failed processing state.
var ErrProviderRejection = errors.New("vision provider rejected the request")

// ErrRateLimited indicates the provider returned a quota/limit error
// (HTTP 429 or similar). Kept distinct so callers can apply backoff.
var ErrRateLimited = errors.New("vision provider rate limited")

// ErrTimeout marks the remote-file readiness poll or the overall pipeline
// exceeding its bound.
var ErrTimeout = errors.New("analysis timed out")
