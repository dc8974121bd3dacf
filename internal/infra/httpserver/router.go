package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/motionspec/internal/application/analysis"
	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
	domhist "github.com/bryanwahyu/motionspec/internal/domain/history"
	"github.com/bryanwahyu/motionspec/internal/infra/sse"
	"github.com/bryanwahyu/motionspec/internal/middleware"
)

const maxUploadBytes = 512 << 20

type Router struct {
	svc     *appanalysis.Service
	history domhist.Repository
	blobs   domain.BlobStore
	ledger  domain.Ledger
	prober  domain.MetadataProber
	logger  *zap.Logger
}

func NewRouter(svc *appanalysis.Service, history domhist.Repository, blobs domain.BlobStore, ledger domain.Ledger, prober domain.MetadataProber, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{svc: svc, history: history, blobs: blobs, ledger: ledger, prober: prober, logger: logger}
	mux := chi.NewRouter()

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/uploads", r.wrap(r.handleUpload))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/analyze/stream", r.wrap(r.handleAnalyzeStream))
		rt.Post("/pipeline/stream", r.wrap(r.handlePipelineStream))
		rt.Post("/parse", r.wrap(r.handleParse))
		rt.Get("/analyses", r.wrap(r.handleHistoryList))
		rt.Get("/analyses/{id}", r.wrap(r.handleHistoryGet))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			http.Error(w, err.Error(), statusFor(err))
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrProviderRejection), errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/uploads
// Multipart field "video". Stores the bytes on the relay and returns the key
// a later analyze call can reference instead of re-sending the video.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if r.blobs == nil {
		return errors.New("upload relay not configured")
	}
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	file, header, err := req.FormFile("video")
	if err != nil {
		return fmt.Errorf("%w: video file is required", domain.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty video file", domain.ErrInvalidInput)
	}

	key := uuid.NewString()
	contentType := header.Header.Get("Content-Type")
	if err := r.blobs.Put(req.Context(), key, data, contentType); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"upload_key": key,
		"size_bytes": len(data),
		"name":       header.Filename,
	})
}

// POST /v1/analyze
// Blocking single-call analysis. Accepts multipart (video file inline) or
// JSON referencing an upload_key from POST /v1/uploads.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	areq, err := r.decodeAnalysisRequest(req)
	if err != nil {
		return err
	}
	if err := r.spend(req, 1); err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	start := time.Now()
	result, err := r.svc.AnalyzeOnce(req.Context(), areq)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}

	r.saveRecord(req, areq, result, nil, false, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// POST /v1/analyze/stream
// Same input as /v1/analyze; response is SSE. Thinking and output deltas
// arrive as separate frame types, then one complete frame with the parsed
// result.
func (r *Router) handleAnalyzeStream(w http.ResponseWriter, req *http.Request) error {
	areq, err := r.decodeAnalysisRequest(req)
	if err != nil {
		return err
	}
	if err := r.spend(req, 1); err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	middleware.IncrementStreaming()
	defer middleware.DecrementStreaming()

	start := time.Now()
	frags, err := r.svc.AnalyzeOnceStream(req.Context(), areq)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}

	enc := sse.NewEncoder(w)
	_ = enc.Write(sse.Event{Type: "progress", Message: "analyzing"})

	var output []byte
	for frag := range frags {
		if frag.Err != nil {
			middleware.IncrementAnalysesFailed()
			return enc.Write(sse.Event{Type: "error", Message: frag.Err.Error()})
		}
		switch frag.Kind {
		case domain.FragmentThinking:
			_ = enc.Write(sse.Event{Type: "thinking", Data: frag.Text})
		default:
			output = append(output, frag.Text...)
			_ = enc.Write(sse.Event{Type: "chunk", Data: frag.Text})
		}
	}

	result, err := appanalysis.ParseOutput(string(output), areq.Cfg.Format)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return enc.Write(sse.Event{Type: "error", Message: err.Error()})
	}
	r.saveRecord(req, areq, result, nil, false, time.Since(start))

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return enc.Write(sse.Event{Type: "complete", Result: payload})
}

// POST /v1/pipeline/stream
// The 4-pass agentic path over SSE: pass_start/pass_complete markers,
// thinking and chunk deltas per pass, then a complete frame carrying the
// parsed deliverable plus the verification report (null when the model's
// report JSON was unusable).
func (r *Router) handlePipelineStream(w http.ResponseWriter, req *http.Request) error {
	areq, err := r.decodeAnalysisRequest(req)
	if err != nil {
		return err
	}
	if err := r.spend(req, 4); err != nil {
		return err
	}

	middleware.IncrementPipelineRuns()
	middleware.IncrementStreaming()
	defer middleware.DecrementStreaming()

	start := time.Now()
	events, outcome, err := r.svc.RunPipeline(req.Context(), areq)
	if err != nil {
		return err
	}

	enc := sse.NewEncoder(w)
	for ev := range events {
		frame := sse.Event{
			Type:        string(ev.Type),
			Pass:        ev.Pass,
			PassName:    ev.PassName,
			TotalPasses: ev.TotalPasses,
		}
		switch ev.Type {
		case domain.EventError:
			frame.Message = ev.Text
			middleware.IncrementAnalysesFailed()
		case domain.EventPassComplete:
			// pass text travels in the complete frame, not here
		default:
			frame.Data = ev.Text
		}
		_ = enc.Write(frame)
	}

	out, ok := <-outcome
	if !ok {
		// the run failed; the error frame already went out
		return nil
	}

	result, err := appanalysis.ParseOutput(out.Deliverable, areq.Cfg.Format)
	if err != nil {
		return enc.Write(sse.Event{Type: "error", Message: err.Error()})
	}
	report := appanalysis.ParseVerification(out.Verification)

	var score *int
	if report != nil {
		score = &report.OverallScore
	}
	r.saveRecord(req, areq, result, score, true, time.Since(start))

	payload, err := json.Marshal(map[string]any{
		"result":       result,
		"verification": report,
	})
	if err != nil {
		return err
	}
	return enc.Write(sse.Event{Type: "complete", Result: payload})
}

// POST /v1/parse
// Re-runs the output parser over raw model text. Lets clients recover a
// structured result from a transcript they kept, without another model call.
func (r *Router) handleParse(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Raw          string `json:"raw"`
		Format       string `json:"format"`
		Verification string `json:"verification,omitempty"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if body.Raw == "" {
		return fmt.Errorf("%w: raw text is required", domain.ErrInvalidInput)
	}
	format, err := domain.ParseFormat(body.Format)
	if err != nil {
		return err
	}

	result, err := appanalysis.ParseOutput(body.Raw, format)
	if err != nil {
		return err
	}

	resp := map[string]any{"result": result}
	if body.Verification != "" {
		resp["verification"] = appanalysis.ParseVerification(body.Verification)
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/analyses?limit=20
func (r *Router) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		return errors.New("history storage not configured")
	}
	user := middleware.GetUserFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.history.Latest(req.Context(), user, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domhist.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/analyses/{id}
func (r *Router) handleHistoryGet(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		return errors.New("history storage not configured")
	}
	user := middleware.GetUserFromContext(req.Context())
	id := chi.URLParam(req, "id")

	rec, err := r.history.Get(req.Context(), user, domhist.RecordID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// decodeAnalysisRequest accepts either multipart/form-data carrying the video
// bytes directly, or a JSON body referencing an earlier relay upload by key.
func (r *Router) decodeAnalysisRequest(req *http.Request) (appanalysis.Request, error) {
	ct := req.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		return r.decodeMultipart(req)
	}
	return r.decodeJSON(req)
}

func (r *Router) decodeMultipart(req *http.Request) (appanalysis.Request, error) {
	var areq appanalysis.Request
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return areq, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	file, header, err := req.FormFile("video")
	if err != nil {
		return areq, fmt.Errorf("%w: video file is required", domain.ErrInvalidInput)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return areq, err
	}
	areq.Video = data

	cfg, err := parseConfig(
		req.FormValue("format"),
		req.FormValue("quality"),
		req.FormValue("trigger"),
	)
	if err != nil {
		return areq, err
	}
	areq.Cfg = cfg

	meta := &domain.VideoMetadata{
		SizeBytes: int64(len(data)),
		MimeType:  header.Header.Get("Content-Type"),
		Name:      header.Filename,
	}
	meta.DurationSeconds, _ = strconv.ParseFloat(req.FormValue("duration_seconds"), 64)
	meta.Width, _ = strconv.Atoi(req.FormValue("width"))
	meta.Height, _ = strconv.Atoi(req.FormValue("height"))
	areq.Meta = r.fillMetadata(req.Context(), meta, data)

	if img, hdr, err := req.FormFile("image"); err == nil {
		defer img.Close()
		imgData, err := io.ReadAll(img)
		if err != nil {
			return areq, err
		}
		areq.Image = &domain.Image{
			Data:        imgData,
			MimeType:    hdr.Header.Get("Content-Type"),
			Description: req.FormValue("image_description"),
		}
	}

	return areq, nil
}

func (r *Router) decodeJSON(req *http.Request) (appanalysis.Request, error) {
	var areq appanalysis.Request
	var body struct {
		UploadKey string                `json:"upload_key"`
		Format    string                `json:"format"`
		Quality   string                `json:"quality"`
		Trigger   string                `json:"trigger"`
		Metadata  *domain.VideoMetadata `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return areq, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if body.UploadKey == "" {
		return areq, fmt.Errorf("%w: upload_key is required", domain.ErrInvalidInput)
	}
	if r.blobs == nil {
		return areq, errors.New("upload relay not configured")
	}

	data, err := r.blobs.Get(req.Context(), body.UploadKey)
	if err != nil {
		return areq, fmt.Errorf("%w: unknown upload_key", domain.ErrInvalidInput)
	}
	// the relay object is single-use
	if err := r.blobs.Delete(req.Context(), body.UploadKey); err != nil {
		r.logger.Warn("relay cleanup failed", zap.String("key", body.UploadKey), zap.Error(err))
	}
	areq.Video = data

	cfg, err := parseConfig(body.Format, body.Quality, body.Trigger)
	if err != nil {
		return areq, err
	}
	areq.Cfg = cfg

	meta := &domain.VideoMetadata{SizeBytes: int64(len(data))}
	if body.Metadata != nil {
		m := *body.Metadata
		if m.SizeBytes == 0 {
			m.SizeBytes = int64(len(data))
		}
		meta = &m
	}
	areq.Meta = r.fillMetadata(req.Context(), meta, data)

	return areq, nil
}

// fillMetadata probes the video for duration and dimensions when the client
// left them out. Probe failures keep the client's values.
func (r *Router) fillMetadata(ctx context.Context, meta *domain.VideoMetadata, data []byte) *domain.VideoMetadata {
	if r.prober == nil || (meta.DurationSeconds > 0 && meta.Width > 0 && meta.Height > 0) {
		return meta
	}
	probed, err := r.prober.Probe(ctx, data, meta.MimeType)
	if err != nil {
		r.logger.Debug("metadata probe failed", zap.Error(err))
		return meta
	}
	if meta.DurationSeconds == 0 {
		meta.DurationSeconds = probed.DurationSeconds
	}
	if meta.Width == 0 {
		meta.Width = probed.Width
	}
	if meta.Height == 0 {
		meta.Height = probed.Height
	}
	return meta
}

func parseConfig(format, quality, trigger string) (domain.Config, error) {
	var cfg domain.Config
	f, err := domain.ParseFormat(format)
	if err != nil {
		return cfg, err
	}
	if quality == "" {
		quality = string(domain.QualityFast)
	}
	q, err := domain.ParseQuality(quality)
	if err != nil {
		return cfg, err
	}
	t, err := domain.ParseTrigger(trigger)
	if err != nil {
		return cfg, err
	}
	return domain.Config{Format: f, Quality: q, Trigger: t}, nil
}

func (r *Router) spend(req *http.Request, units int) error {
	if r.ledger == nil {
		return nil
	}
	user := middleware.GetUserFromContext(req.Context())
	return r.ledger.Spend(req.Context(), user, units)
}

// saveRecord persists a completed run. Persistence never fails a request.
func (r *Router) saveRecord(req *http.Request, areq appanalysis.Request, result *domain.Result, score *int, agentic bool, took time.Duration) {
	if r.history == nil {
		return
	}
	videoName := ""
	if areq.Meta != nil {
		videoName = areq.Meta.Name
	}
	rec := &domhist.Record{
		ID:         domhist.RecordID(uuid.NewString()),
		UserID:     middleware.GetUserFromContext(req.Context()),
		Format:     result.Format,
		Quality:    areq.Cfg.Quality,
		VideoName:  videoName,
		Overview:   result.Overview,
		Code:       result.Code,
		Notes:      result.Notes,
		Score:      score,
		Agentic:    agentic,
		DurationMS: took.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if err := r.history.Save(req.Context(), rec); err != nil {
		r.logger.Warn("history save failed", zap.String("id", string(rec.ID)), zap.Error(err))
	}
}
