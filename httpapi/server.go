package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/internal/logx"
	"pkt.systems/foldscreen/schema"
)

// Server serves the HTTP API, the demo page and the page shim.
type Server struct {
	cfg      Config
	registry *core.Registry
	hub      *Hub
	metrics  http.Handler
	base     pageBase

	mu      sync.Mutex
	baseCtx context.Context
	pumps   map[*core.Emulator]struct{}
}

// NewServer constructs an HTTP server. metrics may be nil to disable /metrics.
func NewServer(cfg Config, registry *core.Registry, hub *Hub, metrics http.Handler) *Server {
	if hub == nil {
		hub = NewHub(cfg.StreamHistory)
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		metrics:  metrics,
		base:     newPageBase(cfg.BaseURL, cfg.BasePath),
		baseCtx:  context.Background(),
		pumps:    make(map[*core.Emulator]struct{}),
	}
}

// SetBaseContext sets the parent context of stream pumps.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
}

// Open returns the emulator of id and makes sure its changes reach the
// stream hub.
func (s *Server) Open(id schema.ContextID) (*core.Emulator, error) {
	emu, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	s.ensurePump(emu)
	return emu, nil
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", assetHandler())
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	mux.HandleFunc("/api/contexts", s.handleContexts)
	mux.HandleFunc("/api/contexts/{id}", s.withContext(s.handleContext))
	mux.HandleFunc("/api/contexts/{id}/state", s.withContext(s.handleState))
	mux.HandleFunc("/api/contexts/{id}/segments", s.withContext(s.handleSegments))
	mux.HandleFunc("/api/contexts/{id}/resize", s.withContext(s.handleResize))
	mux.HandleFunc("/api/contexts/{id}/message", s.withContext(s.handleMessage))
	mux.HandleFunc("/api/contexts/{id}/stream", s.withContext(s.handleStream))

	return s.base.mount(withRequestLogging(mux))
}

func (s *Server) handleContexts(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, schema.ListContextsResponse{Contexts: s.registry.IDs()})
	case http.MethodPost:
		id := s.registry.NewContextID()
		if _, err := s.Open(id); err != nil {
			log.Warn("http context create failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, schema.CreateContextResponse{ContextID: id})
		log.Info("http context created", "context", id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.registry.Close(emu.ID()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.hub.Drop(emu.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, stateResponse(emu))
	case http.MethodPut:
		var patch schema.StatePatch
		if err := decodeJSON(r.Body, &patch); err != nil {
			log.Warn("http state decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := emu.Batch(r.Context(), func(state *core.GeometryState) error {
			return state.Apply(patch)
		}); err != nil {
			log.Warn("http state update failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(emu))
		log.Debug("http state updated")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	segments := emu.WindowSegments()
	if parseBool(r.URL.Query().Get("raw")) {
		segments = emu.Segments()
	}
	writeJSON(w, http.StatusOK, schema.SegmentsResponse{
		ContextID: emu.ID(),
		Viewport:  emu.Viewport(),
		Segments:  segments,
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var req schema.ResizeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		log.Warn("http resize decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	viewport := schema.Viewport{Width: req.Width, Height: req.Height}
	if err := emu.Resize(viewport); err != nil {
		log.Warn("http resize failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, stateResponse(emu))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var msg schema.UpdateMessage
	if err := decodeJSON(r.Body, &msg); err != nil {
		log.Warn("http message decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := emu.Bridge().Handle(r.Context(), msg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(emu))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, emu *core.Emulator) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	ch, unsubscribe, seq := s.hub.Subscribe(emu.ID())
	defer unsubscribe()

	snapshot := emu.ChangeEvent(core.Notification{Type: schema.EventSnapshot, Time: time.Now()})
	_ = writeSSEvent(w, snapshot)

	// Events published after Subscribe may show up both in the replay and on
	// ch; sent skips the duplicates.
	sent := seq
	var replayed []schema.ChangeEvent
	if lastID > 0 {
		replayed = s.hub.Replay(emu.ID(), lastID)
		for _, event := range replayed {
			_ = writeSSEvent(w, event)
			sent = max(sent, event.Seq)
		}
	}
	replayCount := len(replayed)
	flusher.Flush()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "seq", seq)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case <-emu.Done():
			log.Info("http stream ended", "reason", "context closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= sent {
				continue
			}
			sent = event.Seq
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) withContext(next func(http.ResponseWriter, *http.Request, *core.Emulator)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := schema.ContextID(r.PathValue("id"))
		log := logx.Ctx(r.Context())
		var (
			emu *core.Emulator
			err error
		)
		if r.Method == http.MethodDelete {
			var ok bool
			if emu, ok = s.registry.Lookup(id); !ok {
				err = schema.ErrContextNotFound
			}
		} else {
			emu, err = s.Open(id)
		}
		if err != nil {
			log.Warn("http context rejected", "context", id, "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		ctx := logx.ContextWithContextIDLogger(r.Context(), log, id)
		next(w, r.WithContext(ctx), emu)
	}
}

// ensurePump forwards the change notifications of emu to the stream hub
// until the emulator closes.
func (s *Server) ensurePump(emu *core.Emulator) {
	s.mu.Lock()
	if _, ok := s.pumps[emu]; ok {
		s.mu.Unlock()
		return
	}
	s.pumps[emu] = struct{}{}
	ctx := s.baseCtx
	s.mu.Unlock()

	notes, cancel := emu.Hub().Watch(s.cfg.WatchDepth)
	log := logx.WithContextID(ctx, emu.ID())
	go func() {
		defer func() {
			cancel()
			closed := false
			select {
			case <-emu.Done():
				closed = true
			default:
			}
			if closed {
				s.hub.Drop(emu.ID())
			}
			s.mu.Lock()
			delete(s.pumps, emu)
			s.mu.Unlock()
			log.Debug("stream pump stopped", "context_closed", closed)
		}()
		log.Debug("stream pump started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-emu.Done():
				return
			case note, ok := <-notes:
				if !ok {
					return
				}
				s.hub.Publish(emu.ChangeEvent(note))
			}
		}
	}()
}

func stateResponse(emu *core.Emulator) schema.StateResponse {
	return schema.StateResponse{
		ContextID: emu.ID(),
		State:     emu.Snapshot(),
		Viewport:  emu.Viewport(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalidArgument),
		errors.Is(err, schema.ErrUnknownAction),
		errors.Is(err, schema.ErrInvalidContext):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrContextNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrContextClosed):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event schema.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
