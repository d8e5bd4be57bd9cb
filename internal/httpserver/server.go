// Package httpserver exposes the dispatcher over a small HTTP API: message
// submission and consent resolution. It doubles as the consent surface for
// headless deployments, where pending prompts are listed and answered over
// HTTP instead of a dialog.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/modemstack/smsdispatch/internal/config"
	"github.com/modemstack/smsdispatch/internal/dispatch"
	"github.com/modemstack/smsdispatch/internal/logging"
)

// Server implements the HTTP surface in front of a running dispatcher.
type Server struct {
	config     config.HTTPConfig
	dispatcher *dispatch.Dispatcher
	httpServer *http.Server
	stopOnce   sync.Once

	promptsMu sync.Mutex
	prompts   map[int64]dispatch.ConfirmationRequest

	nextMessageID int64
	idMu          sync.Mutex
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg config.HTTPConfig, d *dispatch.Dispatcher) *Server {
	if d == nil {
		panic("dispatcher cannot be nil for HTTP server")
	}
	return &Server{
		config:     cfg,
		dispatcher: d,
		prompts:    make(map[int64]dispatch.ConfirmationRequest),
	}
}

// ConsentSurface returns the surface to wire into the dispatcher so pending
// prompts become resolvable over the API.
func (s *Server) ConsentSurface() dispatch.ConsentSurface {
	return dispatch.ConsentFunc(func(req dispatch.ConfirmationRequest) {
		s.promptsMu.Lock()
		s.prompts[req.PromptID] = req
		s.promptsMu.Unlock()
		slog.Info("confirmation prompt pending",
			slog.Int64("prompt_id", req.PromptID),
			slog.String("kind", req.Kind.String()),
			slog.String("caller", req.Caller),
			slog.String("dest", req.Dest),
		)
	})
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sms", s.handleSendSMS)
	mux.HandleFunc("GET /v1/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /v1/prompts/{id}/resolve", s.handleResolvePrompt)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe starts the HTTP server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	if s.httpServer != nil {
		return errors.New("http server already started")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	slog.Info("starting HTTP server", slog.String("address", s.config.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server ListenAndServe error", slog.Any("error", err))
		return err
	}
	slog.Info("HTTP server stopped")
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(timeout time.Duration) {
	s.stopOnce.Do(func() {
		if s.httpServer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown error", slog.Any("error", err))
		}
	})
}

type sendSMSRequest struct {
	To             string `json:"to"`
	Text           string `json:"text"`
	Caller         string `json:"caller"`
	RequestReport  bool   `json:"request_report"`
	Persist        bool   `json:"persist"`
	ValidityPeriod int    `json:"validity_period"`
}

type sendSMSResponse struct {
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendSMSRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Bad Request: invalid JSON - %v", err), http.StatusBadRequest)
		return
	}
	if req.To == "" || req.Text == "" {
		http.Error(w, "Bad Request: 'to' and 'text' are required", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		req.Caller = "httpserver"
	}

	msgID := s.allocateMessageID()
	ctx = logging.ContextWithMessageID(ctx, msgID)
	ctx = logging.ContextWithCaller(ctx, req.Caller)
	slog.InfoContext(ctx, "HTTP send request accepted", slog.String("dest", req.To))

	sentSink := func(out dispatch.Outcome) {
		slog.Info("send outcome",
			slog.Int64("msg_id", out.MessageID),
			slog.String("result", out.Result.String()),
			slog.Int("error_code", out.ErrorCode),
		)
	}
	var reportSink dispatch.ResultSink
	if req.RequestReport {
		reportSink = func(out dispatch.Outcome) {
			slog.Info("delivery outcome",
				slog.Int64("msg_id", out.MessageID),
				slog.String("result", out.Result.String()),
			)
		}
	}

	caller := dispatch.Caller{Package: req.Caller}
	if needsMultipart(req.Text) {
		s.dispatcher.SendMultipartText(ctx, dispatch.MultipartTextRequest{
			Dest:           req.To,
			Text:           req.Text,
			Caller:         caller,
			SentSink:       sentSink,
			DeliverySink:   reportSink,
			ValidityPeriod: req.ValidityPeriod,
			MessageID:      msgID,
			Persist:        req.Persist,
		})
	} else {
		s.dispatcher.SendText(ctx, dispatch.TextRequest{
			Dest:           req.To,
			Text:           req.Text,
			Caller:         caller,
			SentSink:       sentSink,
			DeliverySink:   reportSink,
			ValidityPeriod: req.ValidityPeriod,
			MessageID:      msgID,
			Persist:        req.Persist,
		})
	}

	respondJSON(w, http.StatusAccepted, sendSMSResponse{MessageID: msgID, Status: "accepted"})
}

type promptView struct {
	PromptID int64  `json:"prompt_id"`
	Kind     string `json:"kind"`
	Caller   string `json:"caller"`
	Dest     string `json:"dest"`
	Category string `json:"category"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	s.promptsMu.Lock()
	views := make([]promptView, 0, len(s.prompts))
	for _, req := range s.prompts {
		views = append(views, promptView{
			PromptID: req.PromptID,
			Kind:     req.Kind.String(),
			Caller:   req.Caller,
			Dest:     req.Dest,
			Category: req.Category.String(),
		})
	}
	s.promptsMu.Unlock()
	respondJSON(w, http.StatusOK, views)
}

type resolvePromptRequest struct {
	Decision string `json:"decision"`
	Remember bool   `json:"remember"`
}

func (s *Server) handleResolvePrompt(w http.ResponseWriter, r *http.Request) {
	promptID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request: invalid prompt id", http.StatusBadRequest)
		return
	}

	var req resolvePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Bad Request: invalid JSON - %v", err), http.StatusBadRequest)
		return
	}

	var decision dispatch.ConsentDecision
	switch req.Decision {
	case "allow":
		decision = dispatch.ConsentAllow
	case "deny":
		decision = dispatch.ConsentDeny
	case "dismiss":
		decision = dispatch.ConsentDismiss
	default:
		http.Error(w, "Bad Request: decision must be allow, deny or dismiss", http.StatusBadRequest)
		return
	}

	s.promptsMu.Lock()
	_, known := s.prompts[promptID]
	delete(s.prompts, promptID)
	s.promptsMu.Unlock()
	if !known {
		http.Error(w, "Not Found: unknown prompt", http.StatusNotFound)
		return
	}

	s.dispatcher.ResolveConfirmation(promptID, decision, req.Remember)
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *Server) allocateMessageID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextMessageID++
	return s.nextMessageID
}

// needsMultipart mirrors the single-segment GSM-7/UCS2 limits. Longer
// payloads go through the multipart pipeline.
func needsMultipart(text string) bool {
	ascii := true
	n := 0
	for _, r := range text {
		if r > 0x7F {
			ascii = false
		}
		n++
	}
	if ascii {
		return n > 160
	}
	return n > 70
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode HTTP response", slog.Any("error", err))
	}
}
