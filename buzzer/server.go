package buzzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
)

type alarmRequest struct {
	Status string `json:"status"`
}

type alarmResponse struct {
	Message string `json:"message"`
}

type stateResponse struct {
	Status string    `json:"status"`
	Since  time.Time `json:"since"`
}

// Server exposes the buzzer pin over HTTP
type Server struct {
	pin    Output
	logger zerolog.Logger

	mu    sync.Mutex
	on    bool
	since time.Time
}

// NewServer creates a server driving pin
func NewServer(pin Output, logger zerolog.Logger) *Server {
	return &Server{
		pin:    pin,
		logger: logger.With().Str("component", "buzzer").Logger(),
		since:  time.Now(),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/alarm", s.handleAlarm)
	return mux
}

// On reports whether the buzzer is sounding
func (s *Server) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

func (s *Server) handleAlarm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.setAlarm(w, r)
	case http.MethodGet:
		s.mu.Lock()
		resp := stateResponse{Status: statusString(s.on), Since: s.since}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) setAlarm(w http.ResponseWriter, r *http.Request) {
	var req alarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = "off"
	}

	on := req.Status == "on"
	if err := s.set(on); err != nil {
		s.logger.Error().Err(err).Bool("on", on).Msg("failed to drive buzzer pin")
		http.Error(w, "gpio failure", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alarmResponse{Message: fmt.Sprintf("Alarm set to %s", req.Status)})
}

func (s *Server) set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pin.Out(level); err != nil {
		return err
	}
	if s.on != on {
		s.since = time.Now()
		if on {
			s.logger.Warn().Msg("ALARM ON")
		} else {
			s.logger.Info().Msg("ALARM OFF")
		}
	}
	s.on = on
	return nil
}

// ListenAndServe serves on addr until ctx is cancelled, then silences the buzzer
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("buzzer server listening")
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		serveErr = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	if err := s.set(false); err != nil {
		s.logger.Error().Err(err).Msg("failed to silence buzzer on shutdown")
	}
	s.logger.Info().Msg("buzzer server stopped")
	return serveErr
}

func statusString(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
