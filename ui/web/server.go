// Package web serves rendered waterfall frames and accepts capture rows over
// HTTP and WebSocket.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/spectrumx/svi/core"
	"github.com/spectrumx/svi/core/app"
	"github.com/spectrumx/svi/core/capture"
	"github.com/spectrumx/svi/core/jobs"
	uiwaterfall "github.com/spectrumx/svi/ui/waterfall"
)

// Controller is the part of the application the web server talks to.
type Controller interface {
	SubmitCapture([]byte) error
	RequestRescale()
	SetMaxHold(bool)
	Frames() <-chan app.Frame
	Snapshot() core.Snapshot
	Jobs() *jobs.Client
}

// Server delivers frames to browsers and ingests capture rows.
type Server struct {
	controller Controller
	logger     *zap.Logger
	httpServer *http.Server

	mu          sync.RWMutex
	latest      app.Frame
	subscribers map[chan app.Frame]struct{}

	done chan struct{}
}

// NewServer returns a web server for the given controller, listening on the
// given address once started.
func NewServer(controller Controller, address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := &Server{
		controller:  controller,
		logger:      logger,
		subscribers: make(map[chan app.Frame]struct{}),
		done:        make(chan struct{}),
	}
	result.httpServer = &http.Server{Addr: address, Handler: result.Handler()}
	return result
}

// Handler returns the HTTP handler of this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/waterfall.png", s.handleWaterfall)
	mux.HandleFunc("/legend.png", s.handleLegend)
	mux.HandleFunc("/scale", s.handleScale)
	mux.HandleFunc("/captures", s.handleCaptures)
	mux.HandleFunc("/rescale", s.handleRescale)
	mux.HandleFunc("/maxhold", s.handleMaxHold)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/jobs/spectrogram", s.handleCreateSpectrogram)
	mux.HandleFunc("/jobs/", s.handleJobMetadata)
	return mux
}

// Start serving. The frame pump and the listener run until Stop is called.
func (s *Server) Start() {
	go s.pumpFrames()
	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server failed", zap.Error(err))
		}
	}()
	s.logger.Info("web server listening", zap.String("address", s.httpServer.Addr))
}

// Stop the server and disconnect all subscribers.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)
	return s.httpServer.Shutdown(ctx)
}

// pumpFrames keeps the latest frame and fans it out to all subscribers.
func (s *Server) pumpFrames() {
	for {
		select {
		case frame := <-s.controller.Frames():
			s.mu.Lock()
			s.latest = frame
			for subscriber := range s.subscribers {
				select {
				case subscriber <- frame:
				default:
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *Server) subscribe() chan app.Frame {
	subscriber := make(chan app.Frame, 1)
	s.mu.Lock()
	s.subscribers[subscriber] = struct{}{}
	s.mu.Unlock()
	return subscriber
}

func (s *Server) unsubscribe(subscriber chan app.Frame) {
	s.mu.Lock()
	delete(s.subscribers, subscriber)
	s.mu.Unlock()
}

func (s *Server) currentFrame() app.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	frame := s.currentFrame()
	if frame.Plot == nil {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(frame.Plot)
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	frame := s.currentFrame()
	if frame.Legend == nil {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(frame.Legend)
}

type scaleResponse struct {
	From  float64       `json:"from"`
	To    float64       `json:"to"`
	Marks []core.DBMark `json:"marks"`
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	snapshot := s.controller.Snapshot()
	response := scaleResponse{
		From:  float64(snapshot.Scale.From),
		To:    float64(snapshot.Scale.To),
		Marks: uiwaterfall.DBMarks(snapshot.Scale),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	err = s.controller.SubmitCapture(body)
	var validationErr *capture.ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case err != nil:
		s.logger.Warn("capture rejected", zap.Error(err))
		http.Error(w, "cannot process capture", http.StatusUnprocessableEntity)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleRescale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.controller.RequestRescale()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMaxHold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.controller.SetMaxHold(r.URL.Query().Get("on") == "true")
	w.WriteHeader(http.StatusAccepted)
}

type createSpectrogramRequest struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Config map[string]any `json:"config,omitempty"`
}

func (s *Server) handleCreateSpectrogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	client := s.controller.Jobs()
	if client == nil {
		http.Error(w, "no backend configured", http.StatusServiceUnavailable)
		return
	}

	var request createSpectrogramRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		http.Error(w, "cannot parse request body", http.StatusBadRequest)
		return
	}

	jobID, err := client.CreateSpectrogram(r.Context(), request.Width, request.Height, request.Config)
	if err != nil {
		s.logger.Warn("spectrogram job submission failed", zap.Error(err))
		http.Error(w, "job submission failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (s *Server) handleJobMetadata(w http.ResponseWriter, r *http.Request) {
	client := s.controller.Jobs()
	if client == nil {
		http.Error(w, "no backend configured", http.StatusServiceUnavailable)
		return
	}
	jobID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	metadata, err := client.Metadata(r.Context(), jobID)
	if err != nil {
		s.logger.Warn("job metadata lookup failed", zap.String("job", jobID), zap.Error(err))
		http.Error(w, "metadata lookup failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metadata)
}

// handleWebsocket streams each newly rendered plot frame as one binary
// message until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	connection, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer connection.Close(websocket.StatusNormalClosure, "bye")

	subscriber := s.subscribe()
	defer s.unsubscribe(subscriber)

	ctx := r.Context()
	for {
		select {
		case frame := <-subscriber:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := connection.Write(writeCtx, websocket.MessageBinary, frame.Plot)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
