package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"stress-client/internal/events"
)

// Status はクライアントの現在の状態
type Status struct {
	ClientID      string `json:"client_id,omitempty"`
	State         string `json:"state"`
	KeySetSize    int    `json:"key_set_size"`
	PendingWrites int    `json:"pending_writes"`
	NextWindow    int64  `json:"next_window"`
}

// StatusFunc は現在の状態を返す。他のゴルーチンから呼ばれる
type StatusFunc func() Status

// Server はメトリクスとイベントを配信するHTTPサーバー
type Server struct {
	addr    string
	metrics *Metrics
	bus     *events.Bus
	status  StatusFunc
	logger  *zap.Logger

	server *http.Server
}

// NewServer は新しいサーバーを作成する
// busとstatusはnilでもよい
func NewServer(addr string, m *Metrics, bus *events.Bus, status StatusFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:    addr,
		metrics: m,
		bus:     bus,
		status:  status,
		logger:  logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if reg := s.metrics.Registry(); reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.bus != nil {
		mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	}
	return mux
}

// Start はctxがキャンセルされるまでサーバーを動かす
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry server", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Telemetry server shutdown failed", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("telemetry server failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.status == nil {
		http.Error(w, "Status not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.status())
}

// handleWebSocket はイベントを購読してクライアントへ送り続ける
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	defer func() {
		_ = ws.Close()
	}()

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	// 受信は切断の検知にだけ使う
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, e); err != nil {
				s.logger.Debug("Websocket send failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON", zap.Error(err))
	}
}
