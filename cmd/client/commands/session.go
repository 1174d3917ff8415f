package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raihanakbr/realtime-stream-client/internal/capture/portaudio"
	"github.com/raihanakbr/realtime-stream-client/internal/metrics"
	"github.com/raihanakbr/realtime-stream-client/internal/stream"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
	"github.com/raihanakbr/realtime-stream-client/internal/websocket"
)

// session is one client run: connection, controller and optional metrics server
type session struct {
	manager  *websocket.Manager
	streamer *stream.Streamer
	sink     *transcript.Sink
	metrics  *metrics.Metrics
	server   *http.Server
}

// display rewrites the current transcript line in place
func display(out io.Writer) func(string) {
	return func(text string) {
		fmt.Fprintf(out, "\r\033[K%s", text)
	}
}

func newSession() (*session, error) {
	cfg := globalConfig
	s := &session{}

	if cfg.Metrics.Address != "" {
		s.metrics = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.server = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		logger.Info("Serving metrics", "address", cfg.Metrics.Address)
	}

	s.sink = transcript.NewSink(display(os.Stdout), logger)
	s.streamer = stream.New(stream.Options{
		Device:     portaudio.Device{},
		Sink:       s.sink,
		ChunkSize:  cfg.Audio.ChunkSize,
		SampleRate: cfg.Audio.TargetSampleRate,
		Logger:     logger,
	})

	manager, err := websocket.NewManager(websocket.ManagerConfig{
		URL:              cfg.Server.URL,
		ReconnectDelay:   cfg.Server.ReconnectDelay,
		WriteTimeout:     cfg.Server.WriteTimeout,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		Logger:           logger,
		Metrics:          s.metrics,
		OnState:          s.streamer.HandleState,
		OnEvent: func(e transcript.Event) {
			s.streamer.HandleEvent(e)
			if e.Kind == transcript.KindFullSentence {
				fmt.Fprintln(os.Stdout)
			}
		},
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.manager = manager
	s.streamer.SetConn(manager)
	return s, nil
}

// run connects, calls fn and tears everything down when fn returns or the
// process is interrupted
func (s *session) run(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer s.close()

	if err := s.manager.Connect(ctx); err != nil {
		logger.Warn("Initial connection failed, retrying in the background", "error", err)
	}

	err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// waitOpen waits until the connection is open or timeout passes
func (s *session) waitOpen(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for s.manager.State() != websocket.StateOpen {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func (s *session) close() {
	if s.streamer != nil {
		if err := s.streamer.Close(); err != nil {
			logger.Warn("Failed to stop capture", "error", err)
		}
	}
	if s.manager != nil {
		s.manager.Close()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
	if s.sink != nil {
		if n := len(s.sink.Commits()); n > 0 {
			logger.Info("Session finished", "sentences", n)
		}
	}
}
