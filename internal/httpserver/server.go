// Package httpserver exposes the trigger intake API: raw trigger
// events are posted here and queued for the dispatch loop.
package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/relay/internal/model"
)

const (
	// DefaultEventBuffer is the default queue size for accepted events.
	DefaultEventBuffer = 1024

	// DefaultMaxEventSize caps the body of a single trigger event.
	DefaultMaxEventSize = 10 * 1024 * 1024 // 10MB
)

// ServerConfig holds tunable parameters for the intake server.
type ServerConfig struct {
	EventBuffer  int
	MaxEventSize int64
}

// Server accepts trigger events over HTTP and queues them for dispatch.
type Server struct {
	addr         string
	events       chan model.TriggerEvent
	maxEventSize int64
	server       *http.Server
	ctx          context.Context
	cancel       context.CancelFunc
	startTime    time.Time
}

// NewServer creates a new intake server. Default addr is "127.0.0.1:8483".
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = "127.0.0.1:8483"
	}
	eventBuffer := DefaultEventBuffer
	maxEventSize := int64(DefaultMaxEventSize)
	if len(conf) > 0 {
		if conf[0].EventBuffer > 0 {
			eventBuffer = conf[0].EventBuffer
		}
		if conf[0].MaxEventSize > 0 {
			maxEventSize = conf[0].MaxEventSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:         addr,
		events:       make(chan model.TriggerEvent, eventBuffer),
		maxEventSize: maxEventSize,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.POST("/v1/trigger", s.handleTrigger)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the intake server and closes the event
// queue so the dispatch loop can drain and exit.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	close(s.events)
	return err
}

// Events returns the queue of accepted trigger events.
func (s *Server) Events() <-chan model.TriggerEvent { return s.events }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"queue_depth": len(s.events),
	})
}

func (s *Server) handleTrigger(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, s.maxEventSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if int64(len(body)) > s.maxEventSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "trigger event exceeds size limit"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty trigger event"})
		return
	}

	select {
	case s.events <- model.TriggerEvent{Source: "http", Body: string(body)}:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue is full"})
	}
}
