// Package web provides the operator server: Google authorization flow,
// health and status endpoints, and a live conversation event feed.
package web

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/assistant"
	"github.com/spokenlabs/concierge/pkg/google"
	"github.com/spokenlabs/concierge/pkg/hub"
	"github.com/spokenlabs/concierge/pkg/voice"
)

const eventBufferSize = 200

// Server is the operator-facing HTTP server. It never opens a browser on
// its own; when the assistant needs authorization the operator visits
// /auth/start from the status page.
type Server struct {
	app  *fiber.App
	port string

	auth *google.Manager

	// Pending OAuth state tokens, one per started flow.
	statesMu sync.Mutex
	states   map[string]bool

	// Recent conversation events for late-joining dashboards.
	eventsMu sync.RWMutex
	events   []assistant.Event

	eventHub *hub.Hub

	metricsMu     sync.RWMutex
	metricsSource func() voice.Metrics
}

// NewServer builds the server. auth may be nil for variants without Google
// tools; the auth routes then report that authorization is not configured.
func NewServer(port string, auth *google.Manager) *Server {
	s := &Server{
		port:     port,
		auth:     auth,
		states:   make(map[string]bool),
		events:   make([]assistant.Event, 0, eventBufferSize),
		eventHub: hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Concierge Operator",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/auth/start", s.handleAuthStart)
	app.Get("/auth/callback", s.handleAuthCallback)
	app.Get("/auth/status", s.handleAuthStatus)
	app.Get("/events", s.handleGetEvents)
	app.Get("/metrics", s.handleMetrics)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the server. It blocks; use StartAsync from a bot main.
func (s *Server) Start() error {
	go s.eventHub.Run()
	log.Info("operator server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("operator server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Publish records a conversation event and streams it to connected
// dashboards. It satisfies assistant.Options.Publish.
func (s *Server) Publish(ev assistant.Event) {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > eventBufferSize {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventHub.BroadcastJSON(ev)
}

// SetMetricsSource wires the pipeline's latency metrics into /metrics.
func (s *Server) SetMetricsSource(fn func() voice.Metrics) {
	s.metricsMu.Lock()
	s.metricsSource = fn
	s.metricsMu.Unlock()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
