package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/assistant"
	"github.com/spokenlabs/concierge/pkg/hub"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleAuthStart begins the Google consent flow: mint a state token and
// redirect the operator's browser to the consent page.
func (s *Server) handleAuthStart(c *fiber.Ctx) error {
	if s.auth == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "google authorization is not configured for this bot",
		})
	}

	state := uuid.NewString()
	s.statesMu.Lock()
	s.states[state] = true
	s.statesMu.Unlock()

	s.auth.SetRedirectURL("http://" + c.Hostname() + "/auth/callback")
	return c.Redirect(s.auth.AuthURL(state), fiber.StatusFound)
}

// handleAuthCallback completes the flow: verify the state token, exchange
// the code, and confirm to the operator.
func (s *Server) handleAuthCallback(c *fiber.Ctx) error {
	if s.auth == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	if errMsg := c.Query("error"); errMsg != "" {
		return c.Status(fiber.StatusBadRequest).SendString("Authorization denied: " + errMsg)
	}

	state := c.Query("state")
	s.statesMu.Lock()
	known := s.states[state]
	delete(s.states, state)
	s.statesMu.Unlock()
	if !known {
		return c.Status(fiber.StatusBadRequest).SendString("Unknown authorization state; start again from /auth/start.")
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing authorization code.")
	}

	if err := s.auth.Exchange(c.Context(), code); err != nil {
		log.Error("authorization exchange failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Authorization failed: " + err.Error())
	}

	log.Info("google authorization completed", "token_path", s.auth.TokenPath())
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(`<html><body><h2>Authorization complete</h2><p>The assistant can now reach Google Calendar and Gmail. You can close this tab.</p></body></html>`)
}

func (s *Server) handleAuthStatus(c *fiber.Ctx) error {
	if s.auth == nil {
		return c.JSON(fiber.Map{"configured": false})
	}
	return c.JSON(fiber.Map{
		"configured": true,
		"authorized": s.auth.IsAuthorized(),
		"start_url":  "/auth/start",
	})
}

func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	events := make([]assistant.Event, len(s.events))
	copy(events, s.events)
	s.eventsMu.RUnlock()
	return c.JSON(events)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	s.metricsMu.RLock()
	source := s.metricsSource
	s.metricsMu.RUnlock()

	if source == nil {
		return c.JSON(fiber.Map{"available": false})
	}

	m := source()
	return c.JSON(fiber.Map{
		"available":          true,
		"asr_latency_ms":     m.ASRLatency.Milliseconds(),
		"llm_first_token_ms": m.LLMFirstToken.Milliseconds(),
		"tts_first_audio_ms": m.TTSFirstAudio.Milliseconds(),
		"total_latency_ms":   m.TotalLatency.Milliseconds(),
		"audio_chunks_in":    m.AudioChunksIn,
		"audio_chunks_out":   m.AudioChunksOut,
		"tool_calls":         m.ToolCalls,
		"breakdown":          m.FormatLatency(),
	})
}

func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.eventHub, conn)
	client.Run()
}
