package api

import (
	"context"
	"log/slog"

	"moodmate/app/config"
	"moodmate/app/service/conversation"
	"moodmate/app/service/goals"
	"moodmate/app/service/journal"
	"moodmate/app/service/proactive"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

const errorReply = "Sorry, something went wrong on my end. Please try again in a moment."

// Server is the thin HTTP shell around the engine. It owns no
// decision logic: every route delegates to a service.
type Server struct {
	cfg             *config.Config
	app             *fiber.App
	conversationSvc *conversation.Service
	proactiveSvc    *proactive.Service
	goalsSvc        *goals.Service
	journalSvc      *journal.Service
}

var _ do.Shutdownable = (*Server)(nil)

func New(di *do.Injector) (*Server, error) {
	s := &Server{
		cfg:             do.MustInvoke[*config.Config](di),
		app:             fiber.New(fiber.Config{DisableStartupMessage: true}),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		proactiveSvc:    do.MustInvoke[*proactive.Service](di),
		goalsSvc:        do.MustInvoke[*goals.Service](di),
		journalSvc:      do.MustInvoke[*journal.Service](di),
	}

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Post("/chat", s.handleChat)
	s.app.Get("/proactive/check", s.handleProactiveCheck)
	s.app.Get("/goals", s.handleGoals)
	s.app.Post("/journal", s.handleJournalAdd)
	s.app.Get("/journal", s.handleJournalList)

	return s, nil
}

func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	if err := s.app.Listen(s.cfg.API.Listen); err != nil {
		slog.Error("API server stopped", "error", err)
	}
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Proactive bool   `json:"proactive"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest

	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and message are required",
		})
	}

	reply, err := s.conversationSvc.HandleTurn(c.UserContext(), req.UserID, req.Message)
	if err != nil {
		slog.Error("Chat turn failed", "user_id", req.UserID, "error", err)

		return c.JSON(chatResponse{Response: errorReply})
	}

	return c.JSON(chatResponse{Response: reply.Message, Proactive: reply.Proactive})
}

func (s *Server) handleProactiveCheck(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	prompt, err := s.proactiveSvc.Evaluate(c.UserContext(), userID)
	if err != nil {
		slog.Error("Proactive evaluation failed", "user_id", userID, "error", err)

		return c.JSON(fiber.Map{"show_prompt": false})
	}

	if prompt == nil {
		return c.JSON(fiber.Map{"show_prompt": false})
	}

	return c.JSON(fiber.Map{
		"show_prompt": true,
		"prompt":      prompt,
	})
}

func (s *Server) handleGoals(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	active, err := s.goalsSvc.ListActive(c.UserContext(), userID)
	if err != nil {
		slog.Error("Goal listing failed", "user_id", userID, "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list goals",
		})
	}

	return c.JSON(fiber.Map{"goals": active})
}

type journalRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

func (s *Server) handleJournalAdd(c *fiber.Ctx) error {
	var req journalRequest

	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and text are required",
		})
	}

	entry, err := s.journalSvc.Add(c.UserContext(), req.UserID, req.Date, req.Text)
	if err != nil {
		slog.Error("Journal ingestion failed", "user_id", req.UserID, "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store journal entry",
		})
	}

	return c.JSON(entry)
}

func (s *Server) handleJournalList(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	entries, err := s.journalSvc.List(c.UserContext(), userID)
	if err != nil {
		slog.Error("Journal listing failed", "user_id", userID, "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list journal entries",
		})
	}

	return c.JSON(fiber.Map{"entries": entries})
}
