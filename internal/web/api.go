package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/chat"
	"bible-rag/internal/config"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

const maxK = 50

type AskRequest struct {
	Question  string `json:"question"`
	Testament string `json:"testament,omitempty"`
	ChunkType string `json:"chunk_type,omitempty"`
	K         int    `json:"k,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Title string            `json:"title"`
	Index models.IndexStats `json:"index"`
}

type RebuildResponse struct {
	Count int `json:"document_count"`
}

// APIHandler serves the JSON API under /api.
type APIHandler struct {
	app       config.AppConfig
	responder Responder
	index     Index
	sessions  *chat.Store
}

func NewAPIHandler(app config.AppConfig, responder Responder, index Index, sessions *chat.Store) *APIHandler {
	return &APIHandler{app: app, responder: responder, index: index, sessions: sessions}
}

// Ask handles POST /api/ask
func (h *APIHandler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	var opts []rag.Option
	if req.Testament != "" {
		t, err := models.ParseTestament(req.Testament)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		opts = append(opts, rag.WithTestament(t))
	}
	switch models.ChunkType(req.ChunkType) {
	case "":
	case models.ChunkTypeVerse, models.ChunkTypePassage:
		opts = append(opts, rag.WithChunkType(models.ChunkType(req.ChunkType)))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "chunk_type must be verse or passage")
	}
	if req.K < 0 || req.K > maxK {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d, or 0 for the default", maxK))
	}
	if req.K > 0 {
		opts = append(opts, rag.WithK(req.K))
	}

	ctx := c.Request().Context()
	ans, err := h.responder.Answer(ctx, req.Question, opts...)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuestion) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: rag.FriendlyError(err)})
		}
		log.Error().Err(err).Str("question", req.Question).Msg("Failed to answer question")
		h.sessions.Record(ctx, currentSession(c, h.sessions), req.Question, nil, rag.FriendlyError(err))
		return c.JSON(statusFor(err), ErrorResponse{Error: rag.FriendlyError(err)})
	}
	h.sessions.Record(ctx, currentSession(c, h.sessions), ans.Question, ans, "")
	return c.JSON(http.StatusOK, ans)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmbedding), errors.Is(err, models.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrRebuildInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Status handles GET /api/status
func (h *APIHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Title: h.app.Title, Index: h.index.Stats()})
}

// History handles GET /api/history
func (h *APIHandler) History(c echo.Context) error {
	s := existingSession(c, h.sessions)
	if s == nil {
		return c.JSON(http.StatusOK, []models.Turn{})
	}
	return c.JSON(http.StatusOK, s.Turns())
}

// ClearHistory handles DELETE /api/history
func (h *APIHandler) ClearHistory(c echo.Context) error {
	if s := existingSession(c, h.sessions); s != nil {
		h.sessions.Clear(s)
	}
	return c.NoContent(http.StatusNoContent)
}

// Rebuild handles POST /api/index/rebuild
func (h *APIHandler) Rebuild(c echo.Context) error {
	n, err := h.index.Rebuild(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrRebuildInProgress) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		log.Error().Err(err).Msg("Index rebuild failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Rebuild failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, RebuildResponse{Count: n})
}

func (h *APIHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/ask", h.Ask)
	g.GET("/status", h.Status)
	g.GET("/history", h.History)
	g.DELETE("/history", h.ClearHistory)
	g.POST("/index/rebuild", h.Rebuild)
}
