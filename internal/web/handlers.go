package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/chat"
	"bible-rag/internal/config"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

const (
	sessionCookie = "biblica_session"
	csrfField     = "csrf"
)

func sessionID(c echo.Context) string {
	if ck, err := c.Cookie(sessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

// existingSession returns the caller's session or nil; read-only routes never create one.
func existingSession(c echo.Context, sessions *chat.Store) *chat.Session {
	s, _ := sessions.Lookup(c.Request().Context(), sessionID(c))
	return s
}

// currentSession returns the caller's session, creating it and setting the cookie when needed.
func currentSession(c echo.Context, sessions *chat.Store) *chat.Session {
	id := sessionID(c)
	s := sessions.Get(c.Request().Context(), id)
	if s.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     sessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(30 * 24 * time.Hour),
		})
	}
	return s
}

// HealthHandler handles GET /health
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

// ChatHandler serves the HTML chat page and its form posts.
type ChatHandler struct {
	app       config.AppConfig
	responder Responder
	index     Index
	sessions  *chat.Store
}

func NewChatHandler(app config.AppConfig, responder Responder, index Index, sessions *chat.Store) *ChatHandler {
	return &ChatHandler{app: app, responder: responder, index: index, sessions: sessions}
}

type pageData struct {
	CSRF     string
	Title    string
	Icon     string
	Stats    models.IndexStats
	Starters []string
	Turns    []models.Turn
	Notice   string
}

var notices = map[string]string{
	"rebuilt":        "Index rebuilt.",
	"rebuild-busy":   "A rebuild is already running.",
	"rebuild-failed": "Rebuilding the index failed. Check the server logs.",
	"empty":          "Please enter a question.",
}

// Page handles GET /
func (h *ChatHandler) Page(c echo.Context) error {
	data := pageData{
		Title:    h.app.Title,
		Icon:     h.app.Icon,
		Stats:    h.index.Stats(),
		Starters: models.StarterQuestions,
		Notice:   notices[c.QueryParam("notice")],
	}
	data.CSRF, _ = c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	if s := existingSession(c, h.sessions); s != nil {
		data.Turns = s.Turns()
	}
	return c.Render(http.StatusOK, "index.html", data)
}

// Ask handles POST /chat
func (h *ChatHandler) Ask(c echo.Context) error {
	question := strings.TrimSpace(c.FormValue("question"))
	if question == "" {
		return c.Redirect(http.StatusSeeOther, "/?notice=empty")
	}

	s := currentSession(c, h.sessions)
	ctx := c.Request().Context()
	ans, err := h.responder.Answer(ctx, question)
	if err != nil {
		log.Error().Err(err).Str("question", question).Msg("Failed to answer question")
		h.sessions.Record(ctx, s, question, nil, rag.FriendlyError(err))
	} else {
		h.sessions.Record(ctx, s, question, ans, "")
	}
	return c.Redirect(http.StatusSeeOther, "/#latest")
}

// Clear handles POST /clear
func (h *ChatHandler) Clear(c echo.Context) error {
	if s := existingSession(c, h.sessions); s != nil {
		h.sessions.Clear(s)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// Rebuild handles POST /rebuild
func (h *ChatHandler) Rebuild(c echo.Context) error {
	notice := "rebuilt"
	if _, err := h.index.Rebuild(c.Request().Context()); err != nil {
		log.Error().Err(err).Msg("Index rebuild failed")
		notice = "rebuild-failed"
		if errors.Is(err, models.ErrRebuildInProgress) {
			notice = "rebuild-busy"
		}
	}
	return c.Redirect(http.StatusSeeOther, "/?notice="+url.QueryEscape(notice))
}

// csrf guards the form posts. The token is issued with the page and sent back in a
// hidden field; cross-site posts carry neither.
func csrf() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteStrictMode,
	})
}

func (h *ChatHandler) RegisterRoutes(e *echo.Echo) {
	guard := csrf()
	e.GET("/", h.Page, guard)
	e.POST("/chat", h.Ask, guard)
	e.POST("/clear", h.Clear, guard)
	e.POST("/rebuild", h.Rebuild, guard)
}
