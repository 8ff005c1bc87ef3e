package web

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/chat"
	"bible-rag/internal/config"
	"bible-rag/internal/models"
	"bible-rag/internal/rag"
)

//go:embed templates/*.html
var templateFS embed.FS

// Responder answers one question.
type Responder interface {
	Answer(ctx context.Context, question string, opts ...rag.Option) (*models.Answer, error)
}

// Index reports on and rebuilds the vector index.
type Index interface {
	Rebuild(ctx context.Context) (int, error)
	Stats() models.IndexStats
}

type renderer struct {
	templates *template.Template
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

func newRenderer() *renderer {
	funcs := template.FuncMap{"markdown": RenderMarkdown}
	t := template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
	return &renderer{templates: t}
}

// NewServer wires middleware, templates and all routes.
func NewServer(app config.AppConfig, responder Responder, index Index, sessions *chat.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newRenderer()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	NewHealthHandler().RegisterRoutes(e)
	NewChatHandler(app, responder, index, sessions).RegisterRoutes(e)
	NewAPIHandler(app, responder, index, sessions).RegisterRoutes(e.Group("/api"))
	return e
}
