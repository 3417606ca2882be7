// Package httpapi exposes the agent protocol the medical platform calls.
package httpapi

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

type RouterConfig struct {
	AgentHandler   *AgentHandler
	MetricsHandler http.Handler // Optional
	AllowOrigins   []string     // Platform origins allowed to embed the settings page
	Logger         *logrus.Entry
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	if origins := cleanOrigins(cfg.AllowOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Content-Type", "X-Requested-With"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	h := cfg.AgentHandler
	router.GET("/", h.Index)
	router.GET("/healthz", h.Health)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	router.POST("/status", h.Status)
	router.POST("/init", h.Init)
	router.POST("/remove", h.Remove)
	router.POST("/message", h.Message)
	router.GET("/settings", h.SettingsPage)
	router.POST("/settings", h.SaveSettings)

	return router
}

// NewServer wraps the router into an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func cleanOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
