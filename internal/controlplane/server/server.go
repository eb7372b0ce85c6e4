package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/copytrade"
	"github.com/betbot/copytrade/internal/ports"
)

var log = logrus.WithField("component", "controlplane")

// Controller 控制面需要的编排器能力
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	SetEnabled(enabled bool)
	Enabled() bool
	Status() copytrade.Status
	Recent(ctx context.Context, limit int) ([]ports.RecordSummary, error)
}

type Config struct {
	// Token 非空时 /api 需要 Authorization: Bearer <token>（websocket 可用 ?token=）
	Token          string
	AllowedOrigins []string
}

type Server struct {
	cfg Config
	ctl Controller
	hub *Hub
}

func New(cfg Config, ctl Controller) *Server {
	return NewWithHub(cfg, ctl, NewHub())
}

// NewWithHub 使用外部创建的 Hub（编排器构造时已作为 Reporter 持有）
func NewWithHub(cfg Config, ctl Controller, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{cfg: cfg, ctl: ctl, hub: hub}
}

// Hub 复制报告的 websocket 广播中心；交给编排器作为 Reporter
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Close() error {
	s.hub.Close()
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api", s.auth())
	api.GET("/status", s.wrap(s.handleStatus))
	api.POST("/start", s.wrap(s.handleStart))
	api.POST("/stop", s.wrap(s.handleStop))
	api.PUT("/copying", s.wrap(s.handleCopying))
	api.GET("/replications", s.wrap(s.handleReplications))
	api.GET("/events", s.wrap(s.handleEvents))

	// UI
	r.GET("/", s.wrap(s.handleUI))

	if len(s.cfg.AllowedOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// wrap 把 net/http handler 适配到 gin
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c.Writer, c.Request)
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Token == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if got == "" {
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) != 1 {
			writeError(c.Writer, http.StatusUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
