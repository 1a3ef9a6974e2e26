// Package api exposes a running engine over HTTP: transport control,
// mix adjustments, plan export, and Prometheus metrics. It is the
// remote-control surface the serve command puts in front of a mix.
package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mixdeck/config"
	"mixdeck/engine"
)

type Server struct {
	cfg    *config.Config
	eng    *engine.Engine
	router *gin.Engine
}

func New(cfg *config.Config, eng *engine.Engine) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		eng:    eng,
		router: gin.Default(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mixdeck"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.GetStatus)

		v1.POST("/play", s.Play)
		v1.POST("/pause", s.Pause)
		v1.POST("/stop", s.Stop)
		v1.POST("/seek", s.Seek)

		v1.POST("/tracks/:track/gain", s.SetGain)
		v1.POST("/tracks/:track/mute", s.SetMute)
		v1.POST("/tracks/:track/solo", s.SetSolo)
		v1.POST("/ducking", s.SetDucking)

		v1.GET("/plan", s.GetPlan)
		v1.POST("/plan", s.LoadPlan)
	}
}

// Start runs the server on the configured address
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
