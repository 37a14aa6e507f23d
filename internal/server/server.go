package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/config"
	"github.com/jeromeabel/lapreuveduconcept/internal/handlers"
	"github.com/jeromeabel/lapreuveduconcept/internal/middleware"
	"github.com/jeromeabel/lapreuveduconcept/internal/visitor"
)

type Server struct {
	cfg      config.Config
	handler  *handlers.Handler
	visitors *visitor.Provider
	log      *logrus.Logger
}

func New(cfg config.Config, handler *handlers.Handler, visitors *visitor.Provider, log *logrus.Logger) *Server {
	return &Server{
		cfg:      cfg,
		handler:  handler,
		visitors: visitors,
		log:      log,
	}
}

// HTTPServer wraps the routes in an http.Server with the usual timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + strconv.Itoa(s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(s.log), gin.Recovery())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", s.handler.Health.Health)

	api := r.Group("/api")
	{
		vote := api.Group("/vote")
		vote.Use(middleware.VisitorMiddleware(s.visitors, s.cfg.CookieSecure, s.log))
		{
			vote.GET("", s.handler.Vote.GetVotes)
			vote.POST("", s.handler.Vote.ToggleVote)
		}
	}

	return r
}
