package server

import (
	"net/http"
	"time"

	"backend/internal/config"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/modelstore"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	db       *sqlx.DB
	cfg      *config.Config
	store    *modelstore.Store
	notifier service.SpamNotifier
	logger   *zap.Logger
	log      *logrus.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, store *modelstore.Store, notifier service.SpamNotifier, logger *zap.Logger, log *logrus.Logger) *Server {
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	s := &Server{
		router:   router,
		db:       db,
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger,
		log:      log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	jwtSecret := []byte(s.cfg.Auth.JWTSecret)
	tokenTTL := time.Duration(s.cfg.Auth.TokenTTLHours) * time.Hour

	authRepo := repository.NewAuthRepository(s.db, s.log)
	authService := service.NewAuthService(authRepo, s.cfg.Auth.JWTSecret, tokenTTL, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.log)

	classificationRepo := repository.NewClassificationRepository(s.db, s.logger)
	predictionService := service.NewPredictionService(s.store, classificationRepo, s.notifier, s.logger)
	classificationHandler := handler.NewClassificationHandler(predictionService, classificationRepo, s.store, s.logger)

	feedbackRepo := repository.NewFeedbackRepository(s.db, s.logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, s.log)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService, s.log)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Prediction accepts anonymous callers (the Postfix hook posts here
	// without credentials) but records the identity when one is present.
	s.router.POST("/api/classify", middleware.OptionalAuth(jwtSecret, s.logger), classificationHandler.Classify)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.Auth(jwtSecret, s.logger))
	{
		authRequired.POST("/auth/logout", authHandler.Logout)
		authRequired.GET("/classifications", classificationHandler.List)
		authRequired.POST("/classifications/:id/feedback", feedbackHandler.Submit)
		authRequired.GET("/stats", classificationHandler.Stats)
		authRequired.GET("/model/info", classificationHandler.ModelInfo)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
