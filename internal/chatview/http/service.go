package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/chatview/ctx"
	"github.com/sjzar/chatview/internal/chatview/database"
	"github.com/sjzar/chatview/internal/chatview/media"
	"github.com/sjzar/chatview/internal/errors"
)

type Service struct {
	ctx   *ctx.Context
	db    *database.Service
	media *media.Service

	router *gin.Engine
	server *http.Server
}

func NewService(appCtx *ctx.Context, db *database.Service, m *media.Service) *Service {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("Failed to set trusted proxies")
	}

	// Middleware
	router.Use(
		errors.RecoveryMiddleware(),
		errors.ErrorHandlerMiddleware(),
		gin.LoggerWithWriter(log.Logger, "/health"),
		corsMiddleware(),
	)

	s := &Service{
		ctx:    appCtx,
		db:     db,
		media:  m,
		router: router,
	}

	s.initRouter()
	return s
}

func (s *Service) Start() error {

	s.server = &http.Server{
		Addr:    s.ctx.HTTPAddr,
		Handler: s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			log.Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Msg("Starting HTTP server on " + s.ctx.HTTPAddr)

	return nil
}

func (s *Service) ListenAndServe() error {

	s.server = &http.Server{
		Addr:    s.ctx.HTTPAddr,
		Handler: s.router,
	}

	log.Info().Msg("Starting HTTP server on " + s.ctx.HTTPAddr)
	return s.server.ListenAndServe()
}

func (s *Service) Stop() error {

	if s.server == nil {
		return nil
	}

	// 超时上下文优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Debug().Err(err).Msg("Failed to shutdown HTTP server")
		return nil
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Service) GetRouter() *gin.Engine {
	return s.router
}
