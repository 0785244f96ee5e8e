// Package server exposes the identity, session and consent usecases over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"vibetrust/config"
	"vibetrust/internal/consent"
	"vibetrust/internal/identity"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	engine *gin.Engine
	addr   string
	logger logger.Logger
}

func New(cfg config.Server, log logger.Logger, identityUc identity.Usecase, consentUc consent.Usecase) (*Server, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, errors.Wrap(err, "trusted proxies")
	}
	router.Use(gin.Recovery(), RequestID(), RequestLogger(log), CORS())
	router.NoRoute(func(c *gin.Context) {
		writeError(c, log, appErrors.NotFound("no such route"))
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	controllers := []Controller{
		&IdentityController{GroupName: "/identities", IdentityUc: identityUc, Logger: log},
		&SessionController{GroupName: "/sessions", IdentityUc: identityUc, Logger: log},
		&ConsentController{GroupName: "/consent", ConsentUc: consentUc, Logger: log},
	}
	for _, c := range controllers {
		if err := RegisterHandlers(v1, c); err != nil {
			return nil, errors.Wrapf(err, "register %s", c.GetGroupName())
		}
	}

	return &Server{engine: router, addr: net.JoinHostPort("", cfg.Port), logger: log}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return <-errCh
}
