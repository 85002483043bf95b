package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ufowatch/internal/config"
	"ufowatch/internal/generated"
)

// shutdownTimeout はHTTPサーバーの停止を待つ時間
const shutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	httpServer *http.Server
	engine     *gin.Engine
	auth       *AuthMiddleware
	logger     *logrus.Entry

	mu   sync.Mutex
	addr net.Addr
}

// NewGin はGinを使ったServerを作成する
// ルートは api/openapi.yaml から生成した ServerInterface に従って登録する。
func NewGin(cfg *config.Config, deps Deps) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	logger := deps.Logger
	validator, err := NewRequestValidator(logger)
	if err != nil {
		return nil, err
	}

	auth := NewAuthMiddleware(cfg.Server.AuthSecret)
	engine := gin.New()
	// 認証を先に行い、未認証のリクエストは検証しない
	engine.Use(gin.Recovery(), requestLogger(logger), auth.Handler(), validator.Handler())

	s := &Server{
		config: cfg,
		engine: engine,
		auth:   auth,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	generated.RegisterHandlersWithOptions(engine, &APIHandler{deps: deps}, generated.GinServerOptions{
		ErrorHandler: func(c *gin.Context, err error, status int) {
			abortWithError(c, status, "invalid_parameter", err.Error())
		},
	})
	return s, nil
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Auth は認証ミドルウェアを返す
func (s *Server) Auth() *AuthMiddleware {
	return s.auth
}

// Addr はリッスン中のアドレスを返す。起動前はnil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start はサーバーを起動し、ctxの終了かシグナルを受けるまで待つ
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	go func() {
		s.logger.WithField("addr", listener.Addr().String()).Info("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.WithField("signal", sig.String()).Info("シグナルを受信しました")
	case err := <-shutdownCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストごとにアクセスログを出す
func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("リクエストの処理に失敗")
			return
		}
		entry.Debug("リクエストを処理しました")
	}
}
