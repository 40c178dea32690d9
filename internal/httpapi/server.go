// Package httpapi 把预览管理器暴露为 HTTP 服务：HTML 页面、JSON API、预览资源与运维端点。
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/vidpreview/internal/blob"
	"github.com/John-Robertt/vidpreview/internal/entryid"
	"github.com/John-Robertt/vidpreview/internal/metrics"
	"github.com/John-Robertt/vidpreview/internal/preview"
	"github.com/John-Robertt/vidpreview/internal/render"
)

const DefaultShutdownTimeout = 5 * time.Second

// Options 组装 Server 的依赖。Manager/Page/Blobs 必填。
type Options struct {
	Addr        string
	Manager     *preview.Manager
	Page        *render.Page
	Blobs       *blob.Registry
	ExcludeDirs []string
	Logger      zerolog.Logger

	// NameMaxLength 控制 JSON 中 display_name 的截断长度；<=0 时使用 render.DefaultNameMaxLength。
	NameMaxLength int

	ShutdownTimeout time.Duration
}

// Server 包装 gin engine，并提供优雅关闭。
type Server struct {
	addr   string
	engine *gin.Engine
	log    zerolog.Logger

	mgr         *preview.Manager
	page        *render.Page
	blobs       *blob.Registry
	excludeDirs []string
	nameMax     int

	shutdownTimeout time.Duration
}

// New 构造 Server 并注册全部路由。
func New(opts Options) *Server {
	s := &Server{
		addr:            opts.Addr,
		log:             opts.Logger.With().Str("component", "http").Logger(),
		mgr:             opts.Manager,
		page:            opts.Page,
		blobs:           opts.Blobs,
		excludeDirs:     opts.ExcludeDirs,
		nameMax:         opts.NameMaxLength,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	if s.nameMax <= 0 {
		s.nameMax = render.DefaultNameMaxLength
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), metricsMiddleware(), requestLogger(s.log))
	s.engine = engine
	s.registerRoutes()
	return s
}

// Handler 返回底层 http.Handler（测试用 httptest 直接驱动）。
func (s *Server) Handler() http.Handler { return s.engine }

// Run 启动监听；ctx 结束后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	e := s.engine

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	e.GET("/metrics", gin.WrapH(metrics.Handler()))

	e.GET("/", s.handleIndex)
	e.GET(blob.DefaultBasePath+":token", validParam("token", entryid.PrefixBlob, rejectStatus), s.handleBlob)

	e.GET("/videos/:id/play", validParam("id", entryid.PrefixVideo, rejectText), s.handlePlay)
	e.GET("/videos/:id/delete", validParam("id", entryid.PrefixVideo, rejectRedirect), s.handleDeleteConfirm)
	e.POST("/videos/:id/delete", validParam("id", entryid.PrefixVideo, rejectRedirect), s.handleDeleteForm)
	e.GET("/player/close", s.handleClosePlayer)
	e.POST("/error/dismiss", s.handleDismissError)

	api := e.Group("/api")
	api.POST("/intake", s.handleIntake)
	api.GET("/videos", s.handleListVideos)
	api.GET("/videos/:id", validParam("id", entryid.PrefixVideo, rejectJSON), s.handleGetVideo)
	api.DELETE("/videos/:id", validParam("id", entryid.PrefixVideo, rejectJSON), s.handleDeleteVideo)
	api.POST("/error/dismiss", func(c *gin.Context) {
		s.mgr.DismissError()
		c.Status(http.StatusNoContent)
	})
}
