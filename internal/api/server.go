// Package api 提供只读状态查询与手动推送的 HTTP 接口
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sampmon/internal/buildinfo"
	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/notifier"
	"sampmon/internal/storage"
)

// Server HTTP 服务器
type Server struct {
	handler    *Handler
	router     *gin.Engine
	httpServer *http.Server
	addr       string
}

// NewServer 创建服务器
func NewServer(status StatusSource, history storage.Storage, n notifier.Notifier, cfg *config.AppConfig) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// CORS：默认允许任意来源（只读接口），SAMPMON_CORS_ORIGINS 可收紧为逗号分隔的白名单
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID", "Accept-Encoding"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if origins := os.Getenv("SAMPMON_CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Request ID 中间件
	router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// 访问日志
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.FromContext(c.Request.Context(), "api").Debug("请求完成",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	})

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	handler := NewHandler(status, history, n, cfg)

	router.GET("/api/status", handler.GetStatus)
	router.GET("/api/status/:name", handler.GetServerStatus)
	router.POST("/api/status/:name/notify", handler.NotifyStatus)
	router.GET("/api/events", handler.GetEvents)

	router.GET("/api/version", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{
			"version":    buildinfo.GetVersion(),
			"git_commit": buildinfo.GetGitCommit(),
			"build_time": buildinfo.GetBuildTime(),
			"go_version": buildinfo.GetGoVersion(),
		})
	})

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})

	addr := cfg.API.Addr
	if addr == "" {
		addr = config.DefaultAPIAddr
	}

	return &Server{
		handler:    handler,
		router:     router,
		addr:       addr,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler 返回 http.Handler（测试用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动服务器（阻塞，直到 Stop 或监听失败）
func (s *Server) Start() error {
	logger.Info("api", "状态 API 已启动", "addr", s.addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("启动HTTP服务失败: %w", err)
	}
	return nil
}

// Stop 优雅关闭服务器
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("api", "正在关闭HTTP服务器")
	s.handler.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// UpdateConfig 更新配置（热更新时调用）
func (s *Server) UpdateConfig(cfg *config.AppConfig) {
	s.handler.UpdateConfig(cfg)
}
