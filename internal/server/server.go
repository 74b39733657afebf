package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
	"github.com/MakiDevelop/ting-data-etl/internal/exporter"
	"github.com/MakiDevelop/ting-data-etl/internal/layout"
	"github.com/MakiDevelop/ting-data-etl/internal/report"
)

var releaseMode sync.Once

// Options 报表浏览服务选项
type Options struct {
	OutputDir   string
	ExcludeDirs []string
	Encoding    csvio.Encoding
	Aliases     []string // 商店序号别名
	Registry    *report.Registry
	DevMode     bool
}

// Server HTTP服务器（只读）
type Server struct {
	router   *gin.Engine
	tree     layout.Tree
	encoding csvio.Encoding
	aliases  []string
	registry *report.Registry
	exporter *exporter.Exporter
	logger   *zap.Logger
}

// NewServer 创建服务器
func NewServer(opts Options, logger *zap.Logger) (*Server, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if len(opts.Aliases) == 0 {
		return nil, errors.New("store id aliases are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.DevMode {
		releaseMode.Do(func() { gin.SetMode(gin.ReleaseMode) })
	}

	tree := layout.NewTree(opts.OutputDir, opts.ExcludeDirs...)
	s := &Server{
		router:   gin.New(),
		tree:     tree,
		encoding: opts.Encoding,
		aliases:  opts.Aliases,
		registry: opts.Registry,
		exporter: exporter.NewExporter(tree, opts.Encoding, logger),
		logger:   logger,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.accessLog())

	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/stores", s.ListStores)
		api.GET("/stores/:id/files", s.ListFiles)
		api.GET("/stores/:id/files/:name", s.GetFile)
		api.GET("/stores/:id/workbook", s.DownloadWorkbook)
		api.GET("/reports", s.ListReports)
		api.GET("/verify", s.Verify)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Handler 返回 http.Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	s.logger.Info("报表浏览服务启动", zap.String("addr", addr), zap.String("output_dir", s.tree.Root))
	return s.router.Run(addr)
}
