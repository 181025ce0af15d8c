package api

import (
	"pdf_compressor/pdf"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds HTTP-layer configuration
type Config struct {
	MaxFileSize int64

	// RateLimit is the per-client compress request rate; 0 disables limiting
	RateLimit float64
	RateBurst int
}

// Compressor is the part of *pdf.Compressor the handlers use.
type Compressor interface {
	CompressPDF(buffer []byte, originalName string) (*pdf.CompressionResult, error)
	ToolStatus() pdf.ToolStatus
}

// NewRouter builds a gin engine with request logging, recovery and all routes.
func NewRouter(compressor Compressor, config *Config, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(logger), Recovery(logger))
	SetupRoutes(r, compressor, config, logger)
	return r
}

func SetupRoutes(r *gin.Engine, compressor Compressor, config *Config, logger *zap.Logger) {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}

	apiGroup := r.Group("/api/pdf")
	{
		apiGroup.POST("/compress",
			RateLimit(config.RateLimit, config.RateBurst, logger),
			func(c *gin.Context) { HandleCompress(c, compressor, config, logger) })
		apiGroup.GET("/tool", func(c *gin.Context) { HandleToolStatus(c, compressor) })
	}

	r.GET("/health", func(c *gin.Context) { HandleHealth(c, compressor) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
