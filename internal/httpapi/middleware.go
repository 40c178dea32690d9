package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/vidpreview/internal/entryid"
	"github.com/John-Robertt/vidpreview/internal/metrics"
)

// validParam 在进入处理器前校验路径参数是否为 prefix + ULID；格式不对的一定不存在，直接按未找到处理。
func validParam(name, prefix string, reject gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if entryid.Valid(prefix, c.Param(name)) {
			c.Next()
			return
		}
		reject(c)
		c.Abort()
	}
}

func rejectStatus(c *gin.Context) { c.Status(http.StatusNotFound) }

func rejectText(c *gin.Context) { c.String(http.StatusNotFound, "视频不存在") }

func rejectJSON(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "视频不存在"}) }

func rejectRedirect(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/") }

// metricsMiddleware 记录请求数与耗时；route 取路由模板，避免按条目 ID 爆炸。
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= 500 {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
