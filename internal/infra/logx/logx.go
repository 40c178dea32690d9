// Package logx 构造进程级 zerolog.Logger。
package logx

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New 按 level/format 构造 logger；format 为 "json" 时输出 JSON 行，否则为人类可读的 console 格式。
// 非法或为空的 level 回退到 info。
func New(level, format string, w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if strings.ToLower(strings.TrimSpace(format)) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", "vidpreview").
		Logger().
		Level(ParseLevel(level))
}

// ParseLevel 解析日志级别；为空或无法识别时返回 info。
func ParseLevel(raw string) zerolog.Level {
	if strings.TrimSpace(raw) == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
