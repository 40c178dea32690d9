package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/环境变量无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// 以下默认值须与 validate/render/preview/transfer 中的同名常量一致（见 defaults_test.go）。
const (
	DefaultMaxFileSize      int64 = 100 * 1024 * 1024
	DefaultNameMaxLength          = 30
	DefaultErrorDismiss           = 5 * time.Second
	DefaultProgressGrace          = 500 * time.Millisecond
	DefaultProgressInterval       = 100 * time.Millisecond
	DefaultProgressMaxStep        = 15.0
)

// FileNames 是 cwd 下自动发现的配置文件名（按顺序，取第一个存在的）。
var FileNames = []string{"vidpreview.json", "vidpreview.yaml", "vidpreview.yml"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，保证覆盖优先级可实现。
type CLIArgs struct {
	Paths []string

	ConfigPath string

	Addr    string
	AddrSet bool
}

// FileConfig 对应 vidpreview.json / vidpreview.yaml 的解析结构。
// 时长字段使用 Go duration 字符串（例如 "5s"、"100ms"）。
type FileConfig struct {
	Addr             string   `json:"addr" yaml:"addr"`
	MaxFileSize      int64    `json:"max_file_size" yaml:"max_file_size"`
	AllowedTypes     []string `json:"allowed_types" yaml:"allowed_types"`
	NameMaxLength    int      `json:"name_max_length" yaml:"name_max_length"`
	ErrorDismiss     string   `json:"error_dismiss" yaml:"error_dismiss"`
	ProgressInterval string   `json:"progress_interval" yaml:"progress_interval"`
	ProgressMaxStep  float64  `json:"progress_max_step" yaml:"progress_max_step"`
	ProgressGrace    string   `json:"progress_grace" yaml:"progress_grace"`
	ExcludeDirs      []string `json:"exclude_dirs" yaml:"exclude_dirs"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	LogFormat        string   `json:"log_format" yaml:"log_format"`
}

// EnvConfig 是允许通过环境变量覆盖的字段（优先级介于 CLI 与配置文件之间）。
type EnvConfig struct {
	Addr        string `env:"VIDPREVIEW_ADDR"`
	LogLevel    string `env:"VIDPREVIEW_LOG_LEVEL"`
	LogFormat   string `env:"VIDPREVIEW_LOG_FORMAT"`
	MaxFileSize int64  `env:"VIDPREVIEW_MAX_FILE_SIZE"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Paths      []string
	ConfigFile string

	Addr string

	MaxFileSize int64
	// AllowedTypes 为空时由校验器使用内置默认类型。
	AllowedTypes  []string
	NameMaxLength int

	ErrorDismiss     time.Duration
	ProgressInterval time.Duration
	ProgressMaxStep  float64
	ProgressGrace    time.Duration

	ExcludeDirs []string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 使用进程环境变量加载配置。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return LoadEffectiveWithEnv(cwd, cli, nil)
}

// LoadEffectiveWithEnv 按约定发现并读取配置文件，再与环境变量、CLI 参数合并为最终配置。
// environ 为 nil 时读取进程环境变量。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在（不存在报 config_not_found）
// 2) 否则依次尝试 <cwd>/vidpreview.json、.yaml、.yml（均可选）
//
// 覆盖优先级（固定）：
// - addr：CLI > env > config > 默认
// - log_level/log_format/max_file_size：env > config > 默认
// - 其他字段：仅由 config 控制
func LoadEffectiveWithEnv(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range FileNames {
			p := filepath.Join(cwdAbs, name)
			f, exists, err := readFileConfig(p)
			if err != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
			}
			if exists {
				cfgPath, fc = p, f
				break
			}
		}
	}

	var ec EnvConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "env", Err: err}
	}

	return merge(cwdAbs, cli, ec, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, ec EnvConfig, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		path := cfgPath
		if path == "" {
			path = "<defaults>"
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	// addr：CLI > env > config > 默认
	addr := DefaultAddr
	switch {
	case cli.AddrSet:
		addr = strings.TrimSpace(cli.Addr)
	case strings.TrimSpace(ec.Addr) != "":
		addr = strings.TrimSpace(ec.Addr)
	case strings.TrimSpace(fc.Addr) != "":
		addr = strings.TrimSpace(fc.Addr)
	}
	if addr == "" {
		return invalid(fmt.Errorf("addr 不能为空"))
	}

	maxSize := fc.MaxFileSize
	if ec.MaxFileSize != 0 {
		maxSize = ec.MaxFileSize
	}
	if maxSize < 0 {
		return invalid(fmt.Errorf("max_file_size 不能为负数：%d", maxSize))
	}
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	// 为空表示使用校验器内置的默认类型列表。
	var allowed []string
	for _, t := range fc.AllowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.Contains(t, "/") {
			return invalid(fmt.Errorf("allowed_types 中的 %q 不是媒体类型", t))
		}
		allowed = append(allowed, t)
	}

	nameMax := fc.NameMaxLength
	if nameMax < 0 {
		return invalid(fmt.Errorf("name_max_length 不能为负数：%d", nameMax))
	}
	if nameMax == 0 {
		nameMax = DefaultNameMaxLength
	}

	errorDismiss, err := parseDuration("error_dismiss", fc.ErrorDismiss, DefaultErrorDismiss)
	if err != nil {
		return invalid(err)
	}
	interval, err := parseDuration("progress_interval", fc.ProgressInterval, DefaultProgressInterval)
	if err != nil {
		return invalid(err)
	}
	grace, err := parseDuration("progress_grace", fc.ProgressGrace, DefaultProgressGrace)
	if err != nil {
		return invalid(err)
	}

	step := fc.ProgressMaxStep
	if step < 0 {
		return invalid(fmt.Errorf("progress_max_step 不能为负数：%v", step))
	}
	if step == 0 {
		step = DefaultProgressMaxStep
	}
	// 单步超过 100 没有意义；截断。
	if step > 100 {
		step = 100
	}

	level := firstNonEmpty(ec.LogLevel, fc.LogLevel, DefaultLogLevel)
	if _, err := zerolog.ParseLevel(strings.ToLower(level)); err != nil {
		return invalid(fmt.Errorf("log_level 无效：%q", level))
	}
	logFormat := strings.ToLower(firstNonEmpty(ec.LogFormat, fc.LogFormat, DefaultLogFormat))
	if logFormat != "console" && logFormat != "json" {
		return invalid(fmt.Errorf("log_format 只能是 console 或 json，实际是 %q", logFormat))
	}

	paths := make([]string, 0, len(cli.Paths))
	for _, p := range cli.Paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paths = append(paths, absCleanFrom(cwdAbs, p))
	}

	return EffectiveConfig{
		Paths:            paths,
		ConfigFile:       cfgPath,
		Addr:             addr,
		MaxFileSize:      maxSize,
		AllowedTypes:     allowed,
		NameMaxLength:    nameMax,
		ErrorDismiss:     errorDismiss,
		ProgressInterval: interval,
		ProgressMaxStep:  step,
		ProgressGrace:    grace,
		ExcludeDirs:      append([]string(nil), fc.ExcludeDirs...),
		LogLevel:         strings.ToLower(level),
		LogFormat:        logFormat,
	}, nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s 必须为正数：%q", field, raw)
	}
	return d, nil
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（.yaml/.yml 用 YAML，其余按 JSON）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
