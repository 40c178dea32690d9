package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var noEnv = map[string]string{}

func TestLoadEffective_DefaultsWithoutConfig(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{Paths: []string{"videos"}}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigFile != "" {
		t.Fatalf("期望未使用配置文件，实际=%q", eff.ConfigFile)
	}
	if eff.Addr != DefaultAddr {
		t.Fatalf("期望 addr=%q，实际=%q", DefaultAddr, eff.Addr)
	}
	if eff.MaxFileSize != DefaultMaxFileSize {
		t.Fatalf("期望 max_file_size=%d，实际=%d", DefaultMaxFileSize, eff.MaxFileSize)
	}
	if eff.NameMaxLength != 30 {
		t.Fatalf("期望 name_max_length=30，实际=%d", eff.NameMaxLength)
	}
	if eff.ErrorDismiss != 5*time.Second || eff.ProgressGrace != 500*time.Millisecond {
		t.Fatalf("时长默认值不符：dismiss=%v grace=%v", eff.ErrorDismiss, eff.ProgressGrace)
	}
	if eff.ProgressInterval != 100*time.Millisecond || eff.ProgressMaxStep != 15 {
		t.Fatalf("进度默认值不符：interval=%v step=%v", eff.ProgressInterval, eff.ProgressMaxStep)
	}
	if eff.AllowedTypes != nil {
		t.Fatalf("期望 allowed_types 留空交给校验器，实际=%v", eff.AllowedTypes)
	}
	wantPath := filepath.Join(cwd, "videos")
	if len(eff.Paths) != 1 || eff.Paths[0] != wantPath {
		t.Fatalf("期望 paths=[%q]，实际=%v", wantPath, eff.Paths)
	}
}

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffectiveWithEnv(cwd, CLIArgs{ConfigPath: "missing.json"}, noEnv)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_DiscoversYAML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "vidpreview.yaml"), []byte(
		"addr: \":9000\"\nmax_file_size: 2048\nname_max_length: 12\nerror_dismiss: 2s\nexclude_dirs: [\"tmp\"]\n"))

	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigFile != filepath.Join(cwd, "vidpreview.yaml") {
		t.Fatalf("期望使用 yaml 配置，实际=%q", eff.ConfigFile)
	}
	if eff.Addr != ":9000" || eff.MaxFileSize != 2048 || eff.NameMaxLength != 12 {
		t.Fatalf("配置未生效：%+v", eff)
	}
	if eff.ErrorDismiss != 2*time.Second {
		t.Fatalf("期望 error_dismiss=2s，实际=%v", eff.ErrorDismiss)
	}
	if len(eff.ExcludeDirs) != 1 || eff.ExcludeDirs[0] != "tmp" {
		t.Fatalf("期望 exclude_dirs=[tmp]，实际=%v", eff.ExcludeDirs)
	}
}

func TestLoadEffective_JSONWinsOverYAML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "vidpreview.json"), []byte(`{"addr":":7000"}`))
	writeFile(t, filepath.Join(cwd, "vidpreview.yml"), []byte("addr: \":7001\"\n"))

	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Addr != ":7000" {
		t.Fatalf("期望 addr=:7000，实际=%q", eff.Addr)
	}
}

func TestLoadEffective_AddrMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "vidpreview.json"), []byte(`{"addr":":7000"}`))

	// 环境变量覆盖配置文件。
	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, map[string]string{"VIDPREVIEW_ADDR": ":7100"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Addr != ":7100" {
		t.Fatalf("期望 addr=:7100，实际=%q", eff.Addr)
	}

	// CLI 显式指定，则覆盖环境变量。
	eff2, err := LoadEffectiveWithEnv(cwd, CLIArgs{Addr: ":7200", AddrSet: true}, map[string]string{"VIDPREVIEW_ADDR": ":7100"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Addr != ":7200" {
		t.Fatalf("期望 addr=:7200，实际=%q", eff2.Addr)
	}
}

func TestLoadEffective_EnvLogAndSize(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "vidpreview.json"), []byte(`{"log_level":"warn","max_file_size":10}`))

	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, map[string]string{
		"VIDPREVIEW_LOG_LEVEL":     "DEBUG",
		"VIDPREVIEW_LOG_FORMAT":    "json",
		"VIDPREVIEW_MAX_FILE_SIZE": "4096",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.LogLevel != "debug" || eff.LogFormat != "json" {
		t.Fatalf("期望 debug/json，实际=%q/%q", eff.LogLevel, eff.LogFormat)
	}
	if eff.MaxFileSize != 4096 {
		t.Fatalf("期望 max_file_size=4096，实际=%d", eff.MaxFileSize)
	}
}

func TestLoadEffective_InvalidEnvValue(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, map[string]string{"VIDPREVIEW_MAX_FILE_SIZE": "lots"})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_InvalidFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "负数大小", body: `{"max_file_size":-1}`},
		{name: "非法时长", body: `{"error_dismiss":"soon"}`},
		{name: "零时长", body: `{"progress_grace":"0s"}`},
		{name: "非法媒体类型", body: `{"allowed_types":["mp4"]}`},
		{name: "非法日志级别", body: `{"log_level":"loud"}`},
		{name: "非法日志格式", body: `{"log_format":"xml"}`},
		{name: "负数步长", body: `{"progress_max_step":-3}`},
		{name: "JSON 语法错误", body: `{"addr":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, "vidpreview.json"), []byte(tc.body))

			_, err := LoadEffectiveWithEnv(cwd, CLIArgs{}, noEnv)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "conf", "custom.yml"), []byte("allowed_types: [\"Video/MP4\", \" \"]\nprogress_max_step: 500\n"))
	// 显式指定时不再读取 cwd 下的默认文件。
	writeFile(t, filepath.Join(cwd, "vidpreview.json"), []byte(`{"addr":`))

	eff, err := LoadEffectiveWithEnv(cwd, CLIArgs{ConfigPath: "conf/custom.yml"}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(eff.AllowedTypes) != 1 || eff.AllowedTypes[0] != "video/mp4" {
		t.Fatalf("期望 allowed_types=[video/mp4]，实际=%v", eff.AllowedTypes)
	}
	if eff.ProgressMaxStep != 100 {
		t.Fatalf("期望 progress_max_step 截断为 100，实际=%v", eff.ProgressMaxStep)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
