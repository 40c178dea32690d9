package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyCheckReportJSON(t *testing.T) {
	// 锁定对外契约：stdout 非 TTY 时只能输出一个 CheckReport JSON（进度/摘要走 stderr）。
	root := t.TempDir()

	in := filepath.Join(root, "in", "clip.mp4")
	if err := os.MkdirAll(filepath.Dir(in), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(in, []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), 0o644); err != nil {
		t.Fatalf("写入视频失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/vidpreview", "check", root)
	cmd.Dir = repoRoot
	// 不受开发机环境变量影响。
	cmd.Env = append(os.Environ(), "VIDPREVIEW_LOG_LEVEL=info", "VIDPREVIEW_MAX_FILE_SIZE=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var rr domain.CheckReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 CheckReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.Accepted != 1 || len(rr.Items) != 1 || rr.Items[0].Name != "clip.mp4" {
		t.Fatalf("报告内容不符：%+v", rr)
	}
	if strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度输出：%q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "完成：accepted=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
}
