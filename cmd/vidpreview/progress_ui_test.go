package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

type recordingProgress struct{ calls []string }

func (r *recordingProgress) ShowProgress()               { r.calls = append(r.calls, "show") }
func (r *recordingProgress) SetProgress(_ int, t string) { r.calls = append(r.calls, t) }
func (r *recordingProgress) HideProgress()               { r.calls = append(r.calls, "hide") }
func (r *recordingProgress) ShowError(msg string)        { r.calls = append(r.calls, "err:"+msg) }
func (r *recordingProgress) HideError()                  { r.calls = append(r.calls, "hide-err") }

func TestProgressUI_SetProgressThrottles(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.ShowProgress()
	for _, pct := range []int{0, 10, 20, 30, 60, 99, 100} {
		p.SetProgress(pct, strconv.Itoa(pct)+"%")
	}

	got := buf.String()
	for _, want := range []string{"进度: 0%", "进度: 30%", "进度: 60%", "进度: 99%", "进度: 100%"} {
		if !strings.Contains(got, want+"\n") {
			t.Fatalf("缺少 %q：\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"进度: 10%", "进度: 20%"} {
		if strings.Contains(got, unwanted+"\n") {
			t.Fatalf("不应打印 %q：\n%s", unwanted, got)
		}
	}
}

func TestProgressUI_EventsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	defer p.Close()

	p.OnBatchStart("batch_1", 2)
	p.OnEntryAdmitted(1, 2, domain.VideoEntry{ID: "video_1", Name: "a.mp4", Size: 2048}, 1500*time.Millisecond)
	p.OnBatchDone("batch_1", 1, 2, 2*time.Second)
	p.OnEntryRemoved(domain.VideoEntry{ID: "video_1", Name: "a.mp4"})
	p.ShowError("x.txt: 不支持的文件格式\ny.mp4: 文件大小超过限制 (100 MB)")

	got := buf.String()
	for _, want := range []string{
		"接纳: batch=batch_1 files=2",
		"[1/2] OK a.mp4 (2 KB) id=video_1 (1.5s)",
		"批次完成: batch=batch_1 admitted=1/2 (2.0s)",
		"已删除: a.mp4 id=video_1",
		"拒绝: x.txt: 不支持的文件格式",
		"拒绝: y.mp4: 文件大小超过限制 (100 MB)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("缺少 %q：\n%s", want, got)
		}
	}
}

func TestProgressUI_CheckItems(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnCheckStart([]string{"/v"}, 2)
	p.OnCheckItem(1, 2, domain.CheckItem{Name: "a.mp4", MediaType: "video/mp4", SizeText: "1 KB", Status: domain.StatusAccepted})
	p.OnCheckItem(2, 2, domain.CheckItem{Name: "b.txt", Status: domain.StatusRejected, ErrorCode: "unsupported_format", ErrorMsg: "不支持的文件格式"})

	got := buf.String()
	if !strings.Contains(got, "[1/2] OK a.mp4 (video/mp4, 1 KB)") {
		t.Fatalf("缺少接纳行：\n%s", got)
	}
	if !strings.Contains(got, "[2/2] REJECT b.txt unsupported_format: 不支持的文件格式") {
		t.Fatalf("缺少拒绝行：\n%s", got)
	}
}

func TestTees(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}

	pt := progressTee{a, b}
	pt.ShowProgress()
	pt.SetProgress(5, "5%")
	pt.HideProgress()

	et := errorTee{a, b}
	et.ShowError("boom")
	et.HideError()

	want := []string{"show", "5%", "hide", "err:boom", "hide-err"}
	for _, r := range []*recordingProgress{a, b} {
		if strings.Join(r.calls, ",") != strings.Join(want, ",") {
			t.Fatalf("调用序列不符：%v", r.calls)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatElapsed(3725 * time.Second); got != "01:02:05" {
		t.Fatalf("formatElapsed 不符：%q", got)
	}
	if got := formatShortDuration(-time.Second); got != "0.0s" {
		t.Fatalf("formatShortDuration 不符：%q", got)
	}
	if got := formatStringListJSON(nil); got != "[]" {
		t.Fatalf("formatStringListJSON 不符：%q", got)
	}
	if got := truncate("我的视频文件名很长", 6); got != "我的视..." {
		t.Fatalf("truncate 不符：%q", got)
	}
}
