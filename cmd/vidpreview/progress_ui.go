package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/vidpreview/internal/config"
	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
	"github.com/John-Robertt/vidpreview/internal/preview"
)

var (
	_ preview.Observer     = (*progressUI)(nil)
	_ preview.ProgressSink = (*progressUI)(nil)
	_ preview.ErrorSink    = (*progressUI)(nil)
)

// progressStep 控制终端进度行的密度：百分比至少前进这么多才打印一行（100% 总会打印）。
const progressStep = 25

// progressUI 是交互终端的输出：接纳事件、批次进度与错误信息。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：preview 层只发事件，CLI 决定如何展示
// - keepalive：有批次进行中但长时间无输出时，定期输出一行进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	batches     int
	percent     int
	shownAt     int
	admitted    int
	removed     int
	checkTotal  int
	checkDone   int
	checkReject int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
		shownAt:            -1,
	}
}

func (p *progressUI) OnServeStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] vidpreview serve\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	} else {
		fmt.Fprintln(p.w, "  config: (默认)")
	}
	fmt.Fprintf(p.w, "  addr: http://%s/\n", eff.Addr)
	fmt.Fprintf(p.w, "  paths: %s\n", formatStringListJSON(eff.Paths))
	fmt.Fprintf(p.w, "  max_file_size: %s\n", format.ByteSize(eff.MaxFileSize))
	if len(eff.AllowedTypes) > 0 {
		fmt.Fprintf(p.w, "  allowed_types: %d 种\n", len(eff.AllowedTypes))
	} else {
		fmt.Fprintln(p.w, "  allowed_types: (默认)")
	}
	fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))
	fmt.Fprintf(p.w, "  error_dismiss: %s\n", eff.ErrorDismiss)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnBatchStart(batchID string, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}

	p.batches++
	fmt.Fprintf(p.w, "接纳: batch=%s files=%d\n", batchID, size)
	p.lastPrinted = time.Now()
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnEntryAdmitted(idx, total int, e domain.VideoEntry, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.admitted++
	fmt.Fprintf(p.w, "[%d/%d] OK %s (%s) id=%s (%s)\n",
		idx, total, truncate(e.Name, 80), format.ByteSize(e.Size), e.ID, formatShortDuration(dur),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnBatchDone(batchID string, admitted, total int, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.batches > 0 {
		p.batches--
	}
	fmt.Fprintf(p.w, "批次完成: batch=%s admitted=%d/%d (%s)\n", batchID, admitted, total, formatShortDuration(dur))
	p.lastPrinted = time.Now()

	if p.batches == 0 && p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnEntryRemoved(e domain.VideoEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removed++
	fmt.Fprintf(p.w, "已删除: %s id=%s\n", truncate(e.Name, 80), e.ID)
	p.lastPrinted = time.Now()
}

func (p *progressUI) ShowProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = 0
	p.shownAt = -1
}

func (p *progressUI) SetProgress(percent int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.percent = percent
	if percent < 100 && p.shownAt >= 0 && percent-p.shownAt < progressStep {
		return
	}
	p.shownAt = percent
	fmt.Fprintf(p.w, "进度: %s\n", text)
	p.lastPrinted = time.Now()
}

func (p *progressUI) HideProgress() {}

func (p *progressUI) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, line := range strings.Split(msg, "\n") {
		fmt.Fprintf(p.w, "拒绝: %s\n", line)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) HideError() {}

func (p *progressUI) OnCheckStart(paths []string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = time.Now()
	p.checkTotal = total
	fmt.Fprintf(p.w, "[%s] vidpreview check\n", p.startedAt.Format("15:04:05"))
	fmt.Fprintf(p.w, "  paths: %s\n", formatStringListJSON(paths))
	fmt.Fprintf(p.w, "  files: %d\n\n", total)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnCheckItem(idx, total int, it domain.CheckItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checkDone = idx
	switch it.Status {
	case domain.StatusAccepted:
		fmt.Fprintf(p.w, "[%d/%d] OK %s (%s, %s)\n", idx, total, truncate(it.Name, 80), it.MediaType, it.SizeText)
	default:
		p.checkReject++
		fmt.Fprintf(p.w, "[%d/%d] REJECT %s %s: %s\n", idx, total, truncate(it.Name, 80), it.ErrorCode, it.ErrorMsg)
	}
	p.lastPrinted = time.Now()
}

// Close 停止 keepalive ticker。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.batches > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: %d%% active_batches=%d elapsed=%s\n",
						p.percent, p.batches, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// progressTee 把进度同时交给多个 sink（页面 + 终端）。
type progressTee []preview.ProgressSink

func (t progressTee) ShowProgress() {
	for _, s := range t {
		s.ShowProgress()
	}
}

func (t progressTee) SetProgress(percent int, text string) {
	for _, s := range t {
		s.SetProgress(percent, text)
	}
}

func (t progressTee) HideProgress() {
	for _, s := range t {
		s.HideProgress()
	}
}

type errorTee []preview.ErrorSink

func (t errorTee) ShowError(msg string) {
	for _, s := range t {
		s.ShowError(msg)
	}
}

func (t errorTee) HideError() {
	for _, s := range t {
		s.HideError()
	}
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
