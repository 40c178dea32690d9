// Package preview 实现预览管理器：持有已接纳视频的有序集合，负责校验、接纳、删除与 teardown。
package preview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/entryid"
	"github.com/John-Robertt/vidpreview/internal/metrics"
	"github.com/John-Robertt/vidpreview/internal/transfer"
	"github.com/John-Robertt/vidpreview/internal/validate"
)

const (
	DefaultErrorDismiss  = 5 * time.Second
	DefaultProgressGrace = 500 * time.Millisecond

	// ConfirmPrompt 是删除确认的提示语。
	ConfirmPrompt = "确定要删除这个视频吗？"
)

// ErrClosed 表示 Manager 已经 teardown。
var ErrClosed = errors.New("preview: manager closed")

// Options 组装 Manager 的协作者。除 Resources 外均可为空（使用默认值或空实现）。
type Options struct {
	Validator *validate.Validator
	Transport transfer.Transport
	Resources Resources

	Render   RenderSink
	Progress ProgressSink
	Errors   ErrorSink
	Observer Observer

	Logger zerolog.Logger

	ErrorDismiss  time.Duration
	ProgressGrace time.Duration
}

// Manager 是预览管理器。
//
// 并发模型：
// - 集合的所有变更都在 mu 下完成；sink/observer 也在 mu 下调用，因此卡片顺序与集合顺序一致
// - 每个文件的模拟传输跑在独立 goroutine 中；进度回调经 mu 串行化
// - gate 是单槽信号量：Delete 的“确认 + 变更”与 Teardown 互斥
type Manager struct {
	validator *validate.Validator
	transport transfer.Transport
	resources Resources
	render    RenderSink
	progress  ProgressSink
	errors    ErrorSink
	observer  Observer
	log       zerolog.Logger

	errorDismiss  time.Duration
	progressGrace time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	gate   chan struct{}
	wg     sync.WaitGroup

	mu            sync.Mutex
	entries       []domain.VideoEntry
	ids           map[string]struct{}
	visible       bool
	closed        bool
	activeBatches int
	progressGen   int
	// run 是当前进度周期内的批次：从空闲时开始的第一个批次起，到所有批次结束为止。
	run         []*Batch
	lastPercent int
	errGen      int
	errShown    bool
	errTimer    *time.Timer
}

// New 构造 Manager。
func New(opts Options) (*Manager, error) {
	if opts.Resources == nil {
		return nil, fmt.Errorf("preview: Resources 不能为空")
	}
	m := &Manager{
		validator:     opts.Validator,
		transport:     opts.Transport,
		resources:     opts.Resources,
		render:        opts.Render,
		progress:      opts.Progress,
		errors:        opts.Errors,
		observer:      opts.Observer,
		log:           opts.Logger.With().Str("component", "preview").Logger(),
		errorDismiss:  opts.ErrorDismiss,
		progressGrace: opts.ProgressGrace,
		gate:          make(chan struct{}, 1),
		ids:           make(map[string]struct{}),
	}
	if m.validator == nil {
		m.validator = validate.New(nil, 0)
	}
	if m.transport == nil {
		m.transport = transfer.Simulator{}
	}
	if m.render == nil {
		m.render = nopSink{}
	}
	if m.progress == nil {
		m.progress = nopSink{}
	}
	if m.errors == nil {
		m.errors = nopSink{}
	}
	if m.observer == nil {
		m.observer = nopSink{}
	}
	if m.errorDismiss <= 0 {
		m.errorDismiss = DefaultErrorDismiss
	}
	if m.progressGrace <= 0 {
		m.progressGrace = DefaultProgressGrace
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// ProcessCandidates 是批量入口：校验、合并报告拒绝项、把接纳项作为一个批次交给 Admit。
//
// 空输入是 no-op；没有可接纳文件时返回的 Batch 为 nil。
func (m *Manager) ProcessCandidates(cands []domain.Candidate) (*Batch, []validate.Rejection) {
	if len(cands) == 0 {
		return nil, nil
	}

	accepted, rejected := m.validator.Partition(cands)
	for range accepted {
		metrics.RecordCandidate(true, "")
	}
	for _, r := range rejected {
		metrics.RecordCandidate(false, r.Code)
		m.log.Info().Str("name", r.Candidate.Name).Str("code", r.Code).Msg("candidate rejected")
	}

	if len(rejected) > 0 {
		m.mu.Lock()
		if !m.closed {
			m.showErrorLocked(validate.JoinRejections(rejected))
		}
		m.mu.Unlock()
	}

	var b *Batch
	if len(accepted) > 0 {
		b = m.Admit(accepted)
	}
	return b, rejected
}

// Admit 为每个文件启动独立的模拟传输，文件完成即插入集合。
//
// 调用方可以忽略返回值；Manager 内部跟踪批次完成数。
func (m *Manager) Admit(files []domain.Candidate) *Batch {
	if len(files) == 0 {
		return nil
	}
	b := newBatch(entryid.New("batch_"), len(files))

	m.mu.Lock()
	if m.closed {
		b.finish()
		m.mu.Unlock()
		return b
	}
	if m.activeBatches == 0 {
		m.run = nil
		m.lastPercent = -1
		m.progress.ShowProgress()
	}
	m.run = append(m.run, b)
	m.activeBatches++
	m.progressGen++
	m.reportLocked()
	m.observer.OnBatchStart(b.ID, b.Size)
	m.wg.Add(len(files))
	m.mu.Unlock()

	m.log.Info().Str("batch_id", b.ID).Int("files", b.Size).Msg("admission started")

	for i, c := range files {
		go m.admitOne(b, i, c)
	}
	return b
}

func (m *Manager) admitOne(b *Batch, idx int, c domain.Candidate) {
	defer m.wg.Done()

	started := time.Now()
	err := m.transport.Transfer(m.ctx, c, func(p float64) {
		m.onTick(b, idx, p)
	})
	dur := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	b.fractions[idx] = 1
	b.completed++

	if m.closed {
		metrics.RecordAdmission("dropped", dur.Seconds())
		if b.completed == b.Size {
			m.activeBatches--
			b.finish()
		}
		return
	}

	if err != nil {
		metrics.RecordAdmission("failed", dur.Seconds())
		m.log.Warn().Err(err).Str("batch_id", b.ID).Str("name", c.Name).Msg("admission failed")
	} else if e, ierr := m.insertLocked(c); ierr != nil {
		metrics.RecordAdmission("failed", dur.Seconds())
		m.log.Warn().Err(ierr).Str("batch_id", b.ID).Str("name", c.Name).Msg("publish preview resource failed")
	} else {
		metrics.RecordAdmission("admitted", dur.Seconds())
		b.addEntry(e)
		m.observer.OnEntryAdmitted(b.completed, b.Size, e, dur)
	}

	m.reportLocked()
	if b.completed == b.Size {
		m.finishBatchLocked(b)
	}
}

func (m *Manager) onTick(b *Batch, idx int, p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	f := p / 100
	if f > 1 {
		f = 1
	}
	if f > b.fractions[idx] {
		b.fractions[idx] = f
	}
	m.reportLocked()
}

// reportLocked 汇总当前进度周期内所有批次的文件，只在四舍五入后的百分比严格增加时通知 sink；
// 周期内仍有未完成文件时最多报告 99。重叠的批次共享同一个进度条，新批次加入导致的回落不会上报。
func (m *Manager) reportLocked() {
	files, sum, done := 0, 0.0, true
	for _, b := range m.run {
		files += b.Size
		sum += b.fractionSum()
		if b.completed < b.Size {
			done = false
		}
	}
	if files == 0 {
		return
	}
	pct := int(math.Round(sum / float64(files) * 100))
	if !done && pct > 99 {
		pct = 99
	}
	if pct < 0 {
		pct = 0
	}
	if pct <= m.lastPercent {
		return
	}
	m.lastPercent = pct
	m.progress.SetProgress(pct, fmt.Sprintf("%d%%", pct))
}

func (m *Manager) finishBatchLocked(b *Batch) {
	m.activeBatches--
	m.syncSurfaceLocked()

	gen := m.progressGen
	time.AfterFunc(m.progressGrace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// 宽限期内又开始了新批次：进度条归新批次所有，不隐藏。
		if m.closed || m.activeBatches > 0 || m.progressGen != gen {
			return
		}
		m.progress.HideProgress()
	})

	admitted := len(b.Entries())
	dur := time.Since(b.started)
	m.observer.OnBatchDone(b.ID, admitted, b.Size, dur)
	m.log.Info().Str("batch_id", b.ID).Int("admitted", admitted).Int("total", b.Size).Dur("took", dur).Msg("admission finished")
	b.finish()
}

func (m *Manager) insertLocked(c domain.Candidate) (domain.VideoEntry, error) {
	id := entryid.Video()
	if _, dup := m.ids[id]; dup {
		return domain.VideoEntry{}, fmt.Errorf("preview: 重复的条目 ID %q", id)
	}

	url, err := m.resources.Publish(id, c)
	if err != nil {
		return domain.VideoEntry{}, err
	}

	e := domain.VideoEntry{
		ID:         id,
		Name:       c.Name,
		Size:       c.Size,
		MediaType:  c.MediaType,
		PreviewURL: url,
		AdmittedAt: time.Now().UTC(),
		File:       c,
	}
	m.entries = append(m.entries, e)
	m.ids[id] = struct{}{}
	metrics.SetEntries(len(m.entries))

	m.render.InsertCard(e)
	m.syncSurfaceLocked()
	return e, nil
}

// syncSurfaceLocked 把派生的可见性（集合非空）同步给 RenderSink，仅在变化时通知。
func (m *Manager) syncSurfaceLocked() {
	want := len(m.entries) > 0
	if want == m.visible {
		return
	}
	m.visible = want
	m.render.SetPreviewVisible(want)
}

// Delete 在确认后删除条目：释放预览资源、移出集合、移除卡片；集合为空时隐藏预览区域。
//
// 返回值：
// - (true, nil)：已删除
// - (false, nil)：条目不存在（不会询问确认），或用户取消
// - (false, ErrClosed)：已 teardown
// - (false, ctx.Err())：等待确认闸门时 ctx 结束
func (m *Manager) Delete(ctx context.Context, id string, confirm Confirmer) (bool, error) {
	if !m.acquireGate(ctx) {
		return false, ctx.Err()
	}
	defer func() { <-m.gate }()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	_, ok := m.indexLocked(id)
	m.mu.Unlock()
	if !ok {
		metrics.RecordDelete("absent")
		return false, nil
	}

	if confirm == nil || !confirm.Confirm(ctx, ConfirmPrompt) {
		metrics.RecordDelete("declined")
		m.log.Debug().Str("entry_id", id).Msg("delete declined")
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 确认期间 Teardown 可能因 ctx 超时而强行执行。
	if m.closed {
		return false, ErrClosed
	}
	idx, ok := m.indexLocked(id)
	if !ok {
		metrics.RecordDelete("absent")
		return false, nil
	}

	e := m.entries[idx]
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	delete(m.ids, id)
	metrics.SetEntries(len(m.entries))

	m.resources.Revoke(e.PreviewURL)
	m.render.RemoveCard(id)
	m.syncSurfaceLocked()
	m.observer.OnEntryRemoved(e)

	metrics.RecordDelete("deleted")
	m.log.Info().Str("entry_id", id).Str("name", e.Name).Msg("entry deleted")
	return true, nil
}

// Teardown 在进程结束时调用一次：释放所有存活条目的预览资源，不询问确认。
//
// 它先等待正在进行的删除确认（以 ctx 为界），再取消在途的接纳；之后完成的接纳不会发布资源。
// 重复调用是 no-op。返回本次释放的资源数。
func (m *Manager) Teardown(ctx context.Context) int {
	if m.acquireGate(ctx) {
		defer func() { <-m.gate }()
	} else {
		m.log.Warn().Msg("teardown proceeding without waiting for pending delete confirmation")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	m.closed = true
	entries := m.entries
	m.entries = nil
	m.ids = make(map[string]struct{})
	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	for _, e := range entries {
		m.resources.Revoke(e.PreviewURL)
		m.render.RemoveCard(e.ID)
	}
	m.syncSurfaceLocked()
	metrics.SetEntries(0)
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn().Msg("teardown did not wait for in-flight admissions")
	}

	m.log.Info().Int("released", len(entries)).Msg("teardown complete")
	return len(entries)
}

// Play 查找条目并交给 RenderSink 播放；不存在时返回 false。
func (m *Manager) Play(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	idx, ok := m.indexLocked(id)
	if !ok {
		return false
	}
	m.render.Present(m.entries[idx])
	return true
}

// DismissError 手动关闭当前错误信息。
func (m *Manager) DismissError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.errShown {
		return
	}
	m.errGen++
	m.errShown = false
	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	m.errors.HideError()
}

func (m *Manager) showErrorLocked(msg string) {
	m.errGen++
	gen := m.errGen
	m.errShown = true
	m.errors.ShowError(msg)

	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	m.errTimer = time.AfterFunc(m.errorDismiss, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// 旧定时器不能隐藏更新的错误。
		if m.closed || m.errGen != gen {
			return
		}
		m.errShown = false
		m.errors.HideError()
	})
}

// Entries 返回集合快照（展示顺序）。
func (m *Manager) Entries() []domain.VideoEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.VideoEntry(nil), m.entries...)
}

// Get 按 ID 查找条目。
func (m *Manager) Get(id string) (domain.VideoEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexLocked(id)
	if !ok {
		return domain.VideoEntry{}, false
	}
	return m.entries[idx], true
}

// Len 返回集合大小。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// PreviewVisible 返回预览区域是否可见（即集合是否非空）。
func (m *Manager) PreviewVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// ErrorShown 返回当前是否有错误信息在展示。
func (m *Manager) ErrorShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errShown
}

// MaxFileSize 返回校验器生效的大小上限。
func (m *Manager) MaxFileSize() int64 { return m.validator.MaxSize() }

// acquireGate 优先非阻塞获取闸门，避免 ctx 已结束时与空闲闸门随机竞争。
func (m *Manager) acquireGate(ctx context.Context) bool {
	select {
	case m.gate <- struct{}{}:
		return true
	default:
	}
	select {
	case m.gate <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) indexLocked(id string) (int, bool) {
	if _, ok := m.ids[id]; !ok {
		return -1, false
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			return i, true
		}
	}
	return -1, false
}
