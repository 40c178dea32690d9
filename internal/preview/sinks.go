package preview

import (
	"context"
	"time"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

// RenderSink 负责预览区域的展示。Manager 在持锁状态下调用它，实现不得回调 Manager。
type RenderSink interface {
	// InsertCard 在预览网格末尾插入条目卡片（以 e.ID 为键）。
	InsertCard(e domain.VideoEntry)
	// RemoveCard 按 ID 移除卡片；不存在时静默忽略。
	RemoveCard(id string)
	// SetPreviewVisible 只会收到派生值：集合非空 => true。
	SetPreviewVisible(visible bool)
	// Present 以模态/全屏方式播放条目。
	Present(e domain.VideoEntry)
}

// ProgressSink 展示接纳进度。percent 为 0..100 的整数，text 形如 "42%"。
type ProgressSink interface {
	ShowProgress()
	SetProgress(percent int, text string)
	HideProgress()
}

// ErrorSink 展示合并后的多行错误信息。
type ErrorSink interface {
	ShowError(msg string)
	HideError()
}

// Resources 发布/撤销预览资源（blob.Registry 实现）。
type Resources interface {
	Publish(entryID string, c domain.Candidate) (string, error)
	Revoke(url string) bool
}

// Confirmer 是删除前的交互式确认（是/否）。
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc 把普通函数适配为 Confirmer。
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

var (
	// Confirmed 总是同意（例如 HTTP 请求已显式携带 confirm=true）。
	Confirmed Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })
	// Declined 总是拒绝。
	Declined Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
)

// Observer 用于把接纳/删除事件从 Manager 中解耦出来（终端输出、测试记录）。
//
// 约束：Manager 在持锁状态下调用，实现必须快速返回且不得回调 Manager。
type Observer interface {
	OnBatchStart(batchID string, size int)
	OnEntryAdmitted(idx, total int, e domain.VideoEntry, dur time.Duration)
	OnBatchDone(batchID string, admitted, total int, dur time.Duration)
	OnEntryRemoved(e domain.VideoEntry)
}

type nopSink struct{}

func (nopSink) InsertCard(domain.VideoEntry)                               {}
func (nopSink) RemoveCard(string)                                          {}
func (nopSink) SetPreviewVisible(bool)                                     {}
func (nopSink) Present(domain.VideoEntry)                                  {}
func (nopSink) ShowProgress()                                              {}
func (nopSink) SetProgress(int, string)                                    {}
func (nopSink) HideProgress()                                              {}
func (nopSink) ShowError(string)                                           {}
func (nopSink) HideError()                                                 {}
func (nopSink) OnBatchStart(string, int)                                   {}
func (nopSink) OnEntryAdmitted(int, int, domain.VideoEntry, time.Duration) {}
func (nopSink) OnBatchDone(string, int, int, time.Duration)                {}
func (nopSink) OnEntryRemoved(domain.VideoEntry)                           {}
