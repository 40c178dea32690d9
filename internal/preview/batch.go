package preview

import (
	"context"
	"sync"
	"time"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

// Batch 是一次 Admit 的句柄：调用方可以忽略它（fire-and-forget），也可以等待完成。
type Batch struct {
	ID   string
	Size int

	started time.Time
	done    chan struct{}

	// 以下字段由 Manager.mu 保护。
	fractions []float64
	completed int
	finished  bool

	entriesMu sync.Mutex
	entries   []domain.VideoEntry
}

func newBatch(id string, size int) *Batch {
	return &Batch{
		ID:        id,
		Size:      size,
		started:   time.Now(),
		done:      make(chan struct{}),
		fractions: make([]float64, size),
	}
}

// Done 在批次内所有文件都结束（成功、失败或被 teardown 丢弃）后关闭。
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait 阻塞直到批次完成或 ctx 结束。
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries 返回本批次已接纳的条目（按完成顺序）。
func (b *Batch) Entries() []domain.VideoEntry {
	b.entriesMu.Lock()
	defer b.entriesMu.Unlock()
	return append([]domain.VideoEntry(nil), b.entries...)
}

func (b *Batch) addEntry(e domain.VideoEntry) {
	b.entriesMu.Lock()
	b.entries = append(b.entries, e)
	b.entriesMu.Unlock()
}

// fractionSum 返回各文件完成比例之和（已完成文件计 1），范围 0..Size。
func (b *Batch) fractionSum() float64 {
	sum := 0.0
	for _, f := range b.fractions {
		sum += f
	}
	return sum
}

func (b *Batch) finish() {
	if b.finished {
		return
	}
	b.finished = true
	close(b.done)
}
