// Package transfer 定义接纳阶段的传输接口，以及默认的定时模拟实现。
package transfer

import (
	"context"
	"math/rand"
	"time"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultMaxStep  = 15.0
)

// Transport 把单个文件“传输”完成。
//
// 约束：
// - progress 以 0..100 的百分比回调，序列单调不减，最后一次回调必为 100（成功时）
// - Transfer 阻塞直到完成、失败或 ctx 取消；回调在调用 Transfer 的 goroutine 上执行
// - 真实实现（分块上传等）替换它时，必须保持上述进度/完成语义
type Transport interface {
	Transfer(ctx context.Context, c domain.Candidate, progress func(percent float64)) error
}

// Simulator 不做任何 I/O：每个 Interval 前进 (0, MaxStep] 的随机步长，到 100 为止。
type Simulator struct {
	Interval time.Duration
	MaxStep  float64
	// Rand 返回 [0,1) 的随机数；为空时使用 math/rand。
	Rand func() float64
}

var _ Transport = Simulator{}

func (s Simulator) Transfer(ctx context.Context, _ domain.Candidate, progress func(percent float64)) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxStep := s.MaxStep
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	rnd := s.Rand
	if rnd == nil {
		rnd = rand.Float64
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	p := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			// 1-rnd() 落在 (0,1]，保证每次都有正向步进，序列必然终止。
			p += maxStep * (1 - rnd())
			if p > 100 {
				p = 100
			}
			if progress != nil {
				progress(p)
			}
			if p >= 100 {
				return nil
			}
		}
	}
}

// Func 把普通函数适配为 Transport（测试与自定义实现）。
type Func func(ctx context.Context, c domain.Candidate, progress func(percent float64)) error

func (f Func) Transfer(ctx context.Context, c domain.Candidate, progress func(percent float64)) error {
	return f(ctx, c, progress)
}
