// Package kernel 在多条 goroutine lane 上批量计算 geom.Window, 结果与在调用方
// goroutine 上逐个计算完全一致.
//
// 每个下标只会交给一条 lane, 因此同一个 Window 不会被两条 lane 同时访问.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"window/geom"
)

var ErrLengthMismatch = errors.New("kernel: output length does not match input length")

const defaultChunk = 1024

type options struct {
	lanes int
	chunk int
}

type Option interface {
	setOption(o *options)
}

type lanesOpt struct{ n int }

func (l lanesOpt) setOption(o *options) { o.lanes = l.n }

// Lanes 设置最多同时运行的 lane 数, 小于 1 时使用 runtime.GOMAXPROCS(0).
func Lanes(n int) Option {
	return lanesOpt{n}
}

type chunkOpt struct{ n int }

func (c chunkOpt) setOption(o *options) { o.chunk = c.n }

// Chunk 设置每个 lane 任务处理的元素个数, 小于 1 时使用默认值 1024.
func Chunk(n int) Option {
	return chunkOpt{n}
}

// Device 保存 lane 配置和结果切片池, 可被多个 goroutine 并发使用.
type Device[T geom.Scalar] struct {
	lanes int
	chunk int
	pools *geom.Pools[T]
}

// New 按 opts 创建 Device, 未设置的选项取默认值.
func New[T geom.Scalar](opts ...Option) *Device[T] {
	o := options{}
	for _, opt := range opts {
		opt.setOption(&o)
	}
	if o.lanes < 1 {
		o.lanes = runtime.GOMAXPROCS(0)
	}
	if o.chunk < 1 {
		o.chunk = defaultChunk
	}
	return &Device[T]{
		lanes: o.lanes,
		chunk: o.chunk,
		pools: geom.NewPools[T](0, 0),
	}
}

// LaneCount 返回最多同时运行的 lane 数.
func (d *Device[T]) LaneCount() int { return d.lanes }

func (d *Device[T]) ChunkSize() int { return d.chunk }

// Launch 对 [0, n) 中每个 i 调用一次 body(i). 区间按 chunk 切分, 最多 lanes 个
// chunk 同时运行. ctx 取消后不再调度新的 chunk, 已在运行的 chunk 会跑完; 只有
// 确实跳过了 chunk 时才返回 ctx 的错误.
func (d *Device[T]) Launch(ctx context.Context, n int, body func(i int)) error {
	if n <= 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.lanes)
	skipped := false
	forChunks(n, d.chunk, func(lo, hi int) bool {
		if gctx.Err() != nil {
			skipped = true
			return false
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				body(i)
			}
			return nil
		})
		return true
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if skipped {
		return ctx.Err()
	}
	return nil
}

// forChunks 把 [0, n) 切成长度不超过 size 的区间依次交给 yield, yield 返回 false
// 时停止. n 接近 math.MaxInt 时也不会溢出.
func forChunks(n, size int, yield func(lo, hi int) bool) {
	for lo := 0; lo < n; {
		step := min(size, n-lo)
		if !yield(lo, lo+step) || n-lo <= size {
			return
		}
		lo += step
	}
}

func (d *Device[T]) eval(ctx context.Context, ws []geom.Window[T], out []T, f func(geom.Window[T]) T) error {
	if len(out) != len(ws) {
		return fmt.Errorf("%w: in=%d out=%d", ErrLengthMismatch, len(ws), len(out))
	}
	return d.Launch(ctx, len(ws), func(i int) {
		out[i] = f(ws[i])
	})
}

// Widths 写入 out[i] = ws[i].Width().
func (d *Device[T]) Widths(ctx context.Context, ws []geom.Window[T], out []T) error {
	return d.eval(ctx, ws, out, geom.Window[T].Width)
}

// Heights 写入 out[i] = ws[i].Height().
func (d *Device[T]) Heights(ctx context.Context, ws []geom.Window[T], out []T) error {
	return d.eval(ctx, ws, out, geom.Window[T].Height)
}

// Sizes 写入 out[i] = ws[i].Size().
func (d *Device[T]) Sizes(ctx context.Context, ws []geom.Window[T], out []T) error {
	return d.eval(ctx, ws, out, geom.Window[T].Size)
}

// SizesPooled 与 Sizes 相同, 但结果切片取自 Device 的切片池. 调用 release 归还
// 切片, 之后不能再使用 out. release 多次调用只归还一次.
func (d *Device[T]) SizesPooled(ctx context.Context, ws []geom.Window[T]) (out []T, release func(), err error) {
	out = d.pools.Get(len(ws))
	var once sync.Once
	pooled := out
	release = func() {
		once.Do(func() { d.pools.Put(pooled) })
	}
	if err = d.Sizes(ctx, ws, out); err != nil {
		release()
		return nil, nil, err
	}
	return out, release, nil
}

// Reset 把 ws 中每个窗口原地重置为同一组边界.
func (d *Device[T]) Reset(ctx context.Context, ws []geom.Window[T], xMin, xMax, yMin, yMax T) error {
	return d.Launch(ctx, len(ws), func(i int) {
		ws[i].Reset(xMin, xMax, yMin, yMax)
	})
}

// Apply 对 ws 中每个窗口调用 fn, fn 只能修改传入的那一个窗口.
func (d *Device[T]) Apply(ctx context.Context, ws []geom.Window[T], fn func(w *geom.Window[T])) error {
	return d.Launch(ctx, len(ws), func(i int) {
		fn(&ws[i])
	})
}
