package geom

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/syncmap"
)

const (
	defaultPoolSize = 10000
	defaultLimitCnt = 5000
	recycleDelay    = 60 * time.Second
	recycleInterval = 30 * time.Minute
	recyclePercent  = 10
)

// SlicePool 基于 channel 的切片对象池, 用于批量窗口和批量结果切片的复用.
type SlicePool[E any] struct {
	pool     chan []E
	getCnt   atomic.Uint32
	putCnt   atomic.Uint32
	limitCnt uint32
	cap      int

	timerMu      sync.Mutex
	recycleTimer *time.Timer
}

// NewSlicePool 创建最多缓存 poolSize 个切片的池, 新建切片的 cap 为 sliceCap.
func NewSlicePool[E any](poolSize, sliceCap, limitCnt int) *SlicePool[E] {
	return &SlicePool[E]{
		pool:     make(chan []E, poolSize),
		cap:      sliceCap,
		limitCnt: uint32(limitCnt),
	}
}

// Get 取出一个切片, 池为空时新建一个 len 为 0 的切片. 内容不会被清零.
func (p *SlicePool[E]) Get() []E {
	select {
	case data := <-p.pool:
		p.getCnt.Add(1)
		return data
	default:
		return make([]E, 0, p.cap)
	}
}

// Put 归还切片, 池已满时直接丢弃. 归还数超过取出数 limitCnt 以上时启动回收计时器.
func (p *SlicePool[E]) Put(data []E) {
	select {
	case p.pool <- data:
		p.putCnt.Add(1)
	default:
		// 池已满，丢弃
	}

	getCnt := p.getCnt.Load()
	putCnt := p.putCnt.Load()

	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	if putCnt-getCnt > p.limitCnt {
		// 触发回收机制
		if p.recycleTimer == nil {
			p.recycleTimer = time.AfterFunc(recycleDelay, p.triggerRecycle)
		} else {
			p.recycleTimer.Reset(recycleDelay)
		}
	} else if p.recycleTimer != nil {
		p.recycleTimer.Stop()
	}
}

func (p *SlicePool[E]) Length() int {
	return len(p.pool)
}

func (p *SlicePool[E]) Capacity() int {
	return cap(p.pool)
}

// triggerRecycle 每次回收池中 10% 的切片, 之后每 30 分钟再触发一次.
func (p *SlicePool[E]) triggerRecycle() {
	recycleCnt := len(p.pool) * recyclePercent / 100
	for i := 0; i < recycleCnt; i++ {
		p.Get()
	}

	p.timerMu.Lock()
	p.recycleTimer.Reset(recycleInterval)
	p.timerMu.Unlock()
}

// Pools 按容量的 2 的幂分桶管理 SlicePool. 零值可用.
type Pools[E any] struct {
	m        syncmap.Map // bucket(int) -> *SlicePool[E]
	poolSize int
	limitCnt int
}

// NewPools 的参数作用于每个桶的 SlicePool, 小于 1 时使用默认值.
func NewPools[E any](poolSize, limitCnt int) *Pools[E] {
	return &Pools[E]{poolSize: poolSize, limitCnt: limitCnt}
}

// Get 返回 len == size 的切片, cap 至少为 size 向上取整到 2 的幂.
func (ps *Pools[E]) Get(size int) []E {
	if size <= 0 {
		return make([]E, 0)
	}
	key := bits.Len(uint(size))
	if size == 1<<(key-1) {
		key--
	}
	ret := ps.bucket(key).Get()
	return ret[:size]
}

// Put 按 cap 向下取整到 2 的幂归还切片, cap 为 0 的切片直接丢弃.
func (ps *Pools[E]) Put(s []E) {
	c := cap(s)
	if c == 0 {
		return
	}
	key := bits.Len(uint(c)) - 1
	ps.bucket(key).Put(s[:0:1<<key])
}

func (ps *Pools[E]) bucket(key int) *SlicePool[E] {
	if v, ok := ps.m.Load(key); ok {
		return v.(*SlicePool[E])
	}
	poolSize, limitCnt := ps.poolSize, ps.limitCnt
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if limitCnt <= 0 {
		limitCnt = defaultLimitCnt
	}
	v, _ := ps.m.LoadOrStore(key, NewSlicePool[E](poolSize, 1<<key, limitCnt))
	return v.(*SlicePool[E])
}
