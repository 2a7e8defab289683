// Package geom 提供轴对齐矩形窗口 Window 及批量计算用的切片池.
package geom

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Scalar 是 Window 坐标允许的数值类型, 必须支持减法和乘法. 复数类型同样允许.
type Scalar interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// Window 表示二维平面上的轴对齐矩形 [xMin, xMax] x [yMin, yMax].
//
// Window 不做任何校验: 边界反转(xMin > xMax 或 yMin > yMax)是允许的, 此时
// Width/Height 为负, Size 的符号由两轴反转情况决定. 无符号类型反转时按 T 的
// 运算回绕. 调用方负责保证 min <= max.
//
// Window 没有内部同步, 同一个实例在多个 goroutine 间并发修改属于数据竞争.
type Window[T Scalar] struct {
	xMin, xMax T
	yMin, yMax T
}

// NewWindow 按原值保存四个边界, 不交换也不截断.
func NewWindow[T Scalar](xMin, xMax, yMin, yMax T) Window[T] {
	return Window[T]{xMin: xMin, xMax: xMax, yMin: yMin, yMax: yMax}
}

// Size 返回 Width() * Height(). 不取绝对值.
func (w Window[T]) Size() T {
	return w.Width() * w.Height()
}

func (w Window[T]) Width() T {
	return w.xMax - w.xMin
}

func (w Window[T]) Height() T {
	return w.yMax - w.yMin
}

func (w Window[T]) XMin() T { return w.xMin }
func (w Window[T]) XMax() T { return w.xMax }
func (w Window[T]) YMin() T { return w.yMin }
func (w Window[T]) YMax() T { return w.yMax }

func (w *Window[T]) SetXMin(v T) { w.xMin = v }
func (w *Window[T]) SetXMax(v T) { w.xMax = v }
func (w *Window[T]) SetYMin(v T) { w.yMin = v }
func (w *Window[T]) SetYMax(v T) { w.yMax = v }

// Bounds 按 NewWindow 的参数顺序返回四个边界, w.Reset(w.Bounds()) 不改变 w.
func (w Window[T]) Bounds() (xMin, xMax, yMin, yMax T) {
	return w.xMin, w.xMax, w.yMin, w.yMax
}

// Reset 原地覆盖全部四个边界, 等价于 *w = NewWindow(xMin, xMax, yMin, yMax).
func (w *Window[T]) Reset(xMin, xMax, yMin, yMax T) {
	w.xMin = xMin
	w.xMax = xMax
	w.yMin = yMin
	w.yMax = yMax
}

func (w Window[T]) String() string {
	return fmt.Sprintf("[%v, %v]x[%v, %v]", w.xMin, w.xMax, w.yMin, w.yMax)
}
