// Package ecs 提供粒子系统使用的组件存储
//
// ComponentPool 是一个有容量上限的连续数组（arena），
// 沿用"先标记、后统一清理"的销毁方式：遍历过程中只打标记，
// 遍历结束后一次性压缩存活元素，避免每帧分配内存。
package ecs

// ComponentPool 存储同一类型组件的连续切片
//
// 特性：
//   - 容量上限 Cap()，Add 在满时拒绝（不会截断已有元素）
//   - MarkForRemoval 只打标记，RemoveMarked 统一压缩（保持存活元素的相对顺序）
//   - 底层数组在 Clear / RemoveMarked 后复用，稳定运行时不产生分配
type ComponentPool[T any] struct {
	items  []T
	marked []bool
	// 已标记待删除的数量
	markedCount int
	capacity    int
}

// NewComponentPool 创建指定容量上限的组件池
func NewComponentPool[T any](capacity int) *ComponentPool[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &ComponentPool[T]{
		items:    make([]T, 0, capacity),
		marked:   make([]bool, 0, capacity),
		capacity: capacity,
	}
}

// Len 返回当前元素数量（包括已标记但尚未清理的元素）
func (p *ComponentPool[T]) Len() int {
	return len(p.items)
}

// Cap 返回容量上限
func (p *ComponentPool[T]) Cap() int {
	return p.capacity
}

// Full 检查是否已达到容量上限
func (p *ComponentPool[T]) Full() bool {
	return len(p.items) >= p.capacity
}

// Add 追加元素，池已满时返回 false
func (p *ComponentPool[T]) Add(item T) bool {
	if p.Full() {
		return false
	}
	p.items = append(p.items, item)
	p.marked = append(p.marked, false)
	return true
}

// At 返回第 i 个元素的指针，用于原地修改
func (p *ComponentPool[T]) At(i int) *T {
	return &p.items[i]
}

// Items 返回底层切片的只读视图
// 调用方不得保留该切片跨越下一次修改操作
func (p *ComponentPool[T]) Items() []T {
	return p.items
}

// MarkForRemoval 标记第 i 个元素待删除(不立即删除)
func (p *ComponentPool[T]) MarkForRemoval(i int) {
	if !p.marked[i] {
		p.marked[i] = true
		p.markedCount++
	}
}

// IsMarked 检查第 i 个元素是否已被标记
func (p *ComponentPool[T]) IsMarked(i int) bool {
	return p.marked[i]
}

// RemoveMarked 清理所有标记删除的元素，返回清理数量
func (p *ComponentPool[T]) RemoveMarked() int {
	if p.markedCount == 0 {
		return 0
	}
	removed := p.markedCount
	w := 0
	for r := range p.items {
		if p.marked[r] {
			continue
		}
		if w != r {
			p.items[w] = p.items[r]
		}
		p.marked[w] = false
		w++
	}
	p.truncate(w)
	p.markedCount = 0
	return removed
}

// Clear 移除所有元素，保留底层数组
func (p *ComponentPool[T]) Clear() {
	p.truncate(0)
	p.markedCount = 0
}

// SetCap 修改容量上限
// 新上限小于当前数量时，丢弃末尾（最新加入）的元素，返回丢弃数量
func (p *ComponentPool[T]) SetCap(capacity int) int {
	if capacity < 0 {
		capacity = 0
	}
	p.capacity = capacity
	if len(p.items) <= capacity {
		return 0
	}
	dropped := len(p.items) - capacity
	for i := capacity; i < len(p.items); i++ {
		if p.marked[i] {
			p.markedCount--
		}
	}
	p.truncate(capacity)
	return dropped
}

// truncate 截断到 n 个元素，并清零尾部以释放引用
func (p *ComponentPool[T]) truncate(n int) {
	var zero T
	for i := n; i < len(p.items); i++ {
		p.items[i] = zero
		p.marked[i] = false
	}
	p.items = p.items[:n]
	p.marked = p.marked[:n]
}
