package sim

import (
	"slices"

	"golang.org/x/exp/rand"
)

// ReservoirSampler 蓄水池采样，从未知长度的流中等概率保留 k 个元素.
type ReservoirSampler[T any] struct {
	rng     *rand.Rand
	samples []T
	count   int
	k       int
}

// NewReservoirSampler 创建一个新的 ReservoirSampler 实例. src 为 nil 时使用时间熵.
func NewReservoirSampler[T any](k int, src rand.Source) *ReservoirSampler[T] {
	if src == nil {
		src = NewSource(0)
	}
	return &ReservoirSampler[T]{
		rng:     rand.New(src),
		k:       max(k, 0),
		samples: make([]T, 0, max(k, 0)),
	}
}

// Observe 处理一个新到达的元素.
func (s *ReservoirSampler[T]) Observe(item T) {
	s.count++

	if len(s.samples) < s.k {
		s.samples = append(s.samples, item)
		return
	}
	if j := s.rng.Intn(s.count); j < s.k {
		s.samples[j] = item
	}
}

// Samples 获取当前池中的所有样本.
func (s *ReservoirSampler[T]) Samples() []T {
	return s.samples
}

// Count 已观察的元素数.
func (s *ReservoirSampler[T]) Count() int { return s.count }

// Reset 重置采样器.
func (s *ReservoirSampler[T]) Reset() {
	s.count = 0
	s.samples = s.samples[:0]
}

// SamplePaths 从路径集中等概率抽取 k 条用于展示的路径下标，升序返回.
// k 不小于路径数时返回全部下标.
func SamplePaths(ps *PathSet, k int, src rand.Source) []int {
	if ps == nil || k <= 0 {
		return nil
	}
	rs := NewReservoirSampler[int](k, src)
	for i := range ps.rows {
		rs.Observe(i)
	}
	idx := slices.Clone(rs.Samples())
	slices.Sort(idx)
	return idx
}
