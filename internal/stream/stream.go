package stream

import (
	"errors"
	"iter"
	"sync/atomic"
)

// ErrConsumed 流只能遍历一次
var ErrConsumed = errors.New("stream already consumed")

// Stream 单次遍历的惰性序列
// 底层序列产出错误后遍历立即结束
type Stream[T any] struct {
	seq  iter.Seq2[T, error]
	used atomic.Bool
}

// New 包装一个序列
func New[T any](seq iter.Seq2[T, error]) *Stream[T] {
	return &Stream[T]{seq: seq}
}

// FromSlice 由切片创建流
func FromSlice[T any](items []T) *Stream[T] {
	return New(func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	})
}

// Fail 创建只产出一个错误的流
func Fail[T any](err error) *Stream[T] {
	return New(func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	})
}

// All 返回可range的序列，第二次遍历只会得到ErrConsumed
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			var zero T
			yield(zero, ErrConsumed)
			return
		}
		for item, err := range s.seq {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect 消费整个流
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for item, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
