// Package stack provides a LIFO stack of fixed-size items on top of flexa.
package stack

import (
	"errors"

	"github.com/joshuapare/guardheap/pkg/flexa"
)

// ErrEmpty indicates Pop or Peek on an empty stack.
var ErrEmpty = errors.New("stack: empty")

// Stack is a LIFO of fixed-size items. It is not safe for concurrent use.
type Stack struct {
	items *flexa.Array
}

// New returns a stack for items of itemSize bytes with room for capacity
// items before it grows.
func New(a flexa.Allocator, itemSize, capacity int) (*Stack, error) {
	items, err := flexa.New(a, itemSize, capacity)
	if err != nil {
		return nil, err
	}
	return &Stack{items: items}, nil
}

// Push copies item onto the top of the stack.
func (s *Stack) Push(item []byte) error { return s.items.Add(item) }

// Pop removes the top item and returns a copy of it.
func (s *Stack) Pop() ([]byte, error) {
	top, err := s.Peek()
	if err != nil {
		return nil, err
	}
	if err := s.items.Remove(s.items.Len() - 1); err != nil {
		return nil, err
	}
	return top, nil
}

// Peek returns a copy of the top item without removing it.
func (s *Stack) Peek() ([]byte, error) {
	if s.Empty() {
		return nil, ErrEmpty
	}
	top, err := s.items.Get(s.items.Len() - 1)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), top...), nil
}

// Len returns the number of items on the stack.
func (s *Stack) Len() int { return s.items.Len() }

// Empty reports whether the stack holds no items.
func (s *Stack) Empty() bool { return s.items.Len() == 0 }

// Free releases the stack's storage.
func (s *Stack) Free() error { return s.items.Free() }
