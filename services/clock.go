package services

import (
	"sync"
	"time"
)

// Clock - источник текущего времени
type Clock interface {
	Now() time.Time
}

// MonotonicClock никогда не возвращает время меньше уже выданного,
// даже если системные часы перевели назад.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}

// ClockFunc позволяет использовать функцию как Clock (удобно в тестах)
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
