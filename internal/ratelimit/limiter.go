// Package ratelimit ограничивает частоту действий на аккаунт скользящим окном.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter пропускает не больше limit действий ключа за window.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New создаёт лимитер и запускает фоновую очистку старых ключей.
// limit <= 0 отключает ограничение. now — часы окна, nil — time.Now.
func New(limit int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return newLimiter(limit, window, now, 5*time.Minute)
}

func newLimiter(limit int, window time.Duration, now func() time.Time, cleanupEvery time.Duration) *Limiter {
	l := &Limiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      now,
		stopCh:   make(chan struct{}),
	}
	if limit > 0 {
		go l.cleanup(cleanupEvery)
	}
	return l
}

// Close останавливает фоновую очистку. Вызывать на shutdown.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow фиксирует попытку и сообщает, укладывается ли она в лимит.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.recent(key, now.Add(-l.window))
	if len(recent) >= l.limit {
		l.requests[key] = recent
		return false
	}
	l.requests[key] = append(recent, now)
	return true
}

// Release возвращает ключу последний занятый слот: действие не состоялось.
func (l *Limiter) Release(key string) {
	if l.limit <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.requests[key]); n > 0 {
		l.requests[key] = l.requests[key][:n-1]
	}
}

func (l *Limiter) recent(key string, cutoff time.Time) []time.Time {
	var recent []time.Time
	for _, t := range l.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key := range l.requests {
		recent := l.recent(key, cutoff)
		if len(recent) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = recent
		}
	}
}
