package http

import (
	"sync"
	"time"
)

// rateLimiter implements a simple in-memory rate limiter per client IP.
// It only guards the credential endpoints, where brute forcing is a concern.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries.
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

// allow checks if a request from the given IP should be allowed.
// Returns false if the limit (20 requests per minute) is exceeded.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now

	return client.requests <= 20
}
