package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ConnectionPool hands out HTTP clients for GitHub API calls, capped at
// maxActive, and runs every request through the circuit breaker.
type ConnectionPool struct {
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration

	circuitBreaker *CircuitBreaker

	mutex  sync.RWMutex
	active int
	idle   []*pooledClient

	transport *http.Transport
}

type pooledClient struct {
	client   *http.Client
	lastUsed time.Time
}

// NewConnectionPool creates a pool whose clients share one tuned transport.
func NewConnectionPool(maxIdle, maxActive int, idleTimeout time.Duration, cb *CircuitBreaker) *ConnectionPool {
	transport := &http.Transport{
		MaxIdleConns:          maxIdle,
		MaxConnsPerHost:       maxActive,
		MaxIdleConnsPerHost:   maxIdle / 2,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &ConnectionPool{
		maxIdle:        maxIdle,
		maxActive:      maxActive,
		idleTimeout:    idleTimeout,
		circuitBreaker: cb,
		transport:      transport,
	}
}

// GetClient returns an idle client, or a fresh one while under the
// maxActive cap.
func (cp *ConnectionPool) GetClient() (*http.Client, error) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	cp.evictExpired()

	if n := len(cp.idle); n > 0 {
		client := cp.idle[n-1].client
		cp.idle = cp.idle[:n-1]
		slog.Debug("Reusing pooled client", "active", cp.active, "idle", len(cp.idle))
		return client, nil
	}

	if cp.active >= cp.maxActive {
		return nil, fmt.Errorf("connection pool exhausted: %d/%d active connections", cp.active, cp.maxActive)
	}

	cp.active++
	slog.Debug("Created pooled client", "active", cp.active, "idle", len(cp.idle))

	return &http.Client{
		Transport: cp.transport,
		Timeout:   30 * time.Second,
	}, nil
}

// ReturnClient puts a client back for reuse; excess clients are dropped.
func (cp *ConnectionPool) ReturnClient(client *http.Client) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	if len(cp.idle) >= cp.maxIdle {
		if cp.active > 0 {
			cp.active--
		}
		slog.Debug("Idle pool full, dropping returned client")
		return
	}

	cp.idle = append(cp.idle, &pooledClient{client: client, lastUsed: time.Now()})
}

// evictExpired drops idle clients past the idle timeout. Callers hold the lock.
func (cp *ConnectionPool) evictExpired() {
	cutoff := time.Now().Add(-cp.idleTimeout)
	kept := cp.idle[:0]

	for _, pc := range cp.idle {
		if pc.lastUsed.Before(cutoff) {
			if cp.active > 0 {
				cp.active--
			}
			continue
		}
		kept = append(kept, pc)
	}

	cp.idle = kept
}

// GetStats returns pool occupancy and the breaker state.
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	cp.mutex.RLock()
	defer cp.mutex.RUnlock()

	return map[string]interface{}{
		"active_connections":    cp.active,
		"idle_connections":      len(cp.idle),
		"max_idle":              cp.maxIdle,
		"max_active":            cp.maxActive,
		"idle_timeout_ms":       cp.idleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.circuitBreaker.State(),
	}
}

// DoRequest executes a request through the breaker with a pooled client.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := cp.circuitBreaker.Call(func() error {
		client, err := cp.GetClient()
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			cp.ReturnClient(client)
			return err
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err = client.Do(req)
		duration := time.Since(start)

		if err != nil {
			cp.ReturnClient(client)
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())
		cp.ReturnClient(client)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// Close drops all pooled clients and closes their idle network connections.
func (cp *ConnectionPool) Close() error {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	cp.transport.CloseIdleConnections()
	cp.idle = nil
	cp.active = 0

	slog.Info("Connection pool closed")
	return nil
}
