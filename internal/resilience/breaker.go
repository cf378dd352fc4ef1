// Package resilience implements the per-endpoint circuit breaker that guards
// calls to the memos API.
package resilience

import (
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 3
	DefaultCoolDown         = 300 * time.Second

	// GeneralEndpoint is used when a failure cannot be attributed to a
	// specific remote endpoint.
	GeneralEndpoint = "general"
)

// OpenNotifier is invoked once each time an endpoint transitions to open.
// It runs under the breaker lock, so implementations must not call back
// into the breaker; slow work should be handed off to a goroutine.
type OpenNotifier func(endpoint string, failures int, lastError string)

// Breaker tracks consecutive failures per endpoint. An endpoint opens once
// its failure count reaches the threshold and closes again either on the
// first success or lazily when the cool-down has elapsed at check time.
// There is no background timer; expiry is observed on the next IsOpen call.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	coolDown  time.Duration

	failures    map[string]int
	lastFailure map[string]time.Time
	lastError   map[string]string
	open        map[string]bool

	notify OpenNotifier
	now    func() time.Time // for testing
}

type Status struct {
	FailedEndpoints []string           `json:"failed_endpoints"`
	FailureCounts   map[string]int     `json:"failure_counts"`
	OpenCircuits    []string           `json:"open_circuits"`
	TimeRemaining   map[string]float64 `json:"time_remaining_seconds"`
}

func NewBreaker(threshold int, coolDown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &Breaker{
		threshold:   threshold,
		coolDown:    coolDown,
		failures:    make(map[string]int),
		lastFailure: make(map[string]time.Time),
		lastError:   make(map[string]string),
		open:        make(map[string]bool),
		now:         time.Now,
	}
}

// OnOpen registers a notifier called when any endpoint opens.
func (b *Breaker) OnOpen(fn OpenNotifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = fn
}

func (b *Breaker) RecordFailure(endpoint, message string) {
	if endpoint == "" {
		endpoint = GeneralEndpoint
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[endpoint]++
	b.lastFailure[endpoint] = b.now()
	b.lastError[endpoint] = message

	if b.failures[endpoint] >= b.threshold && !b.open[endpoint] {
		b.open[endpoint] = true
		if b.notify != nil {
			b.notify(endpoint, b.failures[endpoint], message)
		}
	}
}

// RecordSuccess closes the endpoint immediately, even mid cool-down.
// Recovering fast on the first good response beats waiting out the window
// when the upstream blip was transient.
func (b *Breaker) RecordSuccess(endpoint string) {
	if endpoint == "" {
		endpoint = GeneralEndpoint
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[endpoint] = 0
	delete(b.open, endpoint)
	delete(b.lastFailure, endpoint)
	delete(b.lastError, endpoint)
}

func (b *Breaker) IsOpen(endpoint string) bool {
	if endpoint == "" {
		endpoint = GeneralEndpoint
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpenLocked(endpoint)
}

// AnyOpen reports whether any endpoint is currently open, expiring stale
// entries along the way.
func (b *Breaker) AnyOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for endpoint := range b.open {
		if b.isOpenLocked(endpoint) {
			return true
		}
	}
	return false
}

func (b *Breaker) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := Status{
		FailedEndpoints: []string{},
		FailureCounts:   make(map[string]int),
		OpenCircuits:    []string{},
		TimeRemaining:   make(map[string]float64),
	}

	for endpoint, count := range b.failures {
		if count == 0 {
			continue
		}
		status.FailedEndpoints = append(status.FailedEndpoints, endpoint)
		status.FailureCounts[endpoint] = count
	}

	for endpoint := range b.open {
		if !b.isOpenLocked(endpoint) {
			continue
		}
		status.OpenCircuits = append(status.OpenCircuits, endpoint)
		remaining := b.coolDown - b.now().Sub(b.lastFailure[endpoint])
		status.TimeRemaining[endpoint] = remaining.Seconds()
	}

	return status
}

// isOpenLocked must be called with b.mu held. Expired circuits are reset
// here, which also clears the failure count so reopening takes a full
// threshold of fresh failures.
func (b *Breaker) isOpenLocked(endpoint string) bool {
	if !b.open[endpoint] {
		return false
	}
	if b.now().Sub(b.lastFailure[endpoint]) <= b.coolDown {
		return true
	}

	delete(b.open, endpoint)
	b.failures[endpoint] = 0
	delete(b.lastFailure, endpoint)
	delete(b.lastError, endpoint)
	return false
}
