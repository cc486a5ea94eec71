package ratelimit

import (
	"sync"
	"time"
)

// Policy holds the tunable throttling policy. The exact numbers are
// configuration, not correctness constraints.
type Policy struct {
	MaxMessages int           `mapstructure:"max_messages"`
	Window      time.Duration `mapstructure:"window"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// DefaultPolicy allows 5 messages per 10 seconds with a 30 second cooldown.
func DefaultPolicy() Policy {
	return Policy{
		MaxMessages: 5,
		Window:      10 * time.Second,
		Cooldown:    30 * time.Second,
	}
}

// Result is the outcome of an admission check.
type Result struct {
	Admitted   bool
	RetryAfter time.Duration
}

type senderState struct {
	accepted      []time.Time
	cooldownUntil time.Time
	lastSeen      time.Time
}

// Limiter is a per-sender sliding-window counter with a fixed cooldown.
// Once a sender exceeds the window limit, every attempt is rejected until
// the cooldown elapses; further attempts never extend the cooldown.
type Limiter struct {
	mu      sync.Mutex
	policy  Policy
	senders map[string]*senderState
}

func NewLimiter(policy Policy) *Limiter {
	return &Limiter{
		policy:  policy,
		senders: make(map[string]*senderState),
	}
}

// Admit decides whether a send attempt by userID at time now is allowed.
// Admitted attempts are recorded; rejected attempts are not.
func (l *Limiter) Admit(userID string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.senders[userID]
	if !ok {
		state = &senderState{}
		l.senders[userID] = state
	}
	state.lastSeen = now

	// Cooldown is monotonic: attempts during it are rejected without
	// restarting or extending it.
	if now.Before(state.cooldownUntil) {
		return Result{RetryAfter: state.cooldownUntil.Sub(now)}
	}

	// Prune accepted sends that fell out of the sliding window.
	windowStart := now.Add(-l.policy.Window)
	kept := state.accepted[:0]
	for _, ts := range state.accepted {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	state.accepted = kept

	if len(state.accepted) >= l.policy.MaxMessages {
		state.cooldownUntil = now.Add(l.policy.Cooldown)
		return Result{RetryAfter: l.policy.Cooldown}
	}

	state.accepted = append(state.accepted, now)
	return Result{Admitted: true}
}

// Cleanup evicts senders that have been idle longer than maxIdle.
// Call periodically; sender state is otherwise never destroyed.
func (l *Limiter) Cleanup(now time.Time, maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for userID, state := range l.senders {
		if now.Sub(state.lastSeen) > maxIdle && now.After(state.cooldownUntil) {
			delete(l.senders, userID)
		}
	}
}

// StartCleanup runs Cleanup on a ticker until stop is closed.
func (l *Limiter) StartCleanup(interval, maxIdle time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup(time.Now(), maxIdle)
		}
	}
}
