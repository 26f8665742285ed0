package leaseagent

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// State is the agent's view of lease ownership.
type State string

const (
	// StateIdle means the agent is not trying to hold the lease.
	StateIdle State = "idle"
	// StateHolding means the lease is held and heartbeats are running.
	StateHolding State = "holding"
	// StateConflict means another user holds the lease.
	StateConflict State = "conflict"
	// StateLost means a held lease was invalidated (heartbeat rejected or
	// the status poll showed another owner).
	StateLost State = "lost"
)

// AgentConfig tunes the agent's timers.
type AgentConfig struct {
	Department string

	// DebounceDelay coalesces acquire triggers fired in a burst (typing,
	// rapid edits) into one request after a quiet period.
	DebounceDelay time.Duration

	// HeartbeatInterval is the base renewal period. A random jitter up to
	// HeartbeatJitter is added to each tick so many agents do not renew in
	// lockstep.
	HeartbeatInterval time.Duration
	HeartbeatJitter   time.Duration

	// PollInterval drives the independent status poll that detects admin
	// release or takeover after expiry.
	PollInterval time.Duration

	// OnStateChange, when set, is called on every transition. Called from
	// the agent's goroutines; must not block.
	OnStateChange func(state State, current *LockInfo)
}

func (c *AgentConfig) applyDefaults() {
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = 500 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Minute
	}
	if c.HeartbeatJitter < 0 {
		c.HeartbeatJitter = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
}

// Agent keeps one department's edit lease alive for a client session. It
// acquires on demand (debounced), renews on a jittered schedule, and watches
// the server's status independently so an admin override is noticed even
// between heartbeats. Losing the lease is a terminal event for the current
// hold; the caller decides whether to trigger a re-acquire.
type Agent struct {
	client *Client
	cfg    AgentConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	debounce *time.Timer
	hbCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAgent creates an agent for one department. Call Start before use.
func NewAgent(client *Client, cfg AgentConfig, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Agent{
		client: client,
		cfg:    cfg,
		logger: logger,
		state:  StateIdle,
	}
}

// Start launches the status-poll loop. The agent stays idle until the first
// RequestLock.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.wg.Add(1)
	go a.pollLoop()
}

// State returns the current ownership state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RequestLock schedules an acquire attempt. Calls within the debounce window
// collapse into a single request.
func (a *Agent) RequestLock() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx == nil || a.ctx.Err() != nil {
		return
	}
	if a.state == StateHolding {
		return
	}
	if a.debounce != nil {
		a.debounce.Reset(a.cfg.DebounceDelay)
		return
	}
	a.debounce = time.AfterFunc(a.cfg.DebounceDelay, a.acquire)
}

// Stop shuts the agent down, firing a best-effort release when the lease is
// held. The release gets a short independent timeout; the server-side expiry
// sweep covers the case where it never lands.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	if a.debounce != nil {
		a.debounce.Stop()
		a.debounce = nil
	}
	holding := a.state == StateHolding
	a.state = StateIdle
	a.mu.Unlock()

	a.wg.Wait()

	if holding {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.client.Release(ctx, a.cfg.Department); err != nil {
			a.logger.Warn("best-effort release failed",
				"department", a.cfg.Department, "error", err)
		}
	}
}

func (a *Agent) acquire() {
	a.mu.Lock()
	a.debounce = nil
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	info, err := a.client.Acquire(ctx, a.cfg.Department)
	if err != nil {
		if conflict, ok := err.(*ConflictError); ok {
			a.transition(StateConflict, &conflict.Current)
			return
		}
		a.logger.Warn("acquire failed", "department", a.cfg.Department, "error", err)
		a.transition(StateIdle, nil)
		return
	}

	a.mu.Lock()
	if ctx.Err() != nil {
		// Stop raced the debounce timer and the server granted the lease
		// after cancellation. Hand it straight back instead of holding a
		// lease nobody renews.
		a.mu.Unlock()
		relCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.client.Release(relCtx, a.cfg.Department); err != nil {
			a.logger.Warn("best-effort release failed",
				"department", a.cfg.Department, "error", err)
		}
		return
	}
	hbCtx, hbCancel := context.WithCancel(ctx)
	if a.hbCancel != nil {
		a.hbCancel()
	}
	a.hbCancel = hbCancel
	a.mu.Unlock()

	a.transition(StateHolding, info)
	a.wg.Add(1)
	go a.heartbeatLoop(hbCtx)
}

// heartbeatLoop renews until cancelled or a renewal fails. Any failure stops
// the loop: a missed renewal means ownership can no longer be assumed, so
// the safe move is to flip to lost and let the caller re-acquire.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		timer := time.NewTimer(a.nextHeartbeatDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := a.client.Heartbeat(ctx, a.cfg.Department); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("heartbeat failed, dropping lease",
				"department", a.cfg.Department, "error", err)
			a.transition(StateLost, nil)
			return
		}
	}
}

func (a *Agent) nextHeartbeatDelay() time.Duration {
	delay := a.cfg.HeartbeatInterval
	if a.cfg.HeartbeatJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(a.cfg.HeartbeatJitter)))
	}
	return delay
}

// pollLoop watches the server's view of the lock. It catches invalidation
// that heartbeats alone would miss, like an admin release followed by a
// takeover before our next renewal.
func (a *Agent) pollLoop() {
	defer a.wg.Done()

	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := a.client.Status(ctx, a.cfg.Department)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("status poll failed", "department", a.cfg.Department, "error", err)
			continue
		}

		a.mu.Lock()
		holding := a.state == StateHolding
		ours := info.Locked && info.OwnerUserName == a.client.userName
		a.mu.Unlock()

		if holding && !ours {
			a.mu.Lock()
			if a.hbCancel != nil {
				a.hbCancel()
				a.hbCancel = nil
			}
			a.mu.Unlock()
			a.transition(StateLost, info)
		}
	}
}

func (a *Agent) transition(next State, current *LockInfo) {
	a.mu.Lock()
	changed := a.state != next
	a.state = next
	a.mu.Unlock()

	if changed && a.cfg.OnStateChange != nil {
		a.cfg.OnStateChange(next, current)
	}
}
