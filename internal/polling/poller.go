package polling

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is the unread-count refresh period while no push channel is up.
const DefaultInterval = 10 * time.Second

// RefreshFunc performs one refresh round.
type RefreshFunc func(ctx context.Context) error

// Poller periodically calls a refresh function. At most one loop runs at a time;
// Start and Stop are idempotent.
type Poller struct {
	interval time.Duration
	refresh  RefreshFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, refresh RefreshFunc) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{interval: interval, refresh: refresh}
}

// Start launches the loop unless it is already running. The first refresh
// happens one interval after Start.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(loopCtx, p.done)

	log.Debug().Dur("interval", p.interval).Msg("polling fallback started")
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	log.Debug().Msg("polling fallback stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("polling refresh failed")
			}
		}
	}
}
