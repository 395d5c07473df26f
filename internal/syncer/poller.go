package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/clock"
	"github.com/roach88/chartsync/internal/diagram"
)

// DefaultPollInterval is the polling period when none is given.
const DefaultPollInterval = time.Second

// SummarySource reads a diagram's summary.
type SummarySource interface {
	Get(ctx context.Context, id string) (diagram.Summary, error)
}

// Poller detects writes made outside this process by watching the active
// diagram's updatedAt, and signals a mutation whenever it advances. Each
// tick also re-reads the session's preference file, so an auto-sync toggle
// made elsewhere takes effect.
//
// The first observation of a diagram only records its timestamp.
type Poller struct {
	session  *Session
	src      SummarySource
	clock    clock.Clock
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	seen    map[string]diagram.Millis
	timer   clock.Timer
	running bool
}

// NewPoller creates a poller feeding s. It shares the session's clock and
// logger.
func NewPoller(s *Session, src SummarySource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		session:  s,
		src:      src,
		clock:    s.clock,
		log:      s.log,
		interval: interval,
		seen:     map[string]diagram.Millis{},
	}
}

// Start polls every interval until Stop is called or ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.schedule(ctx)
}

// Stop halts polling.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// schedule arms the next tick. Caller holds mu.
func (p *Poller) schedule(ctx context.Context) {
	p.timer = p.clock.AfterFunc(p.interval, func() {
		if ctx.Err() == nil {
			if _, err := p.session.ReloadPrefs(); err != nil {
				p.log.Warn("reload preferences failed", zap.Error(err))
			}
			p.Poll(ctx)
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.running && ctx.Err() == nil {
			p.schedule(ctx)
		} else {
			p.running = false
		}
	})
}

// Poll checks the active diagram once and reports whether a mutation was
// signalled.
func (p *Poller) Poll(ctx context.Context) bool {
	id := p.session.DiagramID()
	if id == "" {
		return false
	}

	sum, err := p.src.Get(ctx, id)
	if err != nil {
		if !apperr.IsNotFound(err) {
			p.log.Warn("poll failed", zap.String("diagram_id", id), zap.Error(err))
		}
		return false
	}

	p.mu.Lock()
	last, ok := p.seen[id]
	p.seen[id] = sum.UpdatedAt
	p.mu.Unlock()

	if !ok || sum.UpdatedAt <= last {
		return false
	}
	p.log.Debug("diagram changed on disk",
		zap.String("diagram_id", id),
		zap.Int64("updated_at", int64(sum.UpdatedAt)))
	p.session.NotifyMutation()
	return true
}
