package syncer

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/clock"
	"github.com/roach88/chartsync/internal/clone"
	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/logger"
	"github.com/roach88/chartsync/internal/remote"
	"github.com/roach88/chartsync/internal/store"
)

// Default protocol timings.
const (
	DefaultDebounce     = 2 * time.Second
	DefaultSyncedWindow = 3 * time.Second
	DefaultErrorWindow  = 5 * time.Second
)

// Store is the local entity store as seen by a session.
type Store interface {
	ReadFull(ctx context.Context, id string) (*diagram.Diagram, error)
	DefaultDiagramID(ctx context.Context) (string, error)
}

// Remote is the part of the sync API a session talks to.
type Remote interface {
	Me(ctx context.Context) (*remote.User, error)
	SyncDiagram(ctx context.Context, d *diagram.Diagram) (*remote.SyncResult, error)
}

// Subscriber delivers committed store writes.
type Subscriber interface {
	Subscribe(fn func(store.WriteEvent)) (unsubscribe func())
}

// Env holds a session's collaborators. Store and Remote are required.
type Env struct {
	Store  Store
	Remote Remote
	Clock  clock.Clock
	Logger *zap.Logger
	// Prefs persists the auto-sync toggle. Nil keeps it in memory only.
	Prefs *PrefsFile
}

// Options tune a session. Zero durations pick the defaults.
type Options struct {
	Debounce     time.Duration
	SyncedWindow time.Duration
	ErrorWindow  time.Duration

	// OnStateChange receives a snapshot after every observable change.
	OnStateChange func(Status)
	// OnUnauthorized is called when a push is rejected for credentials.
	OnUnauthorized func()
}

// Session runs the change-sync protocol for one active diagram.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine.
//   - Pushes run on their own goroutine; hooks run outside the session lock.
//
// INVARIANTS:
//   - At most one push is in flight; a timer expiry during a push is
//     deferred until it finishes, never run concurrently.
//   - There is exactly one debounce timer; every mutation replaces it.
//   - The store is fully read and cloned before the network call starts.
//   - An in-flight push is never cancelled, not even by a diagram switch.
type Session struct {
	store  Store
	remote Remote
	clock  clock.Clock
	log    *zap.Logger
	prefs  *PrefsFile
	opts   Options

	mu            sync.Mutex
	state         State
	diagramID     string
	autoSync      bool
	authenticated bool
	dirty         bool
	inFlight      bool
	deferred      bool
	closed        bool
	debounce      clock.Timer
	debounceGen   uint64
	revert        clock.Timer
	revertGen     uint64
	pushed        map[string]string // diagram id -> fingerprint of the last successful push
	lastErr       error
	lastSyncedAt  time.Time
	lastVersion   int

	// delivered by unlock
	events       []Status
	unauthorized bool

	wg sync.WaitGroup
}

// New creates an idle, unauthenticated session with no active diagram.
func New(env Env, opts Options) (*Session, error) {
	if env.Store == nil || env.Remote == nil {
		return nil, errors.New("syncer: store and remote are required")
	}
	if env.Clock == nil {
		env.Clock = clock.Real{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SyncedWindow <= 0 {
		opts.SyncedWindow = DefaultSyncedWindow
	}
	if opts.ErrorWindow <= 0 {
		opts.ErrorWindow = DefaultErrorWindow
	}

	s := &Session{
		store:  env.Store,
		remote: env.Remote,
		clock:  env.Clock,
		log:    logger.OrNop(env.Logger),
		prefs:  env.Prefs,
		opts:   opts,
		state:  StateIdle,
		pushed: map[string]string{},
	}

	prefs := DefaultPrefs()
	if s.prefs != nil {
		loaded, err := s.prefs.Load()
		if err != nil {
			s.log.Warn("preferences unreadable, using defaults", zap.Error(err))
		} else {
			prefs = loaded
		}
	}
	s.autoSync = prefs.AutoSync
	return s, nil
}

// Authenticate checks the session credentials with the remote. Any failure
// leaves the session unauthenticated and stops scheduling pushes.
func (s *Session) Authenticate(ctx context.Context) (*remote.User, error) {
	u, err := s.remote.Me(ctx)

	s.mu.Lock()
	defer s.unlock()
	if err != nil {
		s.authenticated = false
		s.stopDebounce()
		s.deferred = false
		if s.state == StatePending {
			s.setState(StateIdle)
		}
		s.changed()
		return nil, err
	}

	s.authenticated = true
	if s.dirty && s.canSchedule() {
		s.armDebounce()
	}
	s.changed()
	return u, nil
}

// SetLocation switches the active diagram to the one named by location, a
// path such as /diagrams/<id>. Without a diagram id the store's default
// diagram is used. Switching resets the debounce timer; a push in flight for
// the previous diagram completes normally.
func (s *Session) SetLocation(ctx context.Context, location string) error {
	id := DiagramIDFromLocation(location)
	if id == "" {
		def, err := s.store.DefaultDiagramID(ctx)
		if err != nil {
			return err
		}
		id = def
	}

	s.mu.Lock()
	defer s.unlock()
	if s.closed || id == s.diagramID {
		return nil
	}

	s.log.Info("active diagram changed", zap.String("from", s.diagramID), zap.String("to", id))
	s.stopDebounce()
	s.deferred = false
	s.dirty = false
	s.diagramID = id
	if !s.inFlight {
		s.stopRevert()
		s.state = StateIdle
	}
	s.changed()
	return nil
}

// DiagramIDFromLocation extracts <id> from a location containing
// /diagrams/<id>, or returns "".
func DiagramIDFromLocation(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil {
		p = u.Path
	}
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "diagrams" && segs[i+1] != "" {
			return segs[i+1]
		}
	}
	return ""
}

// SetAutoSync changes and persists the auto-sync preference. Enabling it
// schedules a sync of the active diagram.
func (s *Session) SetAutoSync(enabled bool) error {
	if s.prefs != nil {
		if err := s.prefs.Update(func(p *Prefs) { p.AutoSync = enabled }); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.unlock()
	s.applyAutoSync(enabled)
	return nil
}

// ReloadPrefs re-reads the preference file and applies an auto-sync value
// changed by another process. It reports whether anything changed.
func (s *Session) ReloadPrefs() (bool, error) {
	if s.prefs == nil {
		return false, nil
	}
	prefs, err := s.prefs.Load()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.unlock()
	if prefs.AutoSync == s.autoSync {
		return false, nil
	}
	s.log.Info("auto-sync preference changed", zap.Bool("auto_sync", prefs.AutoSync))
	s.applyAutoSync(prefs.AutoSync)
	return true, nil
}

// applyAutoSync sets the in-memory toggle. Caller holds mu.
func (s *Session) applyAutoSync(enabled bool) {
	s.autoSync = enabled
	if enabled {
		if s.canSchedule() {
			s.armDebounce()
		}
	} else {
		s.stopDebounce()
		s.deferred = false
		if s.state == StatePending {
			s.setState(StateIdle)
		}
	}
	s.changed()
}

// NotifyMutation signals a local write. It (re)starts the debounce timer,
// or only marks the session dirty while auto-sync is off or the session is
// unauthenticated.
func (s *Session) NotifyMutation() {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return
	}
	s.dirty = true
	if !s.canSchedule() {
		s.log.Debug("mutation recorded, sync not scheduled",
			zap.Bool("auto_sync", s.autoSync),
			zap.Bool("authenticated", s.authenticated),
			zap.String("diagram_id", s.diagramID))
		return
	}
	s.armDebounce()
}

// Attach subscribes the session to every committed write of src.
func (s *Session) Attach(src Subscriber) (detach func()) {
	return src.Subscribe(func(store.WriteEvent) { s.NotifyMutation() })
}

// SyncNow starts a sync immediately, skipping the debounce wait. It works
// with auto-sync disabled and reports false when the request was ignored:
// a push is already in flight, no diagram is active, or the session is
// unauthenticated.
func (s *Session) SyncNow() bool {
	s.mu.Lock()
	defer s.unlock()
	if s.closed || s.inFlight {
		s.log.Debug("manual sync ignored, push in flight", zap.String("diagram_id", s.diagramID))
		return false
	}
	if s.diagramID == "" || !s.authenticated {
		return false
	}
	s.stopDebounce()
	s.deferred = false
	s.start(TriggerManual)
	return true
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// DiagramID returns the active diagram id.
func (s *Session) DiagramID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagramID
}

// Wait blocks until no push is in flight.
func (s *Session) Wait() { s.wg.Wait() }

// Close stops all timers and waits for an in-flight push to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopDebounce()
	s.stopRevert()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) canSchedule() bool {
	return s.autoSync && s.authenticated && s.diagramID != "" && !s.closed
}

// armDebounce replaces the debounce timer. Caller holds mu.
func (s *Session) armDebounce() {
	s.stopDebounce()
	gen := s.debounceGen
	s.debounce = s.clock.AfterFunc(s.opts.Debounce, func() { s.onDebounce(gen) })
	if !s.inFlight {
		s.stopRevert()
		s.setState(StatePending)
	}
}

// stopDebounce cancels the debounce timer. Bumping the generation also
// voids a callback that already fired but has not taken the lock yet.
func (s *Session) stopDebounce() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.debounceGen++
}

func (s *Session) onDebounce(gen uint64) {
	s.mu.Lock()
	defer s.unlock()
	if s.closed || gen != s.debounceGen {
		return
	}
	s.debounce = nil
	if s.inFlight {
		s.log.Debug("push in flight, deferring sync", zap.String("diagram_id", s.diagramID))
		s.deferred = true
		return
	}
	s.start(TriggerTimer)
}

func (s *Session) armRevert(d time.Duration) {
	s.stopRevert()
	gen := s.revertGen
	s.revert = s.clock.AfterFunc(d, func() { s.onRevert(gen) })
}

func (s *Session) stopRevert() {
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
	s.revertGen++
}

func (s *Session) onRevert(gen uint64) {
	s.mu.Lock()
	defer s.unlock()
	if gen != s.revertGen {
		return
	}
	s.revert = nil
	if s.state == StateSynced || s.state == StateError {
		s.setState(StateIdle)
	}
}

// start launches a push of the active diagram. Caller holds mu.
func (s *Session) start(trigger Trigger) {
	id := s.diagramID
	s.inFlight = true
	s.dirty = false
	s.stopRevert()
	s.setState(StateSyncing)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, fp, err := s.push(context.Background(), id, trigger)
		s.finish(id, trigger, fp, res, err)
	}()
}

// push reads, fingerprints, clones and sends one diagram. Timer-driven
// pushes of content identical to the last successful push are skipped and
// return a nil result.
func (s *Session) push(ctx context.Context, id string, trigger Trigger) (*remote.SyncResult, string, error) {
	d, err := s.store.ReadFull(ctx, id)
	if err != nil {
		return nil, "", err
	}
	fp, err := clone.Fingerprint(d)
	if err != nil {
		return nil, "", err
	}

	if trigger == TriggerTimer {
		s.mu.Lock()
		unchanged := s.pushed[id] == fp
		s.mu.Unlock()
		if unchanged {
			s.log.Debug("content unchanged, push skipped", zap.String("diagram_id", id))
			return nil, fp, nil
		}
	}

	out, err := clone.Clone(d, clone.PreserveRoot, clone.WithLogger(s.log), clone.WithNow(s.clock.Now))
	if err != nil {
		return nil, "", err
	}
	res, err := s.remote.SyncDiagram(ctx, out.Diagram)
	if err != nil {
		return nil, "", err
	}
	return res, fp, nil
}

func (s *Session) finish(id string, trigger Trigger, fp string, res *remote.SyncResult, err error) {
	s.mu.Lock()
	defer s.unlock()
	s.inFlight = false

	if err != nil {
		s.log.Warn("sync failed",
			zap.String("diagram_id", id),
			zap.String("trigger", string(trigger)),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err))
		s.lastErr = err
		if id == s.diagramID {
			s.dirty = true
		}
		if apperr.IsUnauthorized(err) {
			s.authenticated = false
			s.unauthorized = true
			s.stopDebounce()
			s.deferred = false
		}
		s.setState(StateError)
		s.armRevert(s.opts.ErrorWindow)
	} else {
		s.lastErr = nil
		s.pushed[id] = fp
		s.lastSyncedAt = s.clock.Now()
		if res != nil {
			s.lastVersion = res.Version
			s.log.Info("diagram synced",
				zap.String("diagram_id", id),
				zap.String("trigger", string(trigger)),
				zap.Int("version", res.Version))
		}
		s.setState(StateSynced)
		s.armRevert(s.opts.SyncedWindow)
	}

	if s.closed {
		return
	}
	switch {
	case s.deferred:
		s.deferred = false
		if s.canSchedule() {
			s.start(TriggerTimer)
		} else {
			s.dirty = true
		}
	case s.debounce != nil:
		s.stopRevert()
		s.setState(StatePending)
	}
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.changed()
}

// changed queues a snapshot for OnStateChange. Caller holds mu.
func (s *Session) changed() {
	if s.opts.OnStateChange != nil {
		s.events = append(s.events, s.statusLocked())
	}
}

// unlock releases mu and then delivers queued hooks.
func (s *Session) unlock() {
	events := s.events
	s.events = nil
	unauthorized := s.unauthorized
	s.unauthorized = false
	s.mu.Unlock()

	for _, st := range events {
		s.opts.OnStateChange(st)
	}
	if unauthorized && s.opts.OnUnauthorized != nil {
		s.opts.OnUnauthorized()
	}
}

func (s *Session) statusLocked() Status {
	return Status{
		State:         s.state,
		DiagramID:     s.diagramID,
		AutoSync:      s.autoSync,
		Authenticated: s.authenticated,
		Dirty:         s.dirty,
		LastError:     s.lastErr,
		LastSyncedAt:  s.lastSyncedAt,
		LastVersion:   s.lastVersion,
	}
}
