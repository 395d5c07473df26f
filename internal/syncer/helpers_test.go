package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/remote"
	"github.com/roach88/chartsync/internal/store"
	"github.com/roach88/chartsync/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeRemote records pushes. When gate is set, SyncDiagram signals entered
// and blocks until gate is closed.
type fakeRemote struct {
	mu      sync.Mutex
	pushes  []*diagram.Diagram
	meErr   error
	syncErr error
	pulled  map[string]*remote.Pulled

	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{pulled: map[string]*remote.Pulled{}}
}

func (f *fakeRemote) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 16)
}

func (f *fakeRemote) release() {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (f *fakeRemote) Me(ctx context.Context) (*remote.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &remote.User{ID: 1, Email: "user@example.com"}, nil
}

func (f *fakeRemote) SyncDiagram(ctx context.Context, d *diagram.Diagram) (*remote.SyncResult, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	f.pushes = append(f.pushes, d)
	return &remote.SyncResult{DiagramID: d.ID, Version: len(f.pushes)}, nil
}

func (f *fakeRemote) PullDiagram(ctx context.Context, id string, version int) (*remote.Pulled, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pulled[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "diagram %s not found", id)
	}
	return p, nil
}

func (f *fakeRemote) PullAll(ctx context.Context) ([]remote.Pulled, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []remote.Pulled{}
	for _, p := range f.pulled {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeRemote) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func (f *fakeRemote) lastPush() *diagram.Diagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pushes) == 0 {
		return nil
	}
	return f.pushes[len(f.pushes)-1]
}

type fixture struct {
	store   *store.Store
	remote  *fakeRemote
	clock   *testutil.FakeClock
	session *Session
	states  *stateLog
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(st Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.states); n > 0 && l.states[n-1] == st.State {
		return
	}
	l.states = append(l.states, st.State)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

// newFixture opens a store holding the shop diagram "d1" and an
// authenticated session on it.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	clk := testutil.NewFakeClock(epoch)
	st, err := store.Open(filepath.Join(t.TempDir(), "local.db"), store.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.WriteFull(context.Background(), testutil.ShopDiagram("d1")))

	f := &fixture{
		store:  st,
		remote: newFakeRemote(),
		clock:  clk,
		states: &stateLog{},
	}
	prev := opts.OnStateChange
	opts.OnStateChange = func(s Status) {
		f.states.record(s)
		if prev != nil {
			prev(s)
		}
	}

	f.session, err = New(Env{Store: st, Remote: f.remote, Clock: f.clock}, opts)
	require.NoError(t, err)
	t.Cleanup(f.session.Close)

	_, err = f.session.Authenticate(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.session.SetLocation(context.Background(), "/diagrams/d1"))
	return f
}

// advance moves the fake clock and waits for any push it started.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.session.Wait()
}
