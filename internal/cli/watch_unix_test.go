//go:build unix

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chartsync/internal/remote"
)

func TestWatch_SyncsOnSIGUSR1(t *testing.T) {
	e := newCLIEnv(t)
	e.signup(t)
	id := e.importShop(t)
	e.mustExec(t, "autosync", "off")
	t.Setenv("CHARTSYNC_POLL_INTERVAL", "10ms")

	// Keeps the test binary alive if a signal arrives before watch listens.
	held := make(chan os.Signal, 1)
	signal.Notify(held, syscall.SIGUSR1)
	defer signal.Stop(held)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.execContext(ctx, t, &syncBuffer{}, "watch")
		done <- err
	}()
	defer func() {
		cancel()
		<-done
	}()

	client := remote.New(e.apiURL, remote.WithToken(readPrefs(t, e.prefs).Token))
	require.Eventually(t, func() bool {
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
		_, err := client.GetDiagram(context.Background(), id)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "SIGUSR1 pushes with auto-sync off")
}
