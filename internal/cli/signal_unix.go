//go:build unix

package cli

import (
	"os"
	"syscall"
)

// syncNowSignals request an immediate sync from a running watch.
var syncNowSignals = []os.Signal{syscall.SIGUSR1}
