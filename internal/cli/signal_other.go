//go:build !unix

package cli

import "os"

var syncNowSignals []os.Signal
