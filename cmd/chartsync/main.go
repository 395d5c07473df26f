// Command chartsync manages locally stored database diagrams, keeps them in
// sync with a remote server, and can run that server.
package main

import (
	"os"

	"github.com/roach88/chartsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
