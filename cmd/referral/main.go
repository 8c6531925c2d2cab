// Command referral runs the invite referral bot and its staff tools.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/referral/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
