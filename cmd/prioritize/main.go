// Command prioritize re-ranks a backlog and keeps its priority and status
// fields consistent with rank.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/prioritize/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; only flag and usage errors
	// reach here unreported.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
