package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/adjudicator/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Flag and usage errors are not pre-formatted by the commands.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
