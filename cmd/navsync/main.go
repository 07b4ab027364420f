// Command navsync drives and inspects the navigation sync engine.
package main

import (
	"fmt"
	"os"

	"github.com/GuLp-St/Attendance-Studio/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
