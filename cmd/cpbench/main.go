// cpbench compiles a source file, runs it against its sample tests and
// ingests problems pushed by Competitive Companion.
package main

import (
	"os"

	"github.com/corey/cpbench/cmd/cpbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
