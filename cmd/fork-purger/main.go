// Command fork-purger lists, and with --delete removes, the forked
// repositories of a GitHub account.
package main

import (
	"os"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCommand().Execute(); err != nil {
		a.reportError(err)
		os.Exit(1)
	}
}
