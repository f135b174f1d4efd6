// Command solidctl drives a solidcore service from the shell: it runs the
// sketch demo session, lists and inspects stored archives, exports them to the
// configured blob store and prints the effective attribute policy.
//
// Configuration comes from SOLIDCORE_* environment variables; the persistent
// flags override individual settings.
package main

import (
	"fmt"
	"os"

	"solidcore/internal/platform/config"
)

var exitFunc = os.Exit

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr, config.Load)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "solidctl:", err)
		exitFunc(1)
	}
}
