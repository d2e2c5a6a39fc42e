// Command vortex-cli is a thin operator front end over pkg/vortex,
// grounded on the teacher's cmd/example/main.go (a direct veclite
// consumer) generalized into a multi-command spf13/cobra tool the way
// Aman-CERP-amanmcp/cmd/amanmcp and ihavespoons-zrok/cmd structure
// theirs.
package main

import (
	"fmt"
	"os"

	"github.com/monishSR/vortex/cmd/vortex-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
