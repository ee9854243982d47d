// Command progc compiles the GPU programs listed in a YAML manifest.
//
// Usage:
//
//	progc [flags] <command> [args]
//
// Commands:
//
//	compile  - Compile every program of a manifest and report the results
//	watch    - Recompile programs whenever their manifest or shader files change
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/progc/cmd/progc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
