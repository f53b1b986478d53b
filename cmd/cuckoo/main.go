// Command cuckoo is the CuckooDrive CLI entry point, a thin wrapper around
// internal/cmd's cobra command tree.
package main

import (
	cmd "github.com/lukasmartinelli-alt/cuckoodrive/internal/cmd"
)

func main() {
	cmd.Execute()
}
