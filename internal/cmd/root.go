// Package cmd builds the cuckoo command-line tool's cobra command tree: a
// package-level RootCmd that subcommands attach themselves to from their
// own init() functions, flags bound with cobra's *VarP helpers.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the cuckoo binary's release version, reported by "cuckoo
// version" and the --version flag.
const Version = "0.1.0"

var showVersion bool

func init() {
	RootCmd.AddCommand(SyncCmd)
	RootCmd.AddCommand(LsBackendsCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

// RootCmd is the main command for the "cuckoo" binary.
var RootCmd = &cobra.Command{
	Use:   "cuckoo",
	Short: "cuckoo pushes a local directory onto a capacity-aware fan-out of storage backends",
	Long:  "cuckoo pushes a local directory onto a capacity-aware fan-out of storage backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(Version)
			return nil
		}
		return cmd.Usage()
	},
}

// Execute runs RootCmd, exiting the process with a non-zero status on any
// surfaced error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
