package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VersionCmd prints the cuckoo binary's version and exits.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the cuckoo version and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(Version)
		return nil
	},
}
