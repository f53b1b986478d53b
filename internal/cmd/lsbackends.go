package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

var lsBackendsConfigPath string

func init() {
	LsBackendsCmd.Flags().StringVar(&lsBackendsConfigPath, "config", "", "path to the cuckoo configuration file")
	LsBackendsCmd.MarkFlagRequired("config")
}

// LsBackendsCmd prints each configured backend's name, driver type, and
// current free space without requiring a full sync.
var LsBackendsCmd = &cobra.Command{
	Use:   "lsbackends",
	Short: "list configured backends and their capacity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(lsBackendsConfigPath)
		if err != nil {
			return err
		}
		if err := configureLogging(cfg); err != nil {
			return err
		}

		ctx := context.Background()
		fs, err := buildComposite(ctx, cfg)
		if err != nil {
			return err
		}

		for i, b := range fs.Backends() {
			name := cfg.Backends[i].Name
			free, err := backend.FreeSpace(ctx, b)
			if err != nil {
				fmt.Printf("%-16s %-12s free space: unknown (%v)\n", name, b.Name(), err)
				logrus.WithError(err).Warnf("backend %q: free space unavailable", name)
				continue
			}
			fmt.Printf("%-16s %-12s free space: %d bytes\n", name, b.Name(), free)
		}

		return nil
	},
}
