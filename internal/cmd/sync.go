package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lukasmartinelli-alt/cuckoodrive/dcontext"
	"github.com/lukasmartinelli-alt/cuckoodrive/syncer"
)

// ANSI SGR codes for event coloring: copied green, updated yellow,
// removed red, moved cyan, other neutral.
const (
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiCyan   = "\x1b[36m"
	ansiReset  = "\x1b[0m"
)

var (
	syncConfigPath string
	syncWatch      bool
	syncVerbose    bool
	syncDryRun     bool
)

func init() {
	SyncCmd.Flags().StringVar(&syncConfigPath, "config", "", "path to the cuckoo configuration file")
	SyncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep watching the local directory and re-sync on change")
	SyncCmd.Flags().BoolVarP(&syncVerbose, "verbose", "v", false, "print every event, including skipped files")
	SyncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report planned actions without performing them")
	SyncCmd.MarkFlagRequired("config")
}

// SyncCmd pushes a local directory onto the configured composite.
var SyncCmd = &cobra.Command{
	Use:   "sync --config <path> <local-dir>",
	Short: "push a local directory onto the configured composite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		localDir := args[0]

		cfg, err := loadConfig(syncConfigPath)
		if err != nil {
			return err
		}
		if err := configureLogging(cfg); err != nil {
			return err
		}

		maybeServeDebug(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx = dcontext.WithLogger(ctx, logrus.WithField("local.dir", localDir))
		log := dcontext.GetLogger(ctx)

		composite, err := buildComposite(ctx, cfg)
		if err != nil {
			return err
		}
		dst := buildPartedFS(composite, cfg)
		fileLock := buildLock(composite, cfg)

		guard, err := fileLock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquiring lock: %w", err)
		}
		defer guard.Release(context.Background())

		opts := syncer.Options{DryRun: syncDryRun, OnEvent: printEvent}

		log.Info("starting sync")
		if err := syncer.Sync(ctx, localDir, "/", dst, opts); err != nil {
			return err
		}

		if !syncWatch {
			return nil
		}

		watcher, err := watchTree(localDir)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("received interrupt, shutting down")
				return nil
			case _, ok := <-watcher.Events():
				if !ok {
					return nil
				}
				log.Info("local tree changed, re-syncing")
				if err := syncer.Sync(ctx, localDir, "/", dst, opts); err != nil {
					log.WithError(err).Error("sync failed after file change")
				}
			}
		}
	},
}

func printEvent(ev syncer.Event) {
	var color, label string
	switch ev.Kind {
	case syncer.EventCopied:
		color, label = ansiGreen, "copied"
	case syncer.EventUpdated:
		color, label = ansiYellow, "updated"
	case syncer.EventRemoved:
		color, label = ansiRed, "removed"
	case syncer.EventMoved:
		color, label = ansiCyan, "moved"
	case syncer.EventDir:
		color, label = ansiReset, "mkdir"
	case syncer.EventSkipped:
		if !syncVerbose {
			return
		}
		color, label = ansiReset, "skipped"
	default:
		color, label = ansiReset, "event"
	}
	fmt.Printf("%s%-8s%s %s\n", color, label, ansiReset, ev.Path)
}
