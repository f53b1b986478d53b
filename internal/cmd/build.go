package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
	_ "github.com/lukasmartinelli-alt/cuckoodrive/backend/localdisk"
	backendmetrics "github.com/lukasmartinelli-alt/cuckoodrive/backend/metrics"
	_ "github.com/lukasmartinelli-alt/cuckoodrive/backend/memory"
	_ "github.com/lukasmartinelli-alt/cuckoodrive/backend/s3backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/sized"
	"github.com/lukasmartinelli-alt/cuckoodrive/composite"
	"github.com/lukasmartinelli-alt/cuckoodrive/config"
	"github.com/lukasmartinelli-alt/cuckoodrive/lock"
	"github.com/lukasmartinelli-alt/cuckoodrive/partedfs"
)

// loadConfig reads and parses a CuckooDrive configuration file at path,
// wrapping any parse error with the path.
func loadConfig(path string) (*config.Config, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	cfg, err := config.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return cfg, nil
}

// configureLogging sets the package-global logrus logger level and
// formatter from cfg.Log, once at startup.
func configureLogging(cfg *config.Config) error {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(string(level))
	if err != nil {
		return fmt.Errorf("unsupported log level %q: %w", level, err)
	}
	logrus.SetLevel(parsed)

	switch cfg.Log.Formatter {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported logging formatter: %q", cfg.Log.Formatter)
	}

	return nil
}

// buildComposite assembles a composite.FS from cfg, constructing each
// member backend through backend/factory, sizing it per MaxSize, and
// instrumenting it with backend/metrics — the config-driven wiring that
// backend/factory's registry exists to make possible.
func buildComposite(ctx context.Context, cfg *config.Config) (*composite.FS, error) {
	fs := composite.New()

	for _, b := range cfg.Backends {
		built, err := factory.Create(b.Type, b.Params)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}

		if b.MaxSize > 0 {
			seeded, err := sized.Seed(ctx, built, b.MaxSize)
			if err != nil {
				return nil, fmt.Errorf("backend %q: seeding size: %w", b.Name, err)
			}
			built = seeded
		}

		fs.Add(b.Name, backendmetrics.Wrap(built, nil))
	}

	return fs, nil
}

// buildPartedFS wraps the composite in the partitioning layer per
// cfg.Composite.MaxPartSize.
func buildPartedFS(fs *composite.FS, cfg *config.Config) *partedfs.FS {
	return partedfs.New(fs, cfg.Composite.MaxPartSize)
}

// buildLock constructs the advisory cross-writer lock over fs per
// cfg.Composite.Lock.
func buildLock(fs backend.Backend, cfg *config.Config) *lock.FileLock {
	return lock.New(fs, lock.Options{
		Filename: cfg.Composite.Lock.Filename,
		Timeout:  cfg.Composite.Lock.Timeout.Duration,
		Delay:    cfg.Composite.Lock.Delay.Duration,
	})
}

// maybeServeDebug starts the /metrics debug listener when cfg.Debug.Addr
// is set.
func maybeServeDebug(cfg *config.Config) {
	if cfg.Debug.Addr == "" {
		return
	}

	backendmetrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", backendmetrics.Handler())

	addr := cfg.Debug.Addr
	go func() {
		logrus.Infof("debug server listening %v", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.WithError(err).Error("debug server stopped")
		}
	}()
}
