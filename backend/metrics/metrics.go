// Package metrics wraps a backend.Backend in Prometheus instrumentation:
// an embed-and-time decorator reporting under a shared docker/go-metrics
// Namespace registered once per process.
package metrics

import (
	"context"
	"net/http"
	"time"

	dockermetrics "github.com/docker/go-metrics"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

// NamespacePrefix is the top-level prometheus namespace every CuckooDrive
// metric lives under.
const NamespacePrefix = "cuckoodrive"

// StorageNamespace is the shared docker/go-metrics Namespace every backend
// decorator reports under. The CLI (internal/cmd) registers it once with
// metrics.Register() and serves metrics.Handler() on the debug listener
// configured by config.Debug.
var StorageNamespace = dockermetrics.NewNamespace(NamespacePrefix, "storage", nil)

// The default namespace's instruments are created once so that wrapping
// several backends (each member of a composite) shares one timer and one
// gauge pair, distinguished by the "backend" label. go-metrics appends the
// unit to each exported name, so these come out as
// cuckoodrive_storage_operation_seconds, ..._free_space_bytes and
// ..._used_space_bytes.
var (
	storageLatency   = newLatencyTimer(StorageNamespace)
	storageFreeSpace = newFreeSpaceGauge(StorageNamespace)
	storageUsedSpace = newUsedSpaceGauge(StorageNamespace)
)

func newLatencyTimer(ns *dockermetrics.Namespace) dockermetrics.LabeledTimer {
	return ns.NewLabeledTimer("operation", "duration of backend operations", "backend", "op")
}

func newFreeSpaceGauge(ns *dockermetrics.Namespace) dockermetrics.LabeledGauge {
	return ns.NewLabeledGauge("free_space", "last-observed free space reported by a backend", dockermetrics.Bytes, "backend")
}

func newUsedSpaceGauge(ns *dockermetrics.Namespace) dockermetrics.LabeledGauge {
	return ns.NewLabeledGauge("used_space", "last-observed used space tracked for a backend", dockermetrics.Bytes, "backend")
}

// Register installs StorageNamespace with the default docker/go-metrics
// registry.
func Register() {
	dockermetrics.Register(StorageNamespace)
}

// Handler serves every registered namespace's metrics in Prometheus
// exposition format.
func Handler() http.Handler {
	return dockermetrics.Handler()
}

// decorated wraps a backend.Backend, timing every operation under a single
// labeled timer (the "op" label carries the method name) and exposing the
// backend's last-observed free and used space as a gauge pair, re-sampled
// after every write-mode stream close and every remove.
type decorated struct {
	backend.Backend
	latency   dockermetrics.LabeledTimer
	freeSpace dockermetrics.LabeledGauge
	usedSpace dockermetrics.LabeledGauge
}

var _ backend.Backend = (*decorated)(nil)

// Wrap instruments b, labeling every metric with b.Name() so multiple
// wrapped backends (e.g. each member of a composite's fan-out set) are
// distinguishable in the exported series. A nil ns reports under
// StorageNamespace's shared instruments; a non-nil ns (tests, an embedding
// application with its own registry) gets a fresh set on it.
func Wrap(b backend.Backend, ns *dockermetrics.Namespace) backend.Backend {
	if ns == nil {
		return &decorated{
			Backend:   b,
			latency:   storageLatency,
			freeSpace: storageFreeSpace,
			usedSpace: storageUsedSpace,
		}
	}
	return &decorated{
		Backend:   b,
		latency:   newLatencyTimer(ns),
		freeSpace: newFreeSpaceGauge(ns),
		usedSpace: newUsedSpaceGauge(ns),
	}
}

// usedSpacer is implemented by backends (notably sized.Backend) that track
// their current usage directly.
type usedSpacer interface {
	CurSize() int64
}

// sample refreshes the free/used space gauges from the wrapped backend's
// current state. Free space comes through backend.FreeSpace; used space is
// only available when the wrapped backend tracks it (sized.Backend's
// CurSize), and the gauge is left untouched otherwise.
func (d *decorated) sample(ctx context.Context) {
	if free, err := backend.FreeSpace(ctx, d.Backend); err == nil {
		d.freeSpace.WithValues(d.Backend.Name()).Set(float64(free))
	}
	if us, ok := d.Backend.(usedSpacer); ok {
		d.usedSpace.WithValues(d.Backend.Name()).Set(float64(us.CurSize()))
	}
}

// sampledStream defers a gauge refresh to Close, when the wrapped
// backend's accounting has settled for the whole write.
type sampledStream struct {
	backend.Stream
	ctx context.Context
	d   *decorated
}

func (s *sampledStream) Close() error {
	err := s.Stream.Close()
	s.d.sample(s.ctx)
	return err
}

func (d *decorated) time(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	d.latency.WithValues(d.Backend.Name(), op).UpdateSince(start)
	return err
}

func (d *decorated) Open(ctx context.Context, path string, mode backend.Mode) (backend.Stream, error) {
	var s backend.Stream
	err := d.time("Open", func() error {
		var err error
		s, err = d.Backend.Open(ctx, path, mode)
		return err
	})
	if err == nil && mode != backend.ModeRead {
		s = &sampledStream{Stream: s, ctx: ctx, d: d}
	}
	return s, err
}

func (d *decorated) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := d.time("Exists", func() error {
		var err error
		ok, err = d.Backend.Exists(ctx, path)
		return err
	})
	return ok, err
}

func (d *decorated) IsFile(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := d.time("IsFile", func() error {
		var err error
		ok, err = d.Backend.IsFile(ctx, path)
		return err
	})
	return ok, err
}

func (d *decorated) IsDir(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := d.time("IsDir", func() error {
		var err error
		ok, err = d.Backend.IsDir(ctx, path)
		return err
	})
	return ok, err
}

func (d *decorated) ListDir(ctx context.Context, path string, opts backend.ListOptions) ([]string, error) {
	var names []string
	err := d.time("ListDir", func() error {
		var err error
		names, err = d.Backend.ListDir(ctx, path, opts)
		return err
	})
	return names, err
}

func (d *decorated) MakeDir(ctx context.Context, path string, opts backend.MakeDirOptions) error {
	return d.time("MakeDir", func() error { return d.Backend.MakeDir(ctx, path, opts) })
}

func (d *decorated) RemoveDir(ctx context.Context, path string, opts backend.RemoveDirOptions) error {
	return d.time("RemoveDir", func() error { return d.Backend.RemoveDir(ctx, path, opts) })
}

func (d *decorated) Remove(ctx context.Context, path string) error {
	err := d.time("Remove", func() error { return d.Backend.Remove(ctx, path) })
	if err == nil {
		d.sample(ctx)
	}
	return err
}

func (d *decorated) Rename(ctx context.Context, src, dst string) error {
	return d.time("Rename", func() error { return d.Backend.Rename(ctx, src, dst) })
}

func (d *decorated) GetSize(ctx context.Context, path string) (int64, error) {
	var size int64
	err := d.time("GetSize", func() error {
		var err error
		size, err = d.Backend.GetSize(ctx, path)
		return err
	})
	return size, err
}

func (d *decorated) GetInfo(ctx context.Context, path string) (backend.FileInfo, error) {
	var fi backend.FileInfo
	err := d.time("GetInfo", func() error {
		var err error
		fi, err = d.Backend.GetInfo(ctx, path)
		return err
	})
	return fi, err
}

// FreeSpace reports d's wrapped backend free space via backend.FreeSpace,
// additionally recording it on freeSpace so it shows up as a gauge even
// when nothing else polls it between scrapes.
func (d *decorated) FreeSpace(ctx context.Context) (uint64, error) {
	free, err := backend.FreeSpace(ctx, d.Backend)
	if err == nil {
		d.freeSpace.WithValues(d.Backend.Name()).Set(float64(free))
	}
	return free, err
}
