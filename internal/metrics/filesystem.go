// Package metrics exposes Prometheus instrumentation for passfs: a
// fs.FileSystem decorator recording per-operation latency and outcome,
// gauges over the live bookkeeping tables, and the HTTP endpoint serving
// them.
package metrics

import (
	"context"
	"time"

	"passfs/internal/fs"
	"passfs/internal/state"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

const (
	namespace = "passfs"
	subsystem = "fuse"
)

// Metrics holds the collectors shared by every instrumented filesystem.
type Metrics struct {
	operationsDurationSeconds *prometheus.HistogramVec
	readBytes                 prometheus.Counter
	readDirEntries            prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_duration_seconds",
				Help:      "Amount of time spent per filesystem operation, in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"operation", "status_code"}),
		readBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "read_bytes_total",
				Help:      "Total number of bytes returned by read operations.",
			}),
		readDirEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "readdir_entries_total",
				Help:      "Total number of directory entries returned by readdir operations.",
			}),
	}
	reg.MustRegister(m.operationsDurationSeconds, m.readBytes, m.readDirEntries)
	return m
}

// operationHistogram holds references to the metrics of a single
// operation that can never fail.
type operationHistogram struct {
	ok prometheus.Observer
}

func (m *Metrics) newOperationHistogram(operation string) operationHistogram {
	return operationHistogram{
		ok: m.operationsDurationSeconds.WithLabelValues(operation, "OK"),
	}
}

func (h *operationHistogram) observe(timeStart time.Time) {
	h.ok.Observe(time.Since(timeStart).Seconds())
}

// operationHistogramWithStatus holds references to the metrics of a
// single operation that can fail.
type operationHistogramWithStatus struct {
	ok      prometheus.Observer
	failure prometheus.ObserverVec
}

func (m *Metrics) newOperationHistogramWithStatus(operation string) operationHistogramWithStatus {
	return operationHistogramWithStatus{
		ok:      m.operationsDurationSeconds.WithLabelValues(operation, "OK"),
		failure: m.operationsDurationSeconds.MustCurryWith(prometheus.Labels{"operation": operation}),
	}
}

func (h *operationHistogramWithStatus) observe(err error, timeStart time.Time) {
	d := time.Since(timeStart).Seconds()
	if err == nil {
		h.ok.Observe(d)
		return
	}
	// Errno names are stable across platforms, unlike their numbers.
	h.failure.WithLabelValues(unix.ErrnoName(fs.ToErrno(err))).Observe(d)
}

type metricsFileSystem struct {
	base    fs.FileSystem
	metrics *Metrics

	getAttr    operationHistogramWithStatus
	lookup     operationHistogramWithStatus
	readLink   operationHistogramWithStatus
	openDir    operationHistogramWithStatus
	readDir    operationHistogramWithStatus
	releaseDir operationHistogram
	open       operationHistogramWithStatus
	read       operationHistogramWithStatus
	release    operationHistogram
	create     operationHistogramWithStatus
	setAttr    operationHistogramWithStatus
	setXAttr   operationHistogramWithStatus
	statFS     operationHistogramWithStatus
}

// Wrap returns a fs.FileSystem that forwards to base while recording the
// duration and outcome of every call.
func (m *Metrics) Wrap(base fs.FileSystem) fs.FileSystem {
	return &metricsFileSystem{
		base:    base,
		metrics: m,

		getAttr:    m.newOperationHistogramWithStatus(fs.OpGetattr),
		lookup:     m.newOperationHistogramWithStatus(fs.OpLookup),
		readLink:   m.newOperationHistogramWithStatus(fs.OpReadlink),
		openDir:    m.newOperationHistogramWithStatus(fs.OpOpendir),
		readDir:    m.newOperationHistogramWithStatus(fs.OpReaddir),
		releaseDir: m.newOperationHistogram(fs.OpReleasedir),
		open:       m.newOperationHistogramWithStatus(fs.OpOpen),
		read:       m.newOperationHistogramWithStatus(fs.OpRead),
		release:    m.newOperationHistogram(fs.OpRelease),
		create:     m.newOperationHistogramWithStatus(fs.OpCreate),
		setAttr:    m.newOperationHistogramWithStatus(fs.OpSetattr),
		setXAttr:   m.newOperationHistogramWithStatus(fs.OpSetxattr),
		statFS:     m.newOperationHistogramWithStatus(fs.OpStatfs),
	}
}

func (mfs *metricsFileSystem) GetAttr(ctx context.Context, ino state.Inode) (*fs.Attr, error) {
	timeStart := time.Now()
	attr, err := mfs.base.GetAttr(ctx, ino)
	mfs.getAttr.observe(err, timeStart)
	return attr, err
}

func (mfs *metricsFileSystem) Lookup(ctx context.Context, parent state.Inode, name string) (*fs.Attr, error) {
	timeStart := time.Now()
	attr, err := mfs.base.Lookup(ctx, parent, name)
	mfs.lookup.observe(err, timeStart)
	return attr, err
}

func (mfs *metricsFileSystem) ReadLink(ctx context.Context, ino state.Inode) (string, error) {
	timeStart := time.Now()
	target, err := mfs.base.ReadLink(ctx, ino)
	mfs.readLink.observe(err, timeStart)
	return target, err
}

func (mfs *metricsFileSystem) OpenDir(ctx context.Context, ino state.Inode) (state.Handle, error) {
	timeStart := time.Now()
	h, err := mfs.base.OpenDir(ctx, ino)
	mfs.openDir.observe(err, timeStart)
	return h, err
}

func (mfs *metricsFileSystem) ReadDir(ctx context.Context, h state.Handle, offset int64, add fs.DirEntryAdder) error {
	entries := 0
	counting := func(entry fs.DirEntry) bool {
		full := add(entry)
		if !full {
			entries++
		}
		return full
	}

	timeStart := time.Now()
	err := mfs.base.ReadDir(ctx, h, offset, counting)
	mfs.readDir.observe(err, timeStart)
	mfs.metrics.readDirEntries.Add(float64(entries))
	return err
}

func (mfs *metricsFileSystem) ReleaseDir(ctx context.Context, h state.Handle) {
	timeStart := time.Now()
	mfs.base.ReleaseDir(ctx, h)
	mfs.releaseDir.observe(timeStart)
}

func (mfs *metricsFileSystem) Open(ctx context.Context, ino state.Inode, flags int) (state.Handle, error) {
	timeStart := time.Now()
	h, err := mfs.base.Open(ctx, ino, flags)
	mfs.open.observe(err, timeStart)
	return h, err
}

func (mfs *metricsFileSystem) Read(ctx context.Context, h state.Handle, offset int64, size int) ([]byte, error) {
	timeStart := time.Now()
	data, err := mfs.base.Read(ctx, h, offset, size)
	mfs.read.observe(err, timeStart)
	mfs.metrics.readBytes.Add(float64(len(data)))
	return data, err
}

func (mfs *metricsFileSystem) Release(ctx context.Context, h state.Handle) {
	timeStart := time.Now()
	mfs.base.Release(ctx, h)
	mfs.release.observe(timeStart)
}

func (mfs *metricsFileSystem) Create(ctx context.Context, parent state.Inode, name string) error {
	timeStart := time.Now()
	err := mfs.base.Create(ctx, parent, name)
	mfs.create.observe(err, timeStart)
	return err
}

func (mfs *metricsFileSystem) SetAttr(ctx context.Context, ino state.Inode) error {
	timeStart := time.Now()
	err := mfs.base.SetAttr(ctx, ino)
	mfs.setAttr.observe(err, timeStart)
	return err
}

func (mfs *metricsFileSystem) SetXAttr(ctx context.Context, ino state.Inode, name string, value []byte) error {
	timeStart := time.Now()
	err := mfs.base.SetXAttr(ctx, ino, name, value)
	mfs.setXAttr.observe(err, timeStart)
	return err
}

func (mfs *metricsFileSystem) StatFS(ctx context.Context, ino state.Inode) error {
	timeStart := time.Now()
	err := mfs.base.StatFS(ctx, ino)
	mfs.statFS.observe(err, timeStart)
	return err
}

func (mfs *metricsFileSystem) Stats() fs.Stats {
	return mfs.base.Stats()
}
