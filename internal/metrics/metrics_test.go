package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"passfs/internal/fs"
	"passfs/internal/state"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInstrumented(t *testing.T) (fs.FileSystem, *Metrics, *prometheus.Registry) {
	t.Helper()
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "foo.txt"), []byte("0123456789"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(sourceDir, "bar"), 0o755))

	pfs, err := fs.New(sourceDir)
	require.NoError(t, err)
	t.Cleanup(func() { pfs.Close() })

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	RegisterStats(reg, pfs.Stats)
	return m.Wrap(pfs), m, reg
}

func TestOperationOutcomes(t *testing.T) {
	mfs, m, _ := setupInstrumented(t)
	ctx := context.Background()

	_, err := mfs.Lookup(ctx, state.RootInode, "foo.txt")
	require.NoError(t, err)
	_, err = mfs.Lookup(ctx, state.RootInode, "missing")
	require.Error(t, err)
	require.Error(t, mfs.Create(ctx, state.RootInode, "new"))
	require.Error(t, mfs.StatFS(ctx, state.RootInode))

	hist := m.operationsDurationSeconds

	// Every operation has its OK series from the start, and each distinct
	// failure adds one.
	assert.Equal(t, 13+3, testutil.CollectAndCount(hist, "passfs_fuse_operations_duration_seconds"))
}

func TestStatusLabels(t *testing.T) {
	mfs, _, reg := setupInstrumented(t)
	ctx := context.Background()

	_, _ = mfs.Lookup(ctx, state.RootInode, "missing")
	_ = mfs.Create(ctx, state.RootInode, "new")
	_ = mfs.StatFS(ctx, state.RootInode)

	families, err := reg.Gather()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, family := range families {
		if family.GetName() != "passfs_fuse_operations_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var op, status string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "operation":
					op = label.GetValue()
				case "status_code":
					status = label.GetValue()
				}
			}
			seen[op+"/"+status] = true
		}
	}

	assert.True(t, seen["lookup/ENOENT"])
	assert.True(t, seen["create/EROFS"])
	assert.True(t, seen["statfs/EPERM"])
}

func TestReadCounters(t *testing.T) {
	mfs, m, _ := setupInstrumented(t)
	ctx := context.Background()

	foo, err := mfs.Lookup(ctx, state.RootInode, "foo.txt")
	require.NoError(t, err)
	h, err := mfs.Open(ctx, foo.Inode, os.O_RDONLY)
	require.NoError(t, err)

	data, err := mfs.Read(ctx, h, 4, 100)
	require.NoError(t, err)
	assert.Len(t, data, 6)
	assert.Equal(t, float64(6), testutil.ToFloat64(m.readBytes))
	mfs.Release(ctx, h)

	dh, err := mfs.OpenDir(ctx, state.RootInode)
	require.NoError(t, err)

	// Refuse the second entry; only the first counts.
	n := 0
	err = mfs.ReadDir(ctx, dh, 0, func(fs.DirEntry) bool {
		n++
		return n > 1
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.readDirEntries))
	mfs.ReleaseDir(ctx, dh)
}

func TestStatsGauges(t *testing.T) {
	mfs, _, reg := setupInstrumented(t)
	ctx := context.Background()

	foo, err := mfs.Lookup(ctx, state.RootInode, "foo.txt")
	require.NoError(t, err)
	_, err = mfs.Open(ctx, foo.Inode, os.O_RDONLY)
	require.NoError(t, err)

	expected := `
# HELP passfs_inodes Number of inodes mapped to a source path.
# TYPE passfs_inodes gauge
passfs_inodes 2
# HELP passfs_open_directories Number of directory handles currently open.
# TYPE passfs_open_directories gauge
passfs_open_directories 0
# HELP passfs_open_files Number of file handles currently open.
# TYPE passfs_open_files gauge
passfs_open_files 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"passfs_inodes", "passfs_open_directories", "passfs_open_files")
	assert.NoError(t, err)
}

func TestServerEndpoints(t *testing.T) {
	_, _, reg := setupInstrumented(t)
	srv := NewServer("127.0.0.1:0", reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "passfs_inodes 1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, srv.Stop(context.Background()))
}
