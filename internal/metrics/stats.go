package metrics

import (
	"passfs/internal/fs"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterStats exports the sizes reported by stats as gauges. stats is
// sampled on every scrape.
func RegisterStats(reg prometheus.Registerer, stats func() fs.Stats) {
	gauge := func(name, help string, value func(fs.Stats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			},
			func() float64 { return float64(value(stats())) })
	}

	reg.MustRegister(
		gauge("inodes", "Number of inodes mapped to a source path.",
			func(s fs.Stats) int { return s.Inodes }),
		gauge("open_directories", "Number of directory handles currently open.",
			func(s fs.Stats) int { return s.OpenDirectories }),
		gauge("open_files", "Number of file handles currently open.",
			func(s fs.Stats) int { return s.OpenFiles }),
	)
}
