package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ProcessResidentBytes is the resident set size at the last sample
	ProcessResidentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parcel_process_resident_bytes",
			Help: "Resident memory of the parcel process at the last sample",
		},
	)

	// ProcessCPUSeconds is the user plus system CPU time at the last sample
	ProcessCPUSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parcel_process_cpu_seconds",
			Help: "User and system CPU time of the parcel process at the last sample",
		},
	)
)

// SampleProcess records the resource usage of the current process. Textfile
// dumps carry no process collector, so the CLI samples once before writing.
func SampleProcess() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return err
	}
	ProcessResidentBytes.Set(float64(memInfo.RSS))

	times, err := proc.Times()
	if err != nil {
		return err
	}
	ProcessCPUSeconds.Set(times.User + times.System)
	return nil
}
