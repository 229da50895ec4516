// Package tuning derives worker-pool and channel-depth sizes from the host's
// CPU topology and physical memory, the way eutils' utils.go sized xtract's
// worker farms from cpuid and pbnjay/memory instead of a fixed constant.
package tuning

import (
	"runtime"
	"runtime/debug"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

const (
	minServe = 1
	maxServe = 128

	// defaultChunkSize is the data-extraction backpressure chunk size
	// (articles in flight per worker) used when the caller leaves it at
	// zero. Large-memory hosts get a bigger chunk so throughput isn't left
	// on the table; small hosts get the conservative default from the
	// spec.
	defaultChunkSize    = 100
	largeChunkSize      = 250
	largeMemoryGiB      = 32
	bytesPerGiB         = 1 << 30
)

// Tunings is the resolved set of concurrency parameters for one pipeline run.
type Tunings struct {
	NumCPU     int
	NumWorkers int
	ChanDepth  int
	ChunkSize  int
}

// Resolve mirrors eutils' SetTunings: n_jobs == -1 means "use every core",
// n_jobs < 1 is clamped up to 1, everything else is capped at NumCPU.
func Resolve(nJobs int) Tunings {
	nCPU := runtime.NumCPU()

	numWorkers := nJobs
	switch {
	case nJobs == -1:
		numWorkers = nCPU
	case nJobs < 1:
		numWorkers = 1
	case nJobs > nCPU:
		numWorkers = nCPU
	}

	// On SMT hosts (ThreadsPerCore > 1) with every core in use, raise the
	// GC target to 150%; the worker count itself is not changed.
	if cpuid.CPU.ThreadsPerCore > 1 && numWorkers == nCPU {
		debug.SetGCPercent(150)
	}

	chanDepth := numWorkers * 4
	if chanDepth < minServe {
		chanDepth = minServe
	}
	if chanDepth > maxServe {
		chanDepth = maxServe
	}

	chunkSize := defaultChunkSize
	if memory.TotalMemory() >= largeMemoryGiB*bytesPerGiB {
		chunkSize = largeChunkSize
	}

	return Tunings{
		NumCPU:     nCPU,
		NumWorkers: numWorkers,
		ChanDepth:  chanDepth,
		ChunkSize:  chunkSize,
	}
}
