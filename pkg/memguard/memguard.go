// Package memguard gives the sync pipeline best-effort backpressure against
// resident-memory growth. It cannot prevent a spike between two checks; its
// job is to keep a long attachment loop from being OOM-killed with all
// progress lost.
package memguard

import (
	"bufio"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// Level reports how close the process is to its memory ceiling.
type Level int

const (
	// LevelOK means heavy work may proceed.
	LevelOK Level = iota
	// LevelSoft means new heavy work (extraction calls) should be skipped;
	// assets are still ingested, just without derived text.
	LevelSoft
	// LevelHard means the remaining asset loop should be aborted and the
	// work produced so far committed as a partial snapshot.
	LevelHard
)

// Probe returns the process resident set size in bytes.
type Probe func() (uint64, error)

// Governor checks a memory probe against a soft and a hard threshold.
type Governor struct {
	probe     Probe
	softBytes uint64
	hardBytes uint64
}

// NewGovernor builds a governor with thresholds in megabytes. A nil probe
// falls back to the OS probe.
func NewGovernor(softMB, hardMB uint64, probe Probe) *Governor {
	if probe == nil {
		probe = ResidentBytes
	}
	return &Governor{
		probe:     probe,
		softBytes: softMB * 1024 * 1024,
		hardBytes: hardMB * 1024 * 1024,
	}
}

// Check returns the current pressure level. Probe failures read as LevelOK:
// a broken probe must not stall ingestion.
func (g *Governor) Check() Level {
	rss, err := g.probe()
	if err != nil {
		return LevelOK
	}
	switch {
	case rss >= g.hardBytes:
		return LevelHard
	case rss >= g.softBytes:
		return LevelSoft
	default:
		return LevelOK
	}
}

// Reclaim hands freed heap memory back to the OS. Called between assets so
// peak RSS stays bounded by the largest single asset, not the asset count.
func (g *Governor) Reclaim() {
	rss, err := g.probe()
	if err == nil && rss < g.softBytes/2 {
		return
	}
	debug.FreeOSMemory()
}

// ResidentBytes reads VmRSS from /proc/self/status. On platforms without
// procfs it falls back to the Go runtime's own accounting, which undercounts
// non-heap memory but keeps the governor functional.
func ResidentBytes() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return ms.Sys, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys, nil
}
