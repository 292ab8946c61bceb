package metrics

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
)

// SysHealth represents real-time process and data-directory metrics.
type SysHealth struct {
	AllocMB      uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	DataDiskSize string
}

// GetSysHealth collects real-time health data for the data directory.
func GetSysHealth(dataPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDiskSize: humanize.IBytes(dirSize(dataPath)),
	}
}

func dirSize(path string) uint64 {
	var size uint64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += uint64(info.Size())
		}
		return nil
	})
	return size
}

// FormatReport renders token usage and health as plain text.
func FormatReport(usage []DailyUsage, health SysHealth) string {
	var sb strings.Builder
	sb.WriteString("Usage & Health Report\n\n")

	sb.WriteString("Recent LLM activity\n")
	if len(usage) == 0 {
		sb.WriteString("  no data yet\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "  %s: %s tokens (%d execs)\n", d.Date, humanize.Comma(int64(d.TotalPrompt+d.TotalCompletion)), d.TotalExecution)
	}

	sb.WriteString("\nSystem health\n")
	fmt.Fprintf(&sb, "  RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "  Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "  Disk data: %s\n", health.DataDiskSize)
	return sb.String()
}
