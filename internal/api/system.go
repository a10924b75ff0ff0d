package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthCheck handles GET /api/health. The endpoint always reports ok while
// the process serves requests; resource stats are best effort.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if c.startTime != nil {
		uptime := time.Since(*c.startTime)
		response["uptime"] = uptime.String()
		response["uptime_seconds"] = uptime.Seconds()
	}

	// Capacity of the volume holding samples, uploads and snapshots.
	if usage, err := disk.Usage(c.Settings.Data.Path); err == nil {
		response["disk"] = map[string]any{
			"path":         c.Settings.Data.Path,
			"total_gb":     float64(usage.Total) / (1024 * 1024 * 1024),
			"free_gb":      float64(usage.Free) / (1024 * 1024 * 1024),
			"used_percent": usage.UsedPercent,
		}
	} else {
		c.Debug("Failed to get disk usage for %s: %v", c.Settings.Data.Path, err)
	}

	memory := map[string]any{}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		memory["total_mb"] = float64(memInfo.Total) / 1024 / 1024
		memory["used_percent"] = memInfo.UsedPercent
	} else {
		c.Debug("Failed to get memory info: %v", err)
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			memory["process_rss_mb"] = float64(procMem.RSS) / 1024 / 1024
		}
	}
	response["memory"] = memory

	return ctx.JSON(http.StatusOK, response)
}
