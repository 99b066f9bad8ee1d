package handlers

import (
	"net/http"
	"os"
	"time"

	"DBAdminDO/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// HealthHandler reports on the gateway process itself
type HealthHandler struct {
	started time.Time
	pid     int32
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		started: time.Now(),
		pid:     int32(os.Getpid()),
	}
}

// GetHealth returns uptime, memory and CPU usage of the gateway process.
// Sampling errors degrade the body but never the status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	proc, err := process.NewProcess(h.pid)
	if err != nil {
		logger.Warn("Failed to inspect gateway process", logger.Err(err))
		c.JSON(http.StatusOK, body)
		return
	}

	if info, err := proc.MemoryInfo(); err == nil {
		body["rss_bytes"] = info.RSS
	}
	if pct, err := proc.CPUPercent(); err == nil {
		body["cpu_percent"] = pct
	}
	if info, err := host.Info(); err == nil {
		body["hostname"] = info.Hostname
		body["platform"] = info.Platform
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		body["host_memory_used_percent"] = vm.UsedPercent
	}

	c.JSON(http.StatusOK, body)
}
