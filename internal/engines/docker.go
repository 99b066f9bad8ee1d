package engines

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"

	"github.com/docker/go-units"
)

// dockerStats mirrors `docker stats --format '{{json .}}'`
type dockerStats struct {
	CPUPerc  string `json:"CPUPerc"`
	MemUsage string `json:"MemUsage"`
	MemPerc  string `json:"MemPerc"`
	NetIO    string `json:"NetIO"`
	BlockIO  string `json:"BlockIO"`
	PIDs     string `json:"PIDs"`
}

// StatsCommand returns the command line that samples container resource usage once
func StatsCommand(container string) string {
	return Quote("docker", "stats", "--no-stream", "--format", "{{json .}}", container)
}

// LogsCommand returns the command line that tails container logs with timestamps
func LogsCommand(container string, lines int) string {
	return Quote("docker", "logs", "--timestamps", "--tail", strconv.Itoa(lines), container) + " 2>&1"
}

// RestartCommand returns the command line that restarts a container
func RestartCommand(container string) string {
	return Quote("docker", "restart", container)
}

// ContainerSample collects CPU and memory figures for a container. The returned
// sample is never nil; when docker stats fails its resource fields stay nil and
// the error is returned alongside so callers can decide whether anything was collected.
func ContainerSample(ctx context.Context, runner transport.Transport, server *models.Server, container string) (*models.MetricsSample, error) {
	out, err := runner.Run(ctx, server, []string{StatsCommand(container)})
	if err != nil {
		logger.Warn("Container stats unavailable",
			logger.String("container", container),
			logger.Err(err))
		return &models.MetricsSample{CollectedAt: time.Now().UTC()}, err
	}
	return ParseDockerStats(out), nil
}

// ParseDockerStats converts one line of docker stats JSON into a sample
func ParseDockerStats(out string) *models.MetricsSample {
	sample := &models.MetricsSample{CollectedAt: time.Now().UTC()}

	lines := Lines(out)
	if len(lines) == 0 {
		return sample
	}

	var stats dockerStats
	if err := json.Unmarshal([]byte(lines[0]), &stats); err != nil {
		return sample
	}

	if v, ok := parsePercent(stats.CPUPerc); ok {
		sample.CPUPercent = &v
	}
	if v, ok := parsePercent(stats.MemPerc); ok {
		sample.MemoryPercent = &v
	}
	if used, limit, ok := strings.Cut(stats.MemUsage, "/"); ok {
		if b, err := units.RAMInBytes(strings.TrimSpace(used)); err == nil {
			sample.MemoryUsedBytes = &b
		}
		if b, err := units.RAMInBytes(strings.TrimSpace(limit)); err == nil {
			sample.MemoryLimitBytes = &b
		}
	}
	if stats.NetIO != "" {
		sample.SetExtra("net_io", stats.NetIO)
	}
	if stats.BlockIO != "" {
		sample.SetExtra("block_io", stats.BlockIO)
	}
	if pids, err := strconv.ParseInt(strings.TrimSpace(stats.PIDs), 10, 64); err == nil {
		sample.SetExtra("pids", pids)
	}
	return sample
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "--" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int64Ptr parses s as an integer, returning nil when it is not one
func Int64Ptr(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
