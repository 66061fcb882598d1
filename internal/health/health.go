package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// AppName is reported by the health endpoint
const AppName = "Kanyo Viewer"

// Status represents the health check status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// StreamHealth represents health status of a single stream's clip tree
type StreamHealth struct {
	ID             string  `json:"id"`
	Status         Status  `json:"status"`
	DataPathExists bool    `json:"data_path_exists"`
	ClipsReadable  bool    `json:"clips_readable"`
	LatestDate     string  `json:"latest_date,omitempty"`
	UsagePercent   float64 `json:"disk_usage_percent"`
	LastError      string  `json:"last_error,omitempty"`
}

// SystemHealth represents process resource usage
type SystemHealth struct {
	MemoryUsed  uint64 `json:"memory_used_bytes"`
	MemoryTotal uint64 `json:"memory_total_bytes"`
	Uptime      int64  `json:"uptime_seconds"`
	GoRoutines  int    `json:"goroutines"`
}

// Response represents the health check response. Detail fields are only
// populated when requested.
type Response struct {
	Status    Status         `json:"status"`
	App       string         `json:"app"`
	Version   string         `json:"version"`
	Env       string         `json:"env"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	LastCheck *time.Time     `json:"last_check,omitempty"` // previous check, nil on the first
	System    *SystemHealth  `json:"system,omitempty"`
	Streams   []StreamHealth `json:"streams,omitempty"`
	Messages  []string       `json:"messages,omitempty"`
}

// Monitor checks the data paths of the configured streams
type Monitor struct {
	mu        sync.RWMutex
	startTime time.Time
	version   string
	env       string
	streams   map[string]string // id -> data path
	lastCheck time.Time
	logger    *log.Logger
}

// NewMonitor creates a new health monitor
func NewMonitor(version, env string) *Monitor {
	return &Monitor{
		startTime: time.Now(),
		version:   version,
		env:       env,
		streams:   make(map[string]string),
		logger:    log.New(os.Stdout, "[Health] ", log.LstdFlags),
	}
}

// RegisterStream registers a stream data path for health monitoring
func (m *Monitor) RegisterStream(id, dataPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[id] = dataPath
}

// CheckStream inspects one stream's data path and clip tree
func CheckStream(id, dataPath string) StreamHealth {
	h := StreamHealth{ID: id, Status: StatusUnhealthy}

	if info, err := os.Stat(dataPath); err != nil || !info.IsDir() {
		h.LastError = "data path not found"
		return h
	}
	h.DataPathExists = true

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dataPath, &stat); err == nil && stat.Blocks > 0 {
		total := stat.Blocks * uint64(stat.Bsize)
		available := stat.Bavail * uint64(stat.Bsize)
		h.UsagePercent = float64(total-available) * 100 / float64(total)
	}

	entries, err := os.ReadDir(filepath.Join(dataPath, "clips"))
	if err != nil {
		h.Status = StatusDegraded
		h.LastError = "clips directory not readable"
		return h
	}
	h.ClipsReadable = true
	h.Status = StatusHealthy

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse(timezone.DateLayout, entry.Name()); err == nil {
			dates = append(dates, entry.Name())
		}
	}
	if len(dates) > 0 {
		sort.Strings(dates)
		h.LatestDate = dates[len(dates)-1]
	}
	return h
}

// GetSystemHealth returns current process metrics
func (m *Monitor) GetSystemHealth() SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemHealth{
		MemoryUsed:  memStats.Alloc,
		MemoryTotal: memStats.Sys,
		GoRoutines:  runtime.NumGoroutine(),
		Uptime:      int64(time.Since(m.startTime).Seconds()),
	}
}

// Check performs a complete health check
func (m *Monitor) Check() Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	system := m.GetSystemHealth()
	response := Response{
		App:       AppName,
		Version:   m.version,
		Env:       m.env,
		Timestamp: &now,
		System:    &system,
		Streams:   make([]StreamHealth, 0, len(m.streams)),
		Messages:  make([]string, 0),
	}
	if !m.lastCheck.IsZero() {
		last := m.lastCheck
		response.LastCheck = &last
	}

	ids := make([]string, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	healthy := 0
	for _, id := range ids {
		h := CheckStream(id, m.streams[id])
		if h.Status == StatusHealthy {
			healthy++
		} else {
			response.Messages = append(response.Messages, id+": "+h.LastError)
		}
		if h.UsagePercent >= 95 {
			response.Messages = append(response.Messages, id+": storage critically full")
		}
		response.Streams = append(response.Streams, h)
	}

	// Determine overall status
	switch {
	case len(ids) > 0 && healthy == 0:
		response.Status = StatusUnhealthy
	case healthy < len(ids):
		response.Status = StatusDegraded
	default:
		response.Status = StatusHealthy
	}

	m.lastCheck = now
	return response
}

// HTTPHandler returns an HTTP handler for health checks
func (m *Monitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.Check()

		statusCode := http.StatusOK // Still 200 for degraded
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		// Support both simple and detailed responses
		if r.URL.Query().Get("detail") != "true" {
			health = Response{Status: health.Status, App: health.App, Version: health.Version, Env: health.Env}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(health)
	}
}

// BackgroundMonitor runs periodic health checks in the background
func (m *Monitor) BackgroundMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			health := m.Check()

			// Log warnings if unhealthy
			if health.Status != StatusHealthy {
				m.logger.Printf("Health check warning: %s - %v", health.Status, health.Messages)
			}

		case <-ctx.Done():
			return
		}
	}
}
