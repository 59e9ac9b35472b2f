package models

import "time"

// SystemMetrics is a point-in-time summary of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio               float64   `json:"cache_hit_ratio"`
	CacheHits                   uint64    `json:"cache_hits"`
	CacheMisses                 uint64    `json:"cache_misses"`
	RequestsTotal               uint64    `json:"requests_total"`
	AverageRequestDurationMs    float64   `json:"average_request_duration_ms"`
	StoreCommandCount           uint64    `json:"store_command_count"`
	AverageStoreCommandDuration float64   `json:"average_store_command_duration_ms"`
	AttendanceMarked            uint64    `json:"attendance_marked"`
	NotificationsSent           uint64    `json:"notifications_sent"`
	NotificationsFailed         uint64    `json:"notifications_failed"`
	Goroutines                  int       `json:"goroutines"`
	GeneratedAt                 time.Time `json:"generated_at"`
}
