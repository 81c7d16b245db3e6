package models

import "time"

// DashboardSummary is the admin landing page overview.
type DashboardSummary struct {
	TotalUsers          int                      `json:"total_users"`
	TotalPrograms       int                      `json:"total_programs"`
	ActivePrograms      int                      `json:"active_programs"`
	EnrollmentsByStatus map[EnrollmentStatus]int `json:"enrollments_by_status"`
	TotalPosts          int                      `json:"total_posts"`
	RecentEnrollments   []EnrollmentDetail       `json:"recent_enrollments"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// ExportResource names an exportable admin dataset.
type ExportResource string

const (
	ExportUsers       ExportResource = "users"
	ExportPrograms    ExportResource = "programs"
	ExportEnrollments ExportResource = "enrollments"
)

// ExportResult points at a generated export file.
type ExportResult struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SystemMetrics is a process-local summary of the Prometheus collectors.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
