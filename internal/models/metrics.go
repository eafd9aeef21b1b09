package models

import "time"

// SchedulingMetrics is a point-in-time summary of service activity.
type SchedulingMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SchedulingSuccesses      uint64    `json:"schedulingSuccesses"`
	SchedulingFailures       uint64    `json:"schedulingFailures"`
	StudentsPlaced           uint64    `json:"studentsPlaced"`
	AverageLockWaitMs        float64   `json:"averageLockWaitMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
