// Package scan implements the posts-maintenance job engine: a durable,
// resumable, batch-oriented scan pipeline over the site's content.
//
// A scan drains two independent work queues. The mutation queue holds
// published-post IDs awaiting the last-scanned meta stamp; the metrics queue
// holds all-status post IDs awaiting metrics collection. A job completes only
// when both queues are empty.
package scan

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a scan job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Trigger records what started a scan
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
)

// Metrics is the per-scan counters accumulator. Counters are only ever
// incremented; final values are frozen into the ScanRecord on completion.
type Metrics struct {
	TotalPosts                int `json:"total_posts"`
	PublishedPosts            int `json:"published_posts"`
	DraftPrivatePosts         int `json:"draft_private_posts"`
	PostsWithBlankContent     int `json:"posts_with_blank_content"`
	PostsMissingFeaturedImage int `json:"posts_missing_featured_image"`
	PostsWithBrokenLinks      int `json:"posts_with_broken_links"`
}

// Job represents one in-flight scan. At most one job exists at a time; it is
// persisted in the options store and deleted on successful completion.
type Job struct {
	ID           string   `json:"id"`
	Status       Status   `json:"status"`
	PostTypes    []string `json:"post_types"`
	Queue        []int64  `json:"queue"`
	MetricsQueue []int64  `json:"metrics_queue"`
	Total        int      `json:"total"`
	Processed    int      `json:"processed"`
	Metrics      Metrics  `json:"metrics"`
	StartedAt    int64    `json:"started_at"`
	UpdatedAt    int64    `json:"updated_at"`
	CompletedAt  int64    `json:"completed_at,omitempty"`
	Trigger      Trigger  `json:"trigger"`
	LastError    string   `json:"last_error,omitempty"`
}

// NewJob creates a pending job over the given queues.
// Total is fixed at creation and tracks the mutation queue only.
func NewJob(postTypes []string, queue, metricsQueue []int64, trigger Trigger, now time.Time) *Job {
	return &Job{
		ID:           "SCN_" + uuid.NewString(),
		Status:       StatusPending,
		PostTypes:    postTypes,
		Queue:        queue,
		MetricsQueue: metricsQueue,
		Total:        len(queue),
		Trigger:      trigger,
		StartedAt:    now.Unix(),
		UpdatedAt:    now.Unix(),
	}
}

// Active reports whether the job holds the single-flight slot.
func (j *Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// Drained reports whether both queues are empty. A job with an empty mutation
// queue but a non-empty metrics queue is NOT drained and must stay running.
func (j *Job) Drained() bool {
	return len(j.Queue) == 0 && len(j.MetricsQueue) == 0
}

// Progress returns mutation-queue progress as an integer percentage (0-100).
func (j *Job) Progress() int {
	if j.Total == 0 {
		return 0
	}
	pct := int(math.Round(float64(j.Processed) / float64(j.Total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// complete marks the job as completed
func (j *Job) complete(now time.Time) {
	j.Status = StatusCompleted
	j.CompletedAt = now.Unix()
	j.UpdatedAt = now.Unix()
}

// fail marks the job as failed with an error message.
// Kept for forward compatibility: the drain loop itself never fails a job,
// all queue-exhaustion paths complete successfully.
func (j *Job) fail(err error, now time.Time) {
	j.Status = StatusFailed
	j.LastError = err.Error()
	j.CompletedAt = now.Unix()
	j.UpdatedAt = now.Unix()
}

// Snapshot is the progress-shaped projection of a job consumed by the REST,
// websocket, and CLI adapters. Metrics and HealthScore appear only once at
// least one post has been processed.
type Snapshot struct {
	JobID       string   `json:"job_id"`
	Status      Status   `json:"status"`
	PostTypes   []string `json:"post_types"`
	Total       int      `json:"total"`
	Processed   int      `json:"processed"`
	Progress    int      `json:"progress"`
	StartedAt   int64    `json:"started_at"`
	UpdatedAt   int64    `json:"updated_at"`
	Trigger     Trigger  `json:"trigger"`
	Metrics     *Metrics `json:"metrics,omitempty"`
	HealthScore *float64 `json:"health_score,omitempty"`
}

// Snapshot builds the adapter-facing projection of the job.
// includeLinks selects the 4-ratio health score variant.
func (j *Job) Snapshot(includeLinks bool) *Snapshot {
	s := &Snapshot{
		JobID:     j.ID,
		Status:    j.Status,
		PostTypes: j.PostTypes,
		Total:     j.Total,
		Processed: j.Processed,
		Progress:  j.Progress(),
		StartedAt: j.StartedAt,
		UpdatedAt: j.UpdatedAt,
		Trigger:   j.Trigger,
	}
	if j.Processed > 0 {
		metrics := j.Metrics
		score := HealthScore(j.Metrics, includeLinks)
		s.Metrics = &metrics
		s.HealthScore = &score
	}
	return s
}

// ScanRecord is an immutable snapshot of a finished scan, stored in the
// history ledger and as the last-run record.
type ScanRecord struct {
	ScanID      string   `json:"scan_id"`
	Timestamp   int64    `json:"timestamp"`
	PostTypes   []string `json:"post_types"`
	Processed   int      `json:"processed"`
	Total       int      `json:"total"`
	Status      Status   `json:"status"`
	Metrics     Metrics  `json:"metrics"`
	HealthScore float64  `json:"health_score"`
	Trigger     Trigger  `json:"trigger"`
	LastError   string   `json:"last_error,omitempty"`
}

// Settings drives the daily automatic scan.
type Settings struct {
	AutoScanEnabled    bool     `json:"auto_scan_enabled"`
	ScheduledTime      string   `json:"scheduled_time"` // "HH:MM" wall clock, site-local
	ScheduledPostTypes []string `json:"scheduled_post_types"`
}

// DefaultSettings returns the settings used before any have been saved.
func DefaultSettings() Settings {
	return Settings{
		AutoScanEnabled:    true,
		ScheduledTime:      "00:00",
		ScheduledPostTypes: []string{"post", "page"},
	}
}
