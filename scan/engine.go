package scan

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avenlon/sitepulse/config"
	"github.com/avenlon/sitepulse/content"
	"github.com/avenlon/sitepulse/errors"
)

// MetaKeyLastScanned is the post meta key the mutation phase stamps with the
// scan time. Rewriting it is harmless, which is what makes batch retry safe.
const MetaKeyLastScanned = "sitepulse_last_scanned"

// SubscriberChannelBufferSize is the buffer size for subscriber channels
const SubscriberChannelBufferSize = 16

// Precondition errors returned by Start. No job is created and no state
// changes when any of these is returned.
var (
	ErrScanAlreadyRunning = errors.New("scan already running")
	ErrInvalidPostTypes   = errors.New("no valid post types requested")
	ErrNoPostsFound       = errors.New("no posts found for requested types")
)

// ContentStore is the slice of the content layer the engine needs.
// *content.Store satisfies it; tests substitute fakes.
type ContentStore interface {
	PublicTypes() ([]string, error)
	PublishedIDs(types []string) ([]int64, error)
	AllIDs(types []string) ([]int64, error)
	SetMeta(postID int64, metaKey, metaValue string) error
	Inspect(id int64) (*content.Info, error)
	ResolveLink(href string) (string, error)
}

// Engine owns the scan job lifecycle: creation, batch draining, completion,
// history recording, and settings-driven scheduling.
//
// All mutating entry points run under one mutex. The persisted single-flight
// check alone would be read-then-write; a single engine instance owns the
// options store in this deployment shape, so the mutex makes the guard a
// real lock. The stale-job-id check in Process still applies, since one-shot
// timers armed for a superseded job can fire later.
type Engine struct {
	store    *Store
	content  ContentStore
	sched    Scheduler
	cfg      config.ScanConfig
	siteHost string
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu sync.Mutex

	subMu       sync.Mutex
	subscribers []chan *Snapshot
}

// NewEngine creates a scan engine. siteURL is the site's public base URL,
// used to classify internal links during metrics collection.
func NewEngine(store *Store, contentStore ContentStore, sched Scheduler, cfg config.ScanConfig, siteURL string, logger *zap.SugaredLogger) *Engine {
	siteHost := ""
	if u, err := url.Parse(siteURL); err == nil {
		siteHost = u.Host
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.StartDelaySeconds <= 0 {
		cfg.StartDelaySeconds = 2
	}
	if cfg.TickDelaySeconds <= 0 {
		cfg.TickDelaySeconds = 10
	}
	if len(cfg.DefaultPostTypes) == 0 {
		cfg.DefaultPostTypes = []string{"post", "page"}
	}

	return &Engine{
		store:    store,
		content:  contentStore,
		sched:    sched,
		cfg:      cfg,
		siteHost: siteHost,
		logger:   logger.Named("scan"),
		now:      time.Now,
	}
}

// Store returns the engine's persistence layer (for the history and
// settings adapters).
func (e *Engine) Store() *Store {
	return e.store
}

// CheckLinks reports whether the extended broken-link variant is enabled.
func (e *Engine) CheckLinks() bool {
	return e.cfg.CheckLinks
}

// Now returns the engine's current time. Tests pin this clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Start creates a new scan over the given post types and arms the first
// processing tick. An empty type list falls back to the configured defaults.
// Unknown types are silently dropped by intersecting with the registered
// public types; only an all-invalid selection is an error.
func (e *Engine) Start(postTypes []string, trigger Trigger) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.store.ActiveJob()
	if err != nil {
		return nil, err
	}
	if active != nil && active.Active() {
		err := errors.Wrapf(ErrScanAlreadyRunning, "scan %s is %s", active.ID, active.Status)
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", active.ID))
	}

	selected, err := e.filterPostTypes(postTypes)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, ErrInvalidPostTypes
	}

	queue, err := e.content.PublishedIDs(selected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate published posts")
	}
	metricsQueue, err := e.content.AllIDs(selected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate posts for metrics")
	}
	if len(queue) == 0 && len(metricsQueue) == 0 {
		return nil, ErrNoPostsFound
	}

	job := NewJob(selected, queue, metricsQueue, trigger, e.now())
	if err := e.store.SaveJob(job); err != nil {
		return nil, err
	}

	e.sched.ScheduleTick(job.ID, time.Duration(e.cfg.StartDelaySeconds)*time.Second)

	e.logger.Infow("Scan started",
		"job_id", job.ID,
		"post_types", selected,
		"total", job.Total,
		"metrics_total", len(metricsQueue),
		"trigger", trigger)

	snap := job.Snapshot(e.cfg.CheckLinks)
	e.notify(snap)
	return snap, nil
}

// filterPostTypes intersects the requested types with the registered public
// types, preserving request order. An empty request falls back to the
// configured defaults.
func (e *Engine) filterPostTypes(requested []string) ([]string, error) {
	if len(requested) == 0 {
		requested = e.cfg.DefaultPostTypes
	}

	public, err := e.content.PublicTypes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list public post types")
	}

	publicSet := make(map[string]struct{}, len(public))
	for _, t := range public {
		publicSet[t] = struct{}{}
	}

	var selected []string
	for _, t := range requested {
		if _, ok := publicSet[t]; ok {
			selected = append(selected, t)
		}
	}
	return selected, nil
}

// Process runs one scheduled tick against the active job. Invoked only by
// the scheduler (or the synchronous CLI drain). A tick for a stale or
// mismatched job ID is a silent no-op.
//
// Each tick drains at most one batch from each queue independently: the
// metrics drain runs even when the mutation queue is already empty, so a job
// of non-published posts still makes progress. Effects are applied before
// the job is persisted; a crash between the two re-runs the batch on the
// next tick, which is safe because the stamp is idempotent.
func (e *Engine) Process(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.store.ActiveJob()
	if err != nil {
		e.logger.Errorw("Failed to load active scan", "job_id", jobID, "error", err)
		return
	}
	if job == nil || job.ID != jobID {
		e.logger.Debugw("Ignoring stale processing tick", "job_id", jobID)
		return
	}

	job.Status = StatusRunning

	if len(job.Queue) > 0 {
		n := min(e.cfg.BatchSize, len(job.Queue))
		stamp := e.now().UTC().Format(time.RFC3339)
		for _, id := range job.Queue[:n] {
			if err := e.content.SetMeta(id, MetaKeyLastScanned, stamp); err != nil {
				// Post-level stamp failures don't abort the batch
				e.logger.Warnw("Failed to stamp post", "job_id", job.ID, "post_id", id, "error", err)
			}
		}
		job.Queue = job.Queue[n:]
		job.Processed += n
	}

	if len(job.MetricsQueue) > 0 {
		n := min(e.cfg.BatchSize, len(job.MetricsQueue))
		for _, id := range job.MetricsQueue[:n] {
			e.collectPost(id, &job.Metrics)
		}
		job.MetricsQueue = job.MetricsQueue[n:]
	}

	job.UpdatedAt = e.now().Unix()

	if job.Drained() {
		e.completeJob(job)
		return
	}

	if err := e.store.SaveJob(job); err != nil {
		// Fatal for this tick only; the next tick retries from the last
		// successfully persisted state.
		e.logger.Errorw("Failed to persist scan progress", "job_id", job.ID, "error", err)
	}

	e.sched.ScheduleTick(job.ID, time.Duration(e.cfg.TickDelaySeconds)*time.Second)

	e.logger.Debugw("Scan tick",
		"job_id", job.ID,
		"processed", job.Processed,
		"total", job.Total,
		"metrics_remaining", len(job.MetricsQueue))

	e.notify(job.Snapshot(e.cfg.CheckLinks))
}

// completeJob freezes the job into a ScanRecord, records it as last run and
// in history, and frees the single-flight slot. REQUIRES e.mu held.
func (e *Engine) completeJob(job *Job) {
	job.complete(e.now())

	// Terminal state is persisted transiently so a crash mid-completion
	// leaves an inspectable record rather than a half-written history.
	if err := e.store.SaveJob(job); err != nil {
		e.logger.Errorw("Failed to persist terminal scan state", "job_id", job.ID, "error", err)
		return
	}

	score := HealthScore(job.Metrics, e.cfg.CheckLinks)
	rec := ScanRecord{
		ScanID:      job.ID,
		Timestamp:   job.CompletedAt,
		PostTypes:   job.PostTypes,
		Processed:   job.Processed,
		Total:       job.Total,
		Status:      job.Status,
		Metrics:     job.Metrics,
		HealthScore: score,
		Trigger:     job.Trigger,
		LastError:   job.LastError,
	}

	if err := e.store.SetLastRun(&rec); err != nil {
		e.logger.Errorw("Failed to record last scan", "job_id", job.ID, "error", err)
	}
	if err := e.store.AppendHistory(rec); err != nil {
		e.logger.Errorw("Failed to append scan history", "job_id", job.ID, "error", err)
	}

	if job.Status == StatusCompleted {
		if err := e.store.DeleteActiveJob(); err != nil {
			e.logger.Errorw("Failed to release scan slot", "job_id", job.ID, "error", err)
		}
	}

	e.logger.Infow("Scan completed",
		"job_id", job.ID,
		"processed", job.Processed,
		"total_posts", job.Metrics.TotalPosts,
		"health_score", score,
		"trigger", job.Trigger)

	e.notify(job.Snapshot(e.cfg.CheckLinks))
}

// DryRunResult reports what a scan would cover, without side effects.
type DryRunResult struct {
	PostTypes []string `json:"post_types"`
	Total     int      `json:"total"`
}

// DryRun applies Start's type filtering and enumeration without creating a
// job or touching any state.
func (e *Engine) DryRun(postTypes []string) (*DryRunResult, error) {
	selected, err := e.filterPostTypes(postTypes)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, ErrInvalidPostTypes
	}

	queue, err := e.content.PublishedIDs(selected)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate published posts")
	}

	return &DryRunResult{PostTypes: selected, Total: len(queue)}, nil
}

// Status returns a read-only view: the active job's snapshot (nil when no
// scan is in flight) and the last completed scan (nil when none). Callers
// must tolerate the active job disappearing between polls - it is deleted on
// completion.
func (e *Engine) Status() (*Snapshot, *ScanRecord, error) {
	job, err := e.store.ActiveJob()
	if err != nil {
		return nil, nil, err
	}
	lastRun, err := e.store.LastRun()
	if err != nil {
		return nil, nil, err
	}

	var snap *Snapshot
	if job != nil {
		snap = job.Snapshot(e.cfg.CheckLinks)
	}
	return snap, lastRun, nil
}

// Subscribe returns a channel that receives progress snapshots.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (e *Engine) Subscribe() chan *Snapshot {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	ch := make(chan *Snapshot, SubscriberChannelBufferSize)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel. The channel is NOT closed by
// this method - callers close it themselves after unsubscribing if needed.
func (e *Engine) Unsubscribe(ch chan *Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for i, sub := range e.subscribers {
		if sub == ch {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			return
		}
	}
}

// notify sends a snapshot to all subscribers with non-blocking sends, so a
// slow consumer never stalls a processing tick.
func (e *Engine) notify(snap *Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// Channel full, skip
		}
	}
}
