package store

import "time"

// JobStatus is a CrawlJob's lifecycle state (spec.md §3).
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobFailed   JobStatus = "failed"
)

// QueueItemStatus is a CrawlQueueItem's lifecycle state (spec.md §3).
type QueueItemStatus string

const (
	QueuePending    QueueItemStatus = "pending"
	QueueProcessing QueueItemStatus = "processing"
	QueueDone       QueueItemStatus = "done"
	QueueFailed     QueueItemStatus = "failed"
)

// CrawlOptions is the runtime options snapshot taken at job creation
// (spec.md §6.2).
type CrawlOptions struct {
	MaxPages         int      `json:"maxPages"`
	MaxDepth         int      `json:"maxDepth"`
	Mode             string   `json:"mode"`
	AllowDomains     []string `json:"allowDomains,omitempty"`
	DenyDomains      []string `json:"denyDomains,omitempty"`
	RespectRobots    bool     `json:"respectRobots"`
	PerDomainDelayMs int      `json:"perDomainDelayMs"`
	SeedFromSitemaps bool     `json:"seedFromSitemaps"`
	MaxSitemapUrls   int      `json:"maxSitemapUrls"`
	AdaptiveDelay    bool     `json:"adaptiveDelay"`
}

// CrawlJob is a durable crawl run (spec.md §3).
type CrawlJob struct {
	ID         string
	Status     JobStatus
	SeedURLs   []string
	Options    CrawlOptions
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// CrawlQueueItem is a single durable frontier entry (spec.md §3).
type CrawlQueueItem struct {
	ID          string
	JobID       string
	URL         string
	Depth       int
	Priority    int
	NextFetchAt time.Time
	Domain      string
	Status      QueueItemStatus
	Retries     int
	LastError   string
}

// CrawlJobStatus is the aggregated view returned by status(jobId)
// (spec.md §6.3).
type CrawlJobStatus struct {
	Job   CrawlJob
	Stats QueueStats
}

// QueueStats is the per-status row count for a job's queue.
type QueueStats struct {
	Pending    int
	Processing int
	Done       int
	Failed     int
}
