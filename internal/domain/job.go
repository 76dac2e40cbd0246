package domain

import "time"

// Crawl job states. pending -> running -> {success, fail}; terminal states
// never revert (prune_stuck excepted, which is an operator reset).
const (
	JobStatePending = "pending"
	JobStateRunning = "running"
	JobStateSuccess = "success"
	JobStateFail    = "fail"
)

// Crawl job modes.
const (
	JobModeRealtime   = "realtime"
	JobModeBackground = "background"
)

// Job priority bounds.
const (
	MinPriority = 0
	MaxPriority = 10
)

// MaxErrorLen caps the stored error text on failed jobs.
const MaxErrorLen = 2000

// CrawlJob is one row of the crawl_jobs queue.
type CrawlJob struct {
	JobID      int64      `db:"job_id"      json:"job_id"`
	PlaceID    string     `db:"place_id"    json:"place_id"`
	Mode       string     `db:"mode"        json:"mode"`
	Priority   int        `db:"priority"    json:"priority"`
	State      string     `db:"state"       json:"state"`
	StartedAt  *time.Time `db:"started_at"  json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Error      *string    `db:"error"       json:"error,omitempty"`
}

// JobClaim is what claim_batch hands a worker: the claimed job plus the
// venue's homepage URL and its parsed host, resolved in the same query.
type JobClaim struct {
	JobID     int64     `db:"job_id"`
	PlaceID   string    `db:"place_id"`
	Mode      string    `db:"mode"`
	Priority  int       `db:"priority"`
	BaseURL   *string   `db:"website"`
	Host      *string   `db:"host"`
	StartedAt time.Time `db:"started_at"`
}

// TruncateError clamps an error message to MaxErrorLen for storage.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
