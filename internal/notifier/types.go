package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Priority levels used by the planner.
const (
	PriorityInfo    = 5
	PriorityWarning = 7
	PriorityAlert   = 9
)

// Message is one operator notification.
type Message struct {
	Text     string
	Priority int
	// Key overrides the content-derived dedup key, e.g. a schedule digest.
	Key string
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Event is the Data of notifier events on the bus.
type Event struct {
	Sender string    `json:"sender"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
