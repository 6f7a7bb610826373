// Package domain holds the reconciler's sync report and checkpoint types.
package domain

import "time"

// RecordError is one record that could not be applied during a sync.
type RecordError struct {
	ExternalID string `json:"externalId"`
	Message    string `json:"message"`
}

// SyncResult reports one reconciliation cycle. For a multi-source run the
// counters are totals and Sources holds the per-source reports.
type SyncResult struct {
	Source     string        `json:"source,omitempty"`
	TrackingID string        `json:"trackingId,omitempty"`
	Success    bool          `json:"success"`
	Processed  int           `json:"processed"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Errors     []RecordError `json:"errors"`
	SyncTime   time.Time     `json:"syncTime"`
	// Message explains a failed cycle, e.g. an unreachable source.
	Message string       `json:"message,omitempty"`
	Sources []SyncResult `json:"sources,omitempty"`
}

// Merge folds a per-source result into an aggregate.
func (r *SyncResult) Merge(part SyncResult) {
	r.Processed += part.Processed
	r.Created += part.Created
	r.Updated += part.Updated
	r.Errors = append(r.Errors, part.Errors...)
	if !part.Success {
		r.Success = false
	}
	r.Sources = append(r.Sources, part)
}

// Checkpoint is the persisted poll window start of one source.
type Checkpoint struct {
	Source       string      `json:"source"`
	LastSyncTime time.Time   `json:"lastSyncTime"`
	LastReport   *SyncResult `json:"lastReport,omitempty"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
