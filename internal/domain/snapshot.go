package domain

// Snapshot is the device-local copy of the full, unfiltered question set and
// the instant it was stored.
type Snapshot struct {
	Data      []Question `json:"data"`
	Timestamp Millis     `json:"timestamp"`
}
