package mixer

import (
	"strconv"
	"time"
)

// InputSnapshot is one mixer source as reported by a single status poll.
type InputSnapshot struct {
	Key        string  `json:"key"`
	Number     int     `json:"number"`
	Title      string  `json:"title"`
	ShortTitle string  `json:"shortTitle"`
	Type       string  `json:"type"`
	State      string  `json:"state"`
	Duration   int     `json:"duration"` // ms, 0 for static sources
	Position   int     `json:"position"` // ms
	Muted      bool    `json:"muted"`
	Solo       bool    `json:"solo"`
	Volume     float64 `json:"volume"`
	Selected   bool    `json:"selected"` // on Program
	Preview    bool    `json:"preview"`  // on Preview
}

// Identity returns the value used to address this input in a command:
// the stable key, or the numeric index for sources without one.
func (in InputSnapshot) Identity() string {
	if in.Key != "" {
		return in.Key
	}
	return strconv.Itoa(in.Number)
}

// BusSnapshot is one audio bus. Enabled is the inverse of the mixer's mute flag.
type BusSnapshot struct {
	ID      string  `json:"id"`
	Enabled bool    `json:"enabled"`
	Volume  float64 `json:"volume"`
	Solo    bool    `json:"solo"`
}

// AudioSnapshot holds the master section and the buses.
type AudioSnapshot struct {
	MasterVolume float64       `json:"masterVolume"`
	MasterMute   bool          `json:"masterMute"`
	Buses        []BusSnapshot `json:"buses"`
}

// StatusSnapshot is the complete mixer state at one poll instant.
// It is replaced wholesale on every successful poll.
type StatusSnapshot struct {
	Inputs []InputSnapshot `json:"inputs"`
	Audio  AudioSnapshot   `json:"audio"`
}

// EmptySnapshot is the snapshot held before the first successful poll.
func EmptySnapshot() StatusSnapshot {
	return StatusSnapshot{
		Inputs: []InputSnapshot{},
		Audio: AudioSnapshot{
			MasterVolume: DefaultMasterVolume,
			Buses:        []BusSnapshot{},
		},
	}
}

// clone returns a deep copy so callers never share slices with the store.
func (s StatusSnapshot) clone() StatusSnapshot {
	out := s
	out.Inputs = append([]InputSnapshot(nil), s.Inputs...)
	out.Audio.Buses = append([]BusSnapshot(nil), s.Audio.Buses...)
	if out.Inputs == nil {
		out.Inputs = []InputSnapshot{}
	}
	if out.Audio.Buses == nil {
		out.Audio.Buses = []BusSnapshot{}
	}
	return out
}

// SyncState describes the link to the mixer.
type SyncState struct {
	Connected     bool       `json:"connected"`
	LastError     string     `json:"lastError"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt"`
	Fetching      bool       `json:"fetching"`
}

// RefreshPolicy controls periodic polling.
type RefreshPolicy struct {
	AutoRefresh bool `json:"autoRefresh"`
	IntervalMs  int  `json:"intervalMs"`
}

// Interval returns the polling period.
func (p RefreshPolicy) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

const (
	// DefaultMasterVolume applies when the status document has no audio section.
	DefaultMasterVolume = 100

	// DefaultIntervalMs is the startup polling period.
	DefaultIntervalMs = 2000

	// MinRecommendedIntervalMs is the floor operator UIs enforce. Lower values
	// are accepted.
	MinRecommendedIntervalMs = 500
)

// DefaultRefreshPolicy returns the startup policy: auto refresh every 2s.
func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{AutoRefresh: true, IntervalMs: DefaultIntervalMs}
}
