package store

import (
	"strings"
	"time"
)

// Stage represents the lifecycle position of a content item.
type Stage string

const (
	StageInput      Stage = "input"
	StageProcessing Stage = "processing"
	StageQueued     Stage = "queued"
	StagePublished  Stage = "published"
	StageFailed     Stage = "failed"
)

var allStages = []Stage{
	StageInput,
	StageProcessing,
	StageQueued,
	StagePublished,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// Item represents a content item persisted in SQLite.
type Item struct {
	ID              int64
	Fingerprint     string
	Stage           Stage
	PayloadRefs     []string
	CreatedAt       time.Time
	StageUpdatedAt  time.Time
	AttemptCount    int
	LastError       string
	PublishedPostID string
}

// Clone returns a deep copy so mutation callbacks cannot alias stored state.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.PayloadRefs = append([]string(nil), i.PayloadRefs...)
	return &cp
}

// IsTerminal reports whether the item can no longer move forward on its own.
func (i Item) IsTerminal() bool {
	return i.Stage == StagePublished
}
