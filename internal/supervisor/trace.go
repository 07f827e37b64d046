package supervisor

import (
	"time"

	"go.uber.org/zap"
)

// Trace levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelDebug = "debug"
)

// TraceEntry is one diagnostic step of a request. Entries are returned to
// the caller and never read back by the supervisor.
type TraceEntry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       string         `json:"level"`
	Agent       string         `json:"agent"`
	Decision    string         `json:"decision"`
	Requirement string         `json:"requirement,omitempty"`
	State       State          `json:"state"`
	Slots       Slots          `json:"slots"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Requirement sections referenced from trace entries.
const (
	reqResolution    = "property_resolution"
	reqPeriod        = "period_parsing"
	reqClassifier    = "intent_classification"
	reqSlotCheck     = "slot_filling"
	reqRouting       = "routing"
	reqClarification = "clarification"
)

// run is the per-request execution context. It is owned by one request.
type run struct {
	id     string
	clock  func() time.Time
	logger *zap.Logger
	state  State
	slots  Slots
	trace  []TraceEntry
}

func (r *run) record(level, agent, decision, requirement string, meta map[string]any) {
	if meta == nil {
		meta = make(map[string]any)
	}
	if r.slots.Intent != "" {
		if _, ok := meta["request_type"]; !ok {
			meta["request_type"] = string(r.slots.Intent)
		}
	}
	entry := TraceEntry{
		Timestamp:   r.clock(),
		Level:       level,
		Agent:       agent,
		Decision:    decision,
		Requirement: requirement,
		State:       r.state,
		Slots:       r.slots.clone(),
		Metadata:    meta,
	}
	r.trace = append(r.trace, entry)
	r.logger.Debug("trace",
		zap.String("request.id", r.id),
		zap.String("agent", agent),
		zap.String("decision", decision),
		zap.String("state", string(r.state)),
		zap.Any("metadata", meta))
}

func (r *run) transition(to State, agent, decision, requirement string, meta map[string]any) {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["from"] = string(r.state)
	r.state = to
	r.record(LevelInfo, agent, decision, requirement, meta)
}
