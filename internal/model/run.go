package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RunState is the coordinator's position in a run.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateResolving  RunState = "resolving"
	RunStateLookingUp  RunState = "looking_up"
	RunStateFinalizing RunState = "finalizing"
	RunStateComplete   RunState = "complete"
	RunStateAborted    RunState = "aborted"
)

// SinkKind names a destination for normalized records.
type SinkKind string

const (
	SinkConsole SinkKind = "console"
	SinkText    SinkKind = "text"
	SinkStore   SinkKind = "store"
	SinkXLSX    SinkKind = "xlsx"
)

// IsFile reports whether the sink writes into the output folder.
func (s SinkKind) IsFile() bool {
	return s == SinkText || s == SinkStore || s == SinkXLSX
}

// ParseSinks validates and de-duplicates sink names. "both" expands to text
// and store, "txt" and "db" are accepted as aliases.
func ParseSinks(names []string) ([]SinkKind, error) {
	var out []SinkKind
	seen := make(map[SinkKind]bool)
	add := func(k SinkKind) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "":
			continue
		case "console":
			add(SinkConsole)
		case "text", "txt":
			add(SinkText)
		case "store", "db":
			add(SinkStore)
		case "xlsx":
			add(SinkXLSX)
		case "both":
			add(SinkText)
			add(SinkStore)
		default:
			return nil, eris.Errorf("model: unknown sink %q", n)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("model: no sinks configured")
	}
	return out, nil
}

// RunSummary is the outcome of one run, delivered with the completion event.
type RunSummary struct {
	RunID     string     `json:"run_id"`
	State     RunState   `json:"state"`
	Kind      LookupKind `json:"kind"`
	Input     string     `json:"input"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	// StoreWriteErrors counts records that could not be upserted.
	StoreWriteErrors int        `json:"store_write_errors"`
	OutputDir        string     `json:"output_dir,omitempty"`
	Artifacts        []string   `json:"artifacts,omitempty"`
	Sinks            []SinkKind `json:"sinks"`
	Warnings         []string   `json:"warnings,omitempty"`
	Err              error      `json:"-"`
}

// Duration is the elapsed wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// ConsoleOnly reports whether the run produced no file artifacts.
func (s *RunSummary) ConsoleOnly() bool {
	return len(s.Artifacts) == 0
}

// Application and Version identify the tool in report preambles and run
// metadata.
const (
	Application = "adamID_bundleID_lookup"
	Version     = "v0.1"
)
