package capture

import (
	"fmt"
	"strings"
)

// AppState is one named, ordered point in the target application's state
// space: an index into the dataset selection control plus a human-readable
// label. The ordered state list is fixed configuration, not discovered at
// runtime.
type AppState struct {
	Index int
	Label string
}

// Scope distinguishes the two image artifacts produced per state.
type Scope string

const (
	ScopeFullPage Scope = "full"
	ScopeRegion   Scope = "region"
)

// Artifact describes one produced image: which state it belongs to, its
// scope, and where it was written. Write-once.
type Artifact struct {
	StateLabel string `json:"state_label"`
	Scope      Scope  `json:"scope"`
	Path       string `json:"path"`
}

// ExtractionRecord is the structured text captured from one state.
type ExtractionRecord struct {
	StateLabel     string `json:"state_label"`
	Interpretation string `json:"interpretation"`
	Details        string `json:"details"`
	// Placeholder is set when extraction failed and the record carries
	// placeholder text instead of real content.
	Placeholder bool `json:"placeholder,omitempty"`
}

// RunResult accumulates everything a completed run produced, in visitation
// order.
type RunResult struct {
	RunID     string             `json:"run_id"`
	TargetURL string             `json:"target_url"`
	Artifacts []Artifact         `json:"artifacts"`
	Records   []ExtractionRecord `json:"records"`
}

// StatesFromLabels builds the ordered state sequence from configured labels.
func StatesFromLabels(labels []string) []AppState {
	states := make([]AppState, len(labels))
	for i, label := range labels {
		states[i] = AppState{Index: i, Label: label}
	}
	return states
}

// ArtifactFilename encodes visitation order and state identity into a
// deterministic name, e.g. "03_hypothermia_full.png". Sequence numbers count
// from 1 across the whole run so a directory listing sorts into visitation
// order.
func ArtifactFilename(seq int, label string, scope Scope) string {
	return fmt.Sprintf("%02d_%s_%s.png", seq, slugify(label), scope)
}

// slugify lowers a state label into a filesystem-safe fragment.
func slugify(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
