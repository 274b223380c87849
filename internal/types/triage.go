package types

// TriageCategory classifies an issue during triage.
type TriageCategory string

const (
	CategoryBug           TriageCategory = "bug"
	CategoryFeature       TriageCategory = "feature"
	CategoryDocumentation TriageCategory = "documentation"
	CategoryQuestion      TriageCategory = "question"
	CategoryDuplicate     TriageCategory = "duplicate"
	CategorySpam          TriageCategory = "spam"
	CategoryFeatureCreep  TriageCategory = "feature_creep"
)

// TriagePhase is a phase of a batch triage run. Unlike auto-fix
// statuses, triage phases are strictly linear with an implicit
// failure short-circuit.
type TriagePhase string

const (
	PhaseFetching  TriagePhase = "fetching"
	PhaseAnalyzing TriagePhase = "analyzing"
	PhaseApplying  TriagePhase = "applying"
	PhaseComplete  TriagePhase = "complete"
	PhaseFailed    TriagePhase = "failed"
)

// triagePhaseOrder defines the linear triage sequence.
var triagePhaseOrder = []TriagePhase{PhaseFetching, PhaseAnalyzing, PhaseApplying, PhaseComplete}

// NextTriagePhase returns the phase following p in the linear sequence,
// or false if p is terminal or unknown.
func NextTriagePhase(p TriagePhase) (TriagePhase, bool) {
	for i, phase := range triagePhaseOrder {
		if phase == p && i+1 < len(triagePhaseOrder) {
			return triagePhaseOrder[i+1], true
		}
	}
	return "", false
}

// TriageResult is the persisted classification record for one issue.
// The worker process writes the initial record; the orchestrator reads
// it back after the worker exits and owns all subsequent mutation.
type TriageResult struct {
	IssueNumber        int            `json:"issue_number"`
	Repo               string         `json:"repo"`
	Category           TriageCategory `json:"category"`
	Confidence         float64        `json:"confidence"`
	LabelsToAdd        []string       `json:"labels_to_add"`
	LabelsToRemove     []string       `json:"labels_to_remove"`
	IsDuplicate        bool           `json:"is_duplicate"`
	DuplicateOf        *int           `json:"duplicate_of,omitempty"`
	IsSpam             bool           `json:"is_spam"`
	IsFeatureCreep     bool           `json:"is_feature_creep"`
	SuggestedBreakdown []string       `json:"suggested_breakdown"`
	Priority           Priority       `json:"priority"`
	Comment            string         `json:"comment,omitempty"`
	TriagedAt          string         `json:"triaged_at"`
}
