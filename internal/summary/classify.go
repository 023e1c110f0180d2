package summary

// Severity is the deterministic classification of a session's change
// volume.
type Severity string

const (
	SeverityNone   Severity = "NONE"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Affected-kind labels, reported in this fixed order.
const (
	KindAdded    = "added"
	KindModified = "modified"
	KindDeleted  = "deleted"
)

// SignalSummary is the policy-classified view of a SessionSummary.
// FilesChanged always equals TotalFilesAffected > 0.
type SignalSummary struct {
	FilesChanged       bool     `json:"files_changed"`
	Severity           Severity `json:"severity"`
	AffectedKinds      []string `json:"affected_kinds"`
	TotalEvents        int      `json:"total_events"`
	TotalFilesAffected int      `json:"total_files_affected"`
}

// Classify applies the fixed severity decision table, evaluated top to
// bottom with first match winning:
//
//	totalEvents == 0 and affected == 0  -> NONE
//	affected <= 2 and deleted == 0      -> LOW
//	affected <= 10 or deleted <= 2      -> MEDIUM
//	otherwise                           -> HIGH
//
// The table is a policy, not a heuristic; it is total over its inputs.
func Classify(s *SessionSummary, totalEvents int) SignalSummary {
	affected := len(s.ChangedPaths)

	var severity Severity
	switch {
	case totalEvents == 0 && affected == 0:
		severity = SeverityNone
	case affected <= 2 && s.FilesDeleted == 0:
		severity = SeverityLow
	case affected <= 10 || s.FilesDeleted <= 2:
		severity = SeverityMedium
	default:
		severity = SeverityHigh
	}

	var kinds []string
	if s.FilesAdded > 0 {
		kinds = append(kinds, KindAdded)
	}
	if s.FilesModified > 0 {
		kinds = append(kinds, KindModified)
	}
	if s.FilesDeleted > 0 {
		kinds = append(kinds, KindDeleted)
	}

	return SignalSummary{
		FilesChanged:       affected > 0,
		Severity:           severity,
		AffectedKinds:      kinds,
		TotalEvents:        totalEvents,
		TotalFilesAffected: affected,
	}
}
