package model

import (
	"sort"
	"time"
)

// Summary is a condensed view of a RunReport for terminal and Markdown
// output.
type Summary struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	DocumentsRead    int           `json:"documents_read"`
	DocumentsWritten int           `json:"documents_written"`

	// LinesRemoved is the number of repeated lines dropped.
	LinesRemoved int `json:"lines_removed"`

	// NearDuplicatesRemoved is the number of documents dropped as near-duplicates.
	NearDuplicatesRemoved int `json:"near_duplicates_removed"`

	// QualityDropped is the number of documents dropped by the quality stage.
	QualityDropped int `json:"quality_dropped"`

	Groups   int `json:"groups"`
	Failures int `json:"failures"`

	// LargestGroups lists up to five groups, largest first.
	LargestGroups []DuplicateGroup `json:"largest_groups,omitempty"`

	// DropReasons counts quality drops per failed rule.
	DropReasons map[string]int `json:"drop_reasons,omitempty"`
}

// maxSummaryGroups bounds LargestGroups.
const maxSummaryGroups = 5

// NewSummary condenses a report.
func NewSummary(r *RunReport) *Summary {
	s := &Summary{
		StartedAt:        r.StartedAt,
		Duration:         r.Duration(),
		DocumentsRead:    r.DocumentsRead,
		DocumentsWritten: r.DocumentsWritten,
		Groups:           len(r.Groups),
		Failures:         len(r.Failures),
	}
	if r.Lines != nil {
		s.LinesRemoved = r.Lines.LinesRemoved
	}
	if r.NearDup != nil {
		s.NearDuplicatesRemoved = r.NearDup.DocumentsRemoved
	}
	if r.Quality != nil {
		s.QualityDropped = r.Quality.Dropped
		if len(r.Quality.Reasons) > 0 {
			s.DropReasons = make(map[string]int, len(r.Quality.Reasons))
			for k, v := range r.Quality.Reasons {
				s.DropReasons[k] = v
			}
		}
	}

	groups := make([]DuplicateGroup, len(r.Groups))
	copy(groups, r.Groups)
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].Representative < groups[j].Representative
	})
	if len(groups) > maxSummaryGroups {
		groups = groups[:maxSummaryGroups]
	}
	if len(groups) > 0 {
		s.LargestGroups = groups
	}
	return s
}

// DocumentsRemoved returns the total number of documents excluded.
func (s *Summary) DocumentsRemoved() int {
	return s.NearDuplicatesRemoved + s.QualityDropped
}
