package models

// Patch describes a partial update to an issue. Nil fields are left
// unchanged when the patch is applied.
type Patch struct {
	ID              string    `json:"id"`
	Title           *string   `json:"title,omitempty"`
	Tags            *[]string `json:"tags,omitempty"`
	Assignee        *string   `json:"assignee,omitempty"`
	Status          *Status   `json:"status,omitempty"`
	Priority        *Priority `json:"priority,omitempty"`
	Severity        *int      `json:"severity,omitempty"`
	UserDefinedRank *int      `json:"userDefinedRank,omitempty"`
}

// StatusPatch builds a patch that only moves an issue to a new column.
func StatusPatch(id string, status Status) Patch {
	return Patch{ID: id, Status: &status}
}

// Apply merges the patch into a copy of the issue and returns the result.
// The input issue is never mutated.
func (p Patch) Apply(issue Issue) Issue {
	out := issue.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), *p.Tags...)
	}
	if p.Assignee != nil {
		out.Assignee = *p.Assignee
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Severity != nil {
		out.Severity = *p.Severity
	}
	if p.UserDefinedRank != nil {
		r := *p.UserDefinedRank
		out.UserDefinedRank = &r
	}
	return out
}
