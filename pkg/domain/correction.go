package domain

import "time"

// CorrectionRequest is a subject-initiated request to amend a verified record.
// It is owned by its record: the back-reference is the only link, and its
// resolution happens inside the record's transition transaction.
type CorrectionRequest struct {
	ID          CorrectionRequestID `json:"id"`
	RecordID    RecordID            `json:"record_id"`
	RequestedBy ActorID             `json:"requested_by"`
	Reason      string              `json:"reason"`
	// RequestedChanges is the subject's proposed field diff. Optional; approval
	// may apply a different patch or none at all.
	RequestedChanges FieldPatch       `json:"requested_changes,omitempty"`
	Status           CorrectionStatus `json:"status"`
	ProcessedBy      ActorID          `json:"processed_by,omitempty"`
	// Response is the clinician's message to the subject. Required on
	// rejection, recorded on approval for the audit trail.
	Response  string    `json:"response,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out of a store.
func (c CorrectionRequest) Clone() CorrectionRequest {
	out := c
	if c.RequestedChanges != nil {
		out.RequestedChanges = make(FieldPatch, len(c.RequestedChanges))
		for k, v := range c.RequestedChanges {
			out.RequestedChanges[k] = v
		}
	}
	return out
}
