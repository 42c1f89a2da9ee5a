package domain

import (
	"time"

	dErrors "medvault/pkg/domain-errors"
)

// FieldPatch is an opaque diff over a record's domain fields. The core applies
// it key-wise and attaches no clinical meaning to keys or values.
type FieldPatch map[string]string

// Validate rejects patches the core cannot apply. Empty keys would silently
// vanish on apply, so they fail loudly here instead.
func (p FieldPatch) Validate() error {
	for k := range p {
		if k == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "patch contains an empty field name")
		}
	}
	return nil
}

// Record is the shared document whose verification and correction state the
// service coordinates. Records are never deleted, only superseded.
type Record struct {
	ID          RecordID     `json:"id"`
	SubjectID   ActorID      `json:"subject_id"`
	ClinicianID ActorID      `json:"clinician_id"`
	EnteredBy   ActorID      `json:"entered_by"`
	Status      RecordStatus `json:"status"`
	// HasActiveCorrection is true iff exactly one linked correction request is
	// pending. Recomputed on every resolve; a verified record with an active
	// correction must never be observable.
	HasActiveCorrection bool              `json:"has_active_correction"`
	Fields              map[string]string `json:"fields"`
	// CorrectionRequestIDs preserves request order for the audit trail.
	CorrectionRequestIDs []CorrectionRequestID `json:"correction_request_ids,omitempty"`
	// Version counts committed transitions. Informational for readers; the
	// compare-and-set itself is keyed on Status.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyPatch overlays patch values onto the record's domain fields.
func (r *Record) ApplyPatch(patch FieldPatch) {
	if len(patch) == 0 {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]string, len(patch))
	}
	for k, v := range patch {
		r.Fields[k] = v
	}
}

// Clone returns a deep copy so stores can hand out records without aliasing
// their internal maps.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.CorrectionRequestIDs != nil {
		out.CorrectionRequestIDs = append([]CorrectionRequestID(nil), r.CorrectionRequestIDs...)
	}
	return out
}
