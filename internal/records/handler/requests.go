package handler

import (
	"time"

	"medvault/pkg/domain"
)

type submitRequest struct {
	SubjectID   string            `json:"subject_id"`
	ClinicianID string            `json:"clinician_id"`
	Fields      map[string]string `json:"fields"`
}

type editAndVerifyRequest struct {
	Patch domain.FieldPatch `json:"patch"`
}

type requestCorrectionRequest struct {
	Reason           string            `json:"reason"`
	RequestedChanges domain.FieldPatch `json:"requested_changes,omitempty"`
}

type resolveCorrectionRequest struct {
	Approve  bool              `json:"approve"`
	Patch    domain.FieldPatch `json:"patch,omitempty"`
	Response string            `json:"response"`
}

type recordResponse struct {
	ID                  string            `json:"id"`
	SubjectID           string            `json:"subject_id"`
	ClinicianID         string            `json:"clinician_id"`
	EnteredBy           string            `json:"entered_by"`
	Status              string            `json:"status"`
	HasActiveCorrection bool              `json:"has_active_correction"`
	Fields              map[string]string `json:"fields,omitempty"`
	CorrectionRequests  []string          `json:"correction_requests,omitempty"`
	Version             int               `json:"version"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

type listRecordsResponse struct {
	Records []recordResponse `json:"records"`
}

type correctionResponse struct {
	ID               string            `json:"id"`
	RecordID         string            `json:"record_id"`
	RequestedBy      string            `json:"requested_by"`
	Reason           string            `json:"reason"`
	RequestedChanges map[string]string `json:"requested_changes,omitempty"`
	Status           string            `json:"status"`
	ProcessedBy      string            `json:"processed_by,omitempty"`
	Response         string            `json:"response,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type listCorrectionsResponse struct {
	Corrections []correctionResponse `json:"corrections"`
}

func toRecordResponse(record domain.Record) recordResponse {
	resp := recordResponse{
		ID:                  record.ID.String(),
		SubjectID:           record.SubjectID.String(),
		ClinicianID:         record.ClinicianID.String(),
		EnteredBy:           record.EnteredBy.String(),
		Status:              record.Status.String(),
		HasActiveCorrection: record.HasActiveCorrection,
		Fields:              record.Fields,
		Version:             record.Version,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
	for _, id := range record.CorrectionRequestIDs {
		resp.CorrectionRequests = append(resp.CorrectionRequests, id.String())
	}
	return resp
}

func toCorrectionResponse(request domain.CorrectionRequest) correctionResponse {
	resp := correctionResponse{
		ID:               request.ID.String(),
		RecordID:         request.RecordID.String(),
		RequestedBy:      request.RequestedBy.String(),
		Reason:           request.Reason,
		RequestedChanges: request.RequestedChanges,
		Status:           request.Status.String(),
		Response:         request.Response,
		CreatedAt:        request.CreatedAt,
		UpdatedAt:        request.UpdatedAt,
	}
	if !request.ProcessedBy.IsNil() {
		resp.ProcessedBy = request.ProcessedBy.String()
	}
	return resp
}
