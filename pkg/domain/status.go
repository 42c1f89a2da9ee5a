package domain

import dErrors "medvault/pkg/domain-errors"

// RecordStatus is the lifecycle state of a medical record. Transitions are
// driven exclusively through the records service; stores persist whatever
// value the compare-and-set commits.
type RecordStatus string

const (
	RecordStatusPending             RecordStatus = "pending"
	RecordStatusVerified            RecordStatus = "verified"
	RecordStatusCorrectionRequested RecordStatus = "correction_requested"
	RecordStatusRejected            RecordStatus = "rejected"
)

var validRecordStatuses = map[RecordStatus]bool{
	RecordStatusPending:             true,
	RecordStatusVerified:            true,
	RecordStatusCorrectionRequested: true,
	RecordStatusRejected:            true,
}

func ParseRecordStatus(s string) (RecordStatus, error) {
	st := RecordStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid record status")
	}
	return st, nil
}

func (s RecordStatus) IsValid() bool  { return validRecordStatuses[s] }
func (s RecordStatus) String() string { return string(s) }

// VerificationStatus is an actor's standing with the administrators.
// Only verified actors may exercise their role.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

var validVerificationStatuses = map[VerificationStatus]bool{
	VerificationPending:  true,
	VerificationVerified: true,
	VerificationRejected: true,
}

func ParseVerificationStatus(s string) (VerificationStatus, error) {
	st := VerificationStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid verification status")
	}
	return st, nil
}

func (s VerificationStatus) IsValid() bool  { return validVerificationStatuses[s] }
func (s VerificationStatus) String() string { return string(s) }

// CorrectionStatus is the state of one correction request. The terminal states
// approved and rejected are immutable once set.
type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "pending"
	CorrectionApproved CorrectionStatus = "approved"
	CorrectionRejected CorrectionStatus = "rejected"
)

var validCorrectionStatuses = map[CorrectionStatus]bool{
	CorrectionPending:  true,
	CorrectionApproved: true,
	CorrectionRejected: true,
}

func ParseCorrectionStatus(s string) (CorrectionStatus, error) {
	st := CorrectionStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid correction status")
	}
	return st, nil
}

func (s CorrectionStatus) IsValid() bool  { return validCorrectionStatuses[s] }
func (s CorrectionStatus) String() string { return string(s) }

func (s CorrectionStatus) Terminal() bool {
	return s == CorrectionApproved || s == CorrectionRejected
}
