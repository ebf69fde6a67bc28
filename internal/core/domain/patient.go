package domain

import "time"

// PatientIdentity is the durable association between a pseudonymous CIP
// and the protected forms of the patient's RUT. Rows are created once at
// intake and never updated or deleted while the clinical relationship
// they support exists.
type PatientIdentity struct {
	ID           string
	CIP          string
	EncryptedRUT string
	RUTHash      string
	MaskedRUT    string
	CreatedByID  string
	CreatedAt    time.Time
}
