package enums

import "fmt"

// ActivationStatus is the stored status of a privilege activation. A stored
// "active" value may be stale; callers derive freshness from expires_at.
type ActivationStatus string

const (
	ActivationStatusActive    ActivationStatus = "active"
	ActivationStatusExpired   ActivationStatus = "expired"
	ActivationStatusValidated ActivationStatus = "validated"
	ActivationStatusCancelled ActivationStatus = "cancelled"
)

var validActivationStatuses = []ActivationStatus{
	ActivationStatusActive,
	ActivationStatusExpired,
	ActivationStatusValidated,
	ActivationStatusCancelled,
}

func (s ActivationStatus) String() string {
	return string(s)
}

func (s ActivationStatus) IsValid() bool {
	for _, candidate := range validActivationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseActivationStatus(value string) (ActivationStatus, error) {
	for _, candidate := range validActivationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activation status %q", value)
}
