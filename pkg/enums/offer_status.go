package enums

import "fmt"

// OfferStatus is the stored status of a flash offer. Exhaustion and expiry are
// derived from stock and validity window, not only from this field.
type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusActive,
	OfferStatusExpired,
	OfferStatusCancelled,
}

func (s OfferStatus) String() string {
	return string(s)
}

func (s OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}
