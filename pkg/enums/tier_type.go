package enums

// TierType classifies a pricing quote.
type TierType string

const (
	TierTypeProgressive TierType = "progressive"
	TierTypeFixed       TierType = "fixed"
	TierTypeCustom      TierType = "custom"
)

func (t TierType) String() string {
	return string(t)
}

func (t TierType) IsValid() bool {
	switch t {
	case TierTypeProgressive, TierTypeFixed, TierTypeCustom:
		return true
	}
	return false
}
