package enums

import (
	"fmt"
	"strings"
)

// OfferCategory groups offers and privileges for browsing.
type OfferCategory string

const (
	OfferCategoryRestaurant OfferCategory = "restaurant"
	OfferCategoryWellness   OfferCategory = "wellness"
	OfferCategoryRetail     OfferCategory = "retail"
	OfferCategoryLeisure    OfferCategory = "leisure"
	OfferCategoryTravel     OfferCategory = "travel"
	OfferCategoryServices   OfferCategory = "services"
	OfferCategoryGeneral    OfferCategory = "general"
)

var validOfferCategories = []OfferCategory{
	OfferCategoryRestaurant,
	OfferCategoryWellness,
	OfferCategoryRetail,
	OfferCategoryLeisure,
	OfferCategoryTravel,
	OfferCategoryServices,
	OfferCategoryGeneral,
}

// OfferCategories lists every known category in display order.
func OfferCategories() []OfferCategory {
	out := make([]OfferCategory, len(validOfferCategories))
	copy(out, validOfferCategories)
	return out
}

func (c OfferCategory) String() string {
	return string(c)
}

func (c OfferCategory) IsValid() bool {
	for _, candidate := range validOfferCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseOfferCategory accepts any casing and surrounding whitespace.
func ParseOfferCategory(value string) (OfferCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOfferCategories {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer category %q", value)
}
