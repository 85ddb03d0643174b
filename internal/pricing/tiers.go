package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// Breakpoint is a priced access count in the tier table.
type Breakpoint struct {
	NbAccess int
	Price    decimal.Decimal
}

// PerAccess returns the breakpoint price divided by its access count.
func (b Breakpoint) PerAccess() decimal.Decimal {
	return b.Price.Div(decimal.NewFromInt(int64(b.NbAccess))).Round(2)
}

// Table holds the annual price reference data. Progressive breakpoints cover
// 1..ProgressiveCeiling and are interpolated; fixed breakpoints are flat bundles.
type Table struct {
	progressive []Breakpoint
	fixed       []Breakpoint
}

// ProgressiveCeiling is the largest access count priced by interpolation.
const ProgressiveCeiling = 100

func bp(n int, price string) Breakpoint {
	return Breakpoint{NbAccess: n, Price: decimal.RequireFromString(price)}
}

var defaultTable = Table{
	progressive: []Breakpoint{
		bp(1, "49.00"),
		bp(2, "90.00"),
		bp(5, "200.00"),
		bp(10, "380.00"),
		bp(20, "700.00"),
		bp(30, "1000.00"),
		bp(50, "1500.00"),
		bp(75, "2000.00"),
		bp(100, "2500.00"),
	},
	fixed: []Breakpoint{
		bp(150, "3300.00"),
		bp(200, "4200.00"),
		bp(300, "6000.00"),
		bp(500, "9000.00"),
		bp(750, "12750.00"),
		bp(1000, "16000.00"),
		bp(2000, "30000.00"),
		bp(3000, "42000.00"),
		bp(5000, "65000.00"),
	},
}

// DefaultTable returns the production tier table.
func DefaultTable() Table {
	return defaultTable
}

// NewTable builds a table from explicit breakpoints. Both slices are sorted
// by access count and the result is validated.
func NewTable(progressive, fixed []Breakpoint) (Table, error) {
	t := Table{
		progressive: append([]Breakpoint(nil), progressive...),
		fixed:       append([]Breakpoint(nil), fixed...),
	}
	sort.Slice(t.progressive, func(i, j int) bool { return t.progressive[i].NbAccess < t.progressive[j].NbAccess })
	sort.Slice(t.fixed, func(i, j int) bool { return t.fixed[i].NbAccess < t.fixed[j].NbAccess })
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks the table invariants: progressive prices never decrease and
// the fixed per-access price never increases as bundles grow.
func (t Table) Validate() error {
	if len(t.progressive) == 0 || t.progressive[0].NbAccess != 1 {
		return fmt.Errorf("progressive table must start at 1 access")
	}
	if last := t.progressive[len(t.progressive)-1]; last.NbAccess != ProgressiveCeiling {
		return fmt.Errorf("progressive table must end at %d accesses, got %d", ProgressiveCeiling, last.NbAccess)
	}
	for i := 1; i < len(t.progressive); i++ {
		prev, cur := t.progressive[i-1], t.progressive[i]
		if cur.NbAccess <= prev.NbAccess {
			return fmt.Errorf("duplicate progressive breakpoint %d", cur.NbAccess)
		}
		if cur.Price.LessThan(prev.Price) {
			return fmt.Errorf("progressive price decreases at %d accesses", cur.NbAccess)
		}
	}
	for i, cur := range t.fixed {
		if cur.NbAccess <= ProgressiveCeiling {
			return fmt.Errorf("fixed tier %d overlaps progressive range", cur.NbAccess)
		}
		if i == 0 {
			continue
		}
		prev := t.fixed[i-1]
		if cur.NbAccess <= prev.NbAccess {
			return fmt.Errorf("duplicate fixed tier %d", cur.NbAccess)
		}
		if cur.PerAccess().GreaterThan(prev.PerAccess()) {
			return fmt.Errorf("fixed per-access price increases at %d accesses", cur.NbAccess)
		}
	}
	return nil
}

// UnitPrice is the price of a single access, the no-discount baseline.
func (t Table) UnitPrice() decimal.Decimal {
	return t.progressive[0].Price
}

// MaxFixedTier is the largest priced bundle; larger requests need a custom quote.
func (t Table) MaxFixedTier() int {
	if len(t.fixed) == 0 {
		return ProgressiveCeiling
	}
	return t.fixed[len(t.fixed)-1].NbAccess
}

// Progressive returns a copy of the progressive breakpoints.
func (t Table) Progressive() []Breakpoint {
	return append([]Breakpoint(nil), t.progressive...)
}

// Fixed returns a copy of the fixed bundle tiers.
func (t Table) Fixed() []Breakpoint {
	return append([]Breakpoint(nil), t.fixed...)
}

// TierName maps an access count to its marketing label.
func TierName(nbAccess int) string {
	switch {
	case nbAccess <= 1:
		return "Individual"
	case nbAccess <= 10:
		return "Family"
	case nbAccess <= 30:
		return "Extended family"
	case nbAccess <= 100:
		return "Small business"
	case nbAccess <= 500:
		return "Business"
	case nbAccess <= 1000:
		return "Corporate"
	case nbAccess <= 5000:
		return "Enterprise"
	default:
		return "Custom"
	}
}

func tierTypeFor(nbAccess int) enums.TierType {
	if nbAccess <= ProgressiveCeiling {
		return enums.TierTypeProgressive
	}
	return enums.TierTypeFixed
}
