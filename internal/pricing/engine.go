package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

// ContactSalesMessage accompanies every custom quote.
const ContactSalesMessage = "More than 5000 accesses requires a custom offer. Please contact our sales team."

var hundred = decimal.NewFromInt(100)

// Quote is the derived pricing result for a requested access count. Money
// fields are nil for custom quotes.
type Quote struct {
	NbAccess         int
	NbAccessIncluded int
	TotalPrice       *decimal.Decimal
	PricePerAccess   *decimal.Decimal
	DiscountPercent  *decimal.Decimal
	TierType         enums.TierType
	TierName         string
	ContactSales     bool
	Message          string
}

// IsCustom reports whether the quote has no numeric price.
func (q Quote) IsCustom() bool {
	return q.TotalPrice == nil
}

// Engine computes quotes from a tier table. It holds no mutable state.
type Engine struct {
	table Table
}

func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// NewDefaultEngine uses the production tier table.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultTable())
}

func (e *Engine) Table() Table {
	return e.table
}

// Quote prices nbAccess accesses.
func (e *Engine) Quote(nbAccess int) (Quote, error) {
	if nbAccess < 1 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "nb_access must be at least 1").
			WithDetails(map[string]any{"nb_access": nbAccess})
	}

	if nbAccess > e.table.MaxFixedTier() {
		return Quote{
			NbAccess:         nbAccess,
			NbAccessIncluded: nbAccess,
			TierType:         enums.TierTypeCustom,
			TierName:         TierName(nbAccess),
			ContactSales:     true,
			Message:          ContactSalesMessage,
		}, nil
	}

	var (
		total    decimal.Decimal
		included = nbAccess
	)
	if nbAccess <= ProgressiveCeiling {
		total = e.progressivePrice(nbAccess)
	} else {
		tier := e.fixedTierFor(nbAccess)
		total = tier.Price
		included = tier.NbAccess
	}

	perAccess := total.Div(decimal.NewFromInt(int64(nbAccess))).Round(2)
	discount := e.discountPercent(nbAccess, total)

	return Quote{
		NbAccess:         nbAccess,
		NbAccessIncluded: included,
		TotalPrice:       &total,
		PricePerAccess:   &perAccess,
		DiscountPercent:  &discount,
		TierType:         tierTypeFor(nbAccess),
		TierName:         TierName(included),
	}, nil
}

// progressivePrice returns the exact table price on a breakpoint and the
// linear interpolation between neighbouring breakpoints otherwise.
func (e *Engine) progressivePrice(nbAccess int) decimal.Decimal {
	points := e.table.progressive
	for i, point := range points {
		if point.NbAccess == nbAccess {
			return point.Price
		}
		if point.NbAccess > nbAccess {
			lower := points[i-1]
			span := decimal.NewFromInt(int64(point.NbAccess - lower.NbAccess))
			offset := decimal.NewFromInt(int64(nbAccess - lower.NbAccess))
			delta := point.Price.Sub(lower.Price).Mul(offset).Div(span)
			return lower.Price.Add(delta).Round(2)
		}
	}
	return points[len(points)-1].Price
}

func (e *Engine) fixedTierFor(nbAccess int) Breakpoint {
	for _, tier := range e.table.fixed {
		if tier.NbAccess >= nbAccess {
			return tier
		}
	}
	return e.table.fixed[len(e.table.fixed)-1]
}

func (e *Engine) discountPercent(nbAccess int, total decimal.Decimal) decimal.Decimal {
	baseline := e.table.UnitPrice().Mul(decimal.NewFromInt(int64(nbAccess)))
	if baseline.IsZero() {
		return decimal.Zero
	}
	return baseline.Sub(total).Mul(hundred).Div(baseline).Round(1)
}

// TierOption describes one fixed bundle for the tier listing.
type TierOption struct {
	NbAccess        int
	TotalPrice      decimal.Decimal
	PricePerAccess  decimal.Decimal
	DiscountPercent decimal.Decimal
	TierName        string
}

// TierListing is the fixed tier catalogue plus the quote recommended for a
// requested access count.
type TierListing struct {
	Tiers       []TierOption
	Recommended *Quote
}

// Tiers lists every fixed bundle and, when nbAccess is positive, the quote
// that applies to it.
func (e *Engine) Tiers(nbAccess int) (TierListing, error) {
	listing := TierListing{Tiers: make([]TierOption, 0, len(e.table.fixed))}
	for _, tier := range e.table.fixed {
		listing.Tiers = append(listing.Tiers, TierOption{
			NbAccess:        tier.NbAccess,
			TotalPrice:      tier.Price,
			PricePerAccess:  tier.PerAccess(),
			DiscountPercent: e.discountPercent(tier.NbAccess, tier.Price),
			TierName:        TierName(tier.NbAccess),
		})
	}
	if nbAccess == 0 {
		return listing, nil
	}
	quote, err := e.Quote(nbAccess)
	if err != nil {
		return TierListing{}, err
	}
	listing.Recommended = &quote
	return listing, nil
}
