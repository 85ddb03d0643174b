package flashoffers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/favorites"
	"github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/geo"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
	"github.com/privilegia/privilegia-backend/pkg/pagination"
)

const (
	DefaultRadiusMeters = 10000.0
	maxTitleLength      = 200
	liveBookingIndex    = "bookings_member_offer_live_key"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type memberFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type partnerLister interface {
	ListWithLocation(ctx context.Context) ([]models.Partner, error)
}

type favoriteLister interface {
	ListFavorites(ctx context.Context, memberID uuid.UUID) (favorites.Set, error)
}

type categorizer interface {
	Categorize(ctx context.Context, title, description string) enums.OfferCategory
}

// ServiceParams wires the reservation engine.
type ServiceParams struct {
	Repo         *Repository
	Tx           txRunner
	Members      memberFinder
	Partners     partnerLister
	Favorites    favoriteLister
	Categorizer  categorizer
	Metrics      *metrics.DomainMetrics
	RadiusMeters float64
	Logger       *logger.Logger
	Clock        func() time.Time
}

// Service owns flash-offer stock. Every stock mutation happens under the
// offer row lock.
type Service struct {
	repo        *Repository
	tx          txRunner
	members     memberFinder
	partners    partnerLister
	favorites   favoriteLister
	categorizer categorizer
	metrics     *metrics.DomainMetrics
	radius      float64
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "flash offer repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	}
	if params.Members == nil || params.Partners == nil || params.Favorites == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "member, partner and favorite lookups are required")
	}
	radius := params.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        params.Repo,
		tx:          params.Tx,
		members:     params.Members,
		partners:    params.Partners,
		favorites:   params.Favorites,
		categorizer: params.Categorizer,
		metrics:     params.Metrics,
		radius:      radius,
		logg:        logg,
		now:         clock,
	}, nil
}

// CreateOffer publishes a new offer with its full stock available.
func (s *Service) CreateOffer(ctx context.Context, partnerID uuid.UUID, input CreateOfferInput) (*models.FlashOffer, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "partner account required")
	}
	if err := validateOfferInput(input, s.now()); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := trimOptional(input.Description)

	category := enums.OfferCategoryGeneral
	switch {
	case input.Category != nil && input.Category.IsValid():
		category = *input.Category
	case s.categorizer != nil:
		desc := ""
		if description != nil {
			desc = *description
		}
		category = s.categorizer.Categorize(ctx, title, desc)
	}

	offer := &models.FlashOffer{
		PartnerID:     partnerID,
		Title:         title,
		Description:   description,
		Category:      category,
		DiscountValue: input.DiscountValue.Round(2),
		TotalStock:    input.TotalStock,
		CurrentStock:  input.TotalStock,
		ValidityStart: input.ValidityStart.UTC(),
		ValidityEnd:   input.ValidityEnd.UTC(),
		Status:        enums.OfferStatusActive,
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create flash offer")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"offer_id":    offer.ID.String(),
		"partner_id":  partnerID.String(),
		"total_stock": offer.TotalStock,
		"category":    offer.Category.String(),
	}), "flash_offer.created")
	return offer, nil
}

func validateOfferInput(input CreateOfferInput, now time.Time) error {
	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case len(title) > maxTitleLength:
		return pkgerrors.New(pkgerrors.CodeValidation, "title is too long")
	case !input.DiscountValue.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_value must be positive")
	case input.TotalStock <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "total_stock must be positive")
	case input.ValidityStart.IsZero() || input.ValidityEnd.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "validity window is required")
	case !input.ValidityStart.Before(input.ValidityEnd):
		return pkgerrors.New(pkgerrors.CodeValidation, "validity_start must be before validity_end")
	case !input.ValidityEnd.After(now):
		return pkgerrors.New(pkgerrors.CodeValidation, "validity_end must be in the future")
	}
	return nil
}

// Reserve takes one unit of stock for memberID. Lock, revalidation, duplicate
// check, decrement and booking insert share one transaction, so a failure at
// any step leaves stock untouched.
func (s *Service) Reserve(ctx context.Context, offerID, memberID uuid.UUID) (*models.Booking, error) {
	if offerID == uuid.Nil || memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id and member id are required")
	}

	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		offer, err := repo.LockOffer(ctx, offerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock flash offer")
		}
		if offer == nil || !offer.AvailableAt(now) {
			return pkgerrors.New(pkgerrors.CodeOfferUnavailable, "offer is sold out or no longer valid")
		}

		existing, err := repo.FindLiveBooking(ctx, memberID, offerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing booking")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateReservation, "offer already reserved").
				WithDetails(map[string]any{"booking_id": existing.ID})
		}

		ok, err := repo.DecrementStock(ctx, offerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeOfferUnavailable, "offer is sold out or no longer valid")
		}

		candidate := &models.Booking{
			MemberID:  memberID,
			OfferID:   offerID,
			PartnerID: offer.PartnerID,
			Status:    enums.BookingStatusConfirmed,
		}
		if err := repo.CreateBooking(ctx, candidate); err != nil {
			if db.IsUniqueViolation(err, liveBookingIndex) {
				return pkgerrors.New(pkgerrors.CodeDuplicateReservation, "offer already reserved")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}
		booking = candidate
		return nil
	})

	s.metrics.ObserveReservation(reservationOutcome(err))
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeDependency || pkgerrors.CodeOf(err) == pkgerrors.CodeInternal {
			s.logg.Error(s.logg.WithField(ctx, "offer_id", offerID.String()), "flash_offer.reserve_failed", err)
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"offer_id":   offerID.String(),
		"member_id":  memberID.String(),
		"booking_id": booking.ID.String(),
	}), "flash_offer.reserved")
	return booking, nil
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.Is(err, pkgerrors.CodeOfferUnavailable):
		return metrics.OutcomeUnavailable
	case pkgerrors.Is(err, pkgerrors.CodeDuplicateReservation):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeError
	}
}

// ValidateBooking marks a confirmed booking used. Only the issuing partner
// may validate it, and only once.
func (s *Service) ValidateBooking(ctx context.Context, bookingID, partnerID uuid.UUID) (*models.Booking, error) {
	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.LockBooking(ctx, bookingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if booking == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		if booking.PartnerID != partnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another partner")
		}
		switch booking.Status {
		case enums.BookingStatusUsed:
			return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "booking already used")
		case enums.BookingStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "booking was cancelled")
		}

		now := s.now()
		ok, err := repo.TransitionBooking(ctx, booking.ID, enums.BookingStatusConfirmed, enums.BookingStatusUsed, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking used")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "booking already used")
		}
		booking.Status = enums.BookingStatusUsed
		booking.UsedAt = &now
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"booking_id": bookingID.String(),
		"partner_id": partnerID.String(),
	}), "flash_offer.booking_validated")
	return result, nil
}

// CancelBooking releases a confirmed booking and returns its unit of stock.
// Locks are taken offer first, then booking, matching Reserve.
func (s *Service) CancelBooking(ctx context.Context, bookingID, memberID uuid.UUID) (*models.Booking, error) {
	peek, err := s.repo.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if peek == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	if peek.MemberID != memberID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another member")
	}

	var result *models.Booking
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		offer, err := repo.LockOffer(ctx, peek.OfferID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock flash offer")
		}
		booking, err := repo.LockBooking(ctx, bookingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock booking")
		}
		if booking == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		switch booking.Status {
		case enums.BookingStatusUsed:
			return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "used bookings cannot be cancelled")
		case enums.BookingStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "booking already cancelled")
		}

		ok, err := repo.TransitionBooking(ctx, booking.ID, enums.BookingStatusConfirmed, enums.BookingStatusCancelled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel booking")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "booking changed concurrently")
		}
		booking.Status = enums.BookingStatusCancelled
		booking.CancelledAt = &now

		if offer != nil {
			if _, err := repo.RestoreStock(ctx, offer.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
			// The sweep expires exhausted offers; a returned unit revives them
			// while the window is still open.
			if offer.Status == enums.OfferStatusExpired && offer.CurrentStock == 0 && now.Before(offer.ValidityEnd) {
				if err := repo.UpdateOfferStatus(ctx, offer.ID, enums.OfferStatusActive); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate offer")
				}
			}
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"booking_id": bookingID.String(),
		"member_id":  memberID.String(),
	}), "flash_offer.booking_cancelled")
	return result, nil
}

// CancelOffer withdraws an offer from sale. Existing bookings stay valid.
func (s *Service) CancelOffer(ctx context.Context, offerID, partnerID uuid.UUID) (*models.FlashOffer, error) {
	var result *models.FlashOffer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := repo.LockOffer(ctx, offerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock flash offer")
		}
		if offer == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		if offer.PartnerID != partnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to another partner")
		}
		if offer.Status != enums.OfferStatusCancelled {
			if err := repo.UpdateOfferStatus(ctx, offer.ID, enums.OfferStatusCancelled); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel offer")
			}
			offer.Status = enums.OfferStatusCancelled
		}
		result = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPartnerOffers pages through the partner's own offers.
func (s *Service) ListPartnerOffers(ctx context.Context, params PartnerOffersParams) (*PartnerOffersResult, error) {
	if params.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "partner account required")
	}
	query := listPartnerOffersParams{PartnerID: params.PartnerID, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	if status := strings.TrimSpace(params.Status); status != "" {
		parsed, err := enums.ParseOfferStatus(strings.ToLower(status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &parsed
	}

	rows, next, err := s.repo.ListByPartner(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partner offers")
	}

	now := s.now()
	items := make([]OfferDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, OfferFromModel(row, now))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &PartnerOffersResult{Items: items, Cursor: cursor}, nil
}

// ListNearby returns available offers from the member's favorite partners and
// from partners within the configured radius of the member's last position.
// Without a known position only favorites qualify.
func (s *Service) ListNearby(ctx context.Context, memberID uuid.UUID) ([]NearbyOfferDTO, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	favs, err := s.favorites.ListFavorites(ctx, memberID)
	if err != nil {
		return nil, err
	}
	located, err := s.partners.ListWithLocation(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partners")
	}

	origin, hasOrigin := geo.FromNullable(member.LastLatitude, member.LastLongitude)
	distances := make(map[uuid.UUID]float64, len(located))
	eligible := make(map[uuid.UUID]struct{}, len(favs))
	for id := range favs {
		eligible[id] = struct{}{}
	}
	for _, partner := range located {
		point, ok := geo.FromNullable(partner.Latitude, partner.Longitude)
		if !ok || !hasOrigin {
			continue
		}
		d := geo.DistanceMeters(origin, point)
		distances[partner.ID] = d
		if d <= s.radius {
			eligible[partner.ID] = struct{}{}
		}
	}

	ids := make([]uuid.UUID, 0, len(eligible))
	for id := range eligible {
		ids = append(ids, id)
	}
	now := s.now()
	offers, err := s.repo.ListAvailableByPartners(ctx, ids, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list nearby offers")
	}

	out := make([]NearbyOfferDTO, 0, len(offers))
	for _, offer := range offers {
		item := NearbyOfferDTO{
			OfferDTO:   OfferFromModel(offer, now),
			IsFavorite: favs.Has(offer.PartnerID),
		}
		if d, ok := distances[offer.PartnerID]; ok {
			dist := d
			item.DistanceMeters = &dist
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DistanceMeters, out[j].DistanceMeters
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
	return out, nil
}

// ListMemberBookings returns the member's bookings newest first.
func (s *Service) ListMemberBookings(ctx context.Context, memberID uuid.UUID, limit int) ([]BookingDTO, error) {
	rows, err := s.repo.ListBookingsByMember(ctx, memberID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	out := make([]BookingDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, BookingFromModel(row))
	}
	return out, nil
}

// Now exposes the service clock so handlers render availability consistently.
func (s *Service) Now() time.Time {
	return s.now()
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
