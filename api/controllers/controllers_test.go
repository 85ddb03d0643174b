package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/api/middleware"
	"github.com/privilegia/privilegia-backend/internal/currency"
	"github.com/privilegia/privilegia-backend/internal/flashoffers"
	"github.com/privilegia/privilegia-backend/internal/pricing"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func serve(method, pattern, target string, body []byte, handler http.HandlerFunc, ctxFn func(context.Context) context.Context) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(method, pattern, handler)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if ctxFn != nil {
		req = req.WithContext(ctxFn(req.Context()))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asMember(id uuid.UUID) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return middleware.WithIdentity(ctx, id.String(), string(enums.UserRoleMember), "")
	}
}

func asPartner(userID, partnerID uuid.UUID) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return middleware.WithIdentity(ctx, userID.String(), string(enums.UserRolePartner), partnerID.String())
	}
}

type stubResolver struct {
	explicit string
}

func (s *stubResolver) Resolve(_ context.Context, explicitCode, _ string) currency.Resolution {
	s.explicit = explicitCode
	return currency.Resolution{Currency: enums.CurrencyEUR, CountryCode: "DE", Symbol: "€", Detected: true, Source: currency.SourceGeoIP}
}

func TestPricingCalculate(t *testing.T) {
	resolver := &stubResolver{}
	handler := PricingCalculate(pricing.NewDefaultEngine(), resolver, nil, nil)

	rec := serve(http.MethodPost, "/pricing/calculate", "/pricing/calculate", []byte(`{"nb_access":2}`), handler, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var quote struct {
		TotalPrice     *string `json:"total_price"`
		PricePerAccess *string `json:"price_per_access"`
		ContactSales   bool    `json:"contact_sales"`
		Currency       struct {
			Currency string `json:"currency"`
		} `json:"currency"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.TotalPrice == nil || *quote.TotalPrice != "90.00" {
		t.Fatalf("unexpected total %v", quote.TotalPrice)
	}
	if quote.PricePerAccess == nil || *quote.PricePerAccess != "45.00" {
		t.Fatalf("unexpected per access %v", quote.PricePerAccess)
	}
	if quote.Currency.Currency != "EUR" {
		t.Fatalf("expected currency metadata, got %q", quote.Currency.Currency)
	}
}

func TestPricingCalculateCustomAndInvalid(t *testing.T) {
	handler := PricingCalculate(pricing.NewDefaultEngine(), &stubResolver{}, nil, nil)

	rec := serve(http.MethodPost, "/pricing/calculate", "/pricing/calculate", []byte(`{"nb_access":6000,"currency":"CHF"}`), handler, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var quote struct {
		TotalPrice   *string `json:"total_price"`
		ContactSales bool    `json:"contact_sales"`
		TierType     string  `json:"tier_type"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.TotalPrice != nil || !quote.ContactSales || quote.TierType != string(enums.TierTypeCustom) {
		t.Fatalf("expected custom quote, got %+v", quote)
	}

	rec = serve(http.MethodPost, "/pricing/calculate", "/pricing/calculate", []byte(`{"nb_access":-3}`), handler, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPricingTiers(t *testing.T) {
	handler := PricingTiers(pricing.NewDefaultEngine(), nil)
	rec := serve(http.MethodGet, "/pricing/tiers", "/pricing/tiers?nb_access=150", nil, handler, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var listing struct {
		Tiers       []tierResponse `json:"tiers"`
		Recommended *quoteResponse `json:"recommended"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Tiers) != 9 {
		t.Fatalf("expected 9 fixed tiers got %d", len(listing.Tiers))
	}
	if listing.Recommended == nil || *listing.Recommended.TotalPrice != "3300.00" {
		t.Fatalf("unexpected recommendation %+v", listing.Recommended)
	}
}

func TestDetectCurrencyPassesExplicitCode(t *testing.T) {
	resolver := &stubResolver{}
	rec := serve(http.MethodGet, "/pricing/detect-currency", "/pricing/detect-currency?currency=chf", nil, DetectCurrency(resolver, nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if resolver.explicit != "chf" {
		t.Fatalf("explicit code not forwarded: %q", resolver.explicit)
	}
}

type stubCheckout struct {
	err error
}

func (s stubCheckout) CreateCheckout(_ context.Context, _ uuid.UUID, nbAccess int, _ string) (*subscriptions.CheckoutResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	quote, _ := pricing.NewDefaultEngine().Quote(nbAccess)
	return &subscriptions.CheckoutResult{CheckoutURL: "https://checkout.test/cs_1", SessionID: "cs_1", Quote: quote}, nil
}

func TestCreateCheckout(t *testing.T) {
	member := uuid.New()
	rec := serve(http.MethodPost, "/subscription/create-checkout", "/subscription/create-checkout",
		[]byte(`{"nb_access":5,"currency":"CHF"}`), CreateCheckout(stubCheckout{}, nil), asMember(member))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		CheckoutURL string `json:"checkout_url"`
		SessionID   string `json:"session_id"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID != "cs_1" || body.CheckoutURL == "" {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = serve(http.MethodPost, "/subscription/create-checkout", "/subscription/create-checkout",
		[]byte(`{"nb_access":6000,"currency":"CHF"}`),
		CreateCheckout(stubCheckout{err: pkgerrors.New(pkgerrors.CodeUnsupportedTier, pricing.ContactSalesMessage)}, nil), asMember(member))
	if rec.Code != http.StatusBadRequest || decode(t, rec).Error.Code != string(pkgerrors.CodeUnsupportedTier) {
		t.Fatalf("expected UNSUPPORTED_TIER got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(http.MethodPost, "/subscription/create-checkout", "/subscription/create-checkout",
		[]byte(`{"nb_access":5,"currency":"CHF"}`), CreateCheckout(stubCheckout{}, nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity got %d", rec.Code)
	}
}

type stubMemberOffers struct {
	reserveErr error
	reserved   []uuid.UUID
}

func (s *stubMemberOffers) Reserve(_ context.Context, offerID, memberID uuid.UUID) (*models.Booking, error) {
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	s.reserved = append(s.reserved, offerID)
	return &models.Booking{ID: uuid.New(), OfferID: offerID, MemberID: memberID, Status: enums.BookingStatusConfirmed}, nil
}

func (s *stubMemberOffers) CancelBooking(_ context.Context, bookingID, memberID uuid.UUID) (*models.Booking, error) {
	return &models.Booking{ID: bookingID, MemberID: memberID, Status: enums.BookingStatusCancelled}, nil
}

func (s *stubMemberOffers) ListNearby(context.Context, uuid.UUID) ([]flashoffers.NearbyOfferDTO, error) {
	return []flashoffers.NearbyOfferDTO{}, nil
}

func (s *stubMemberOffers) ListMemberBookings(context.Context, uuid.UUID, int) ([]flashoffers.BookingDTO, error) {
	return nil, nil
}

func TestReserveOffer(t *testing.T) {
	member := uuid.New()
	offerID := uuid.New()
	svc := &stubMemberOffers{}
	pattern := "/member/offers/flash/{offer_id}/reserve"

	rec := serve(http.MethodPost, pattern, "/member/offers/flash/"+offerID.String()+"/reserve", nil, ReserveOffer(svc, nil), asMember(member))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.reserved) != 1 || svc.reserved[0] != offerID {
		t.Fatalf("offer id not forwarded: %v", svc.reserved)
	}

	rec = serve(http.MethodPost, pattern, "/member/offers/flash/not-a-uuid/reserve", nil, ReserveOffer(svc, nil), asMember(member))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id got %d", rec.Code)
	}

	tests := []struct {
		err  error
		code int
	}{
		{pkgerrors.New(pkgerrors.CodeOfferUnavailable, "offer not available"), http.StatusNotFound},
		{pkgerrors.New(pkgerrors.CodeDuplicateReservation, "offer already reserved"), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		failing := &stubMemberOffers{reserveErr: tt.err}
		rec = serve(http.MethodPost, pattern, "/member/offers/flash/"+offerID.String()+"/reserve", nil, ReserveOffer(failing, nil), asMember(member))
		if rec.Code != tt.code {
			t.Fatalf("%v: expected %d got %d", tt.err, tt.code, rec.Code)
		}
	}
}

func TestUpdateMemberLocationValidatesCoordinates(t *testing.T) {
	store := &stubLocationStore{}
	member := uuid.New()

	rec := serve(http.MethodPut, "/member/location", "/member/location", []byte(`{"latitude":46.2,"longitude":6.14}`), UpdateMemberLocation(store, nil), asMember(member))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if store.calls != 1 || store.lat != 46.2 {
		t.Fatalf("location not stored: %+v", store)
	}

	rec = serve(http.MethodPut, "/member/location", "/member/location", []byte(`{"latitude":120,"longitude":6.14}`), UpdateMemberLocation(store, nil), asMember(member))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	rec = serve(http.MethodPut, "/member/location", "/member/location", []byte(`{"longitude":6.14}`), UpdateMemberLocation(store, nil), asMember(member))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing latitude got %d", rec.Code)
	}
}

type stubLocationStore struct {
	calls int
	lat   float64
}

func (s *stubLocationStore) UpdateLocation(_ context.Context, _ uuid.UUID, lat, _ float64, _ time.Time) error {
	s.calls++
	s.lat = lat
	return nil
}

type stubActivations struct {
	activateErr error
	feedback    *privileges.FeedbackInput
	now         time.Time
}

func (s *stubActivations) Activate(_ context.Context, memberID uuid.UUID, input privileges.ActivateInput) (*models.PrivilegeActivation, error) {
	if s.activateErr != nil {
		return nil, s.activateErr
	}
	return &models.PrivilegeActivation{
		ID:             uuid.New(),
		MemberID:       memberID,
		OfferID:        input.OfferID,
		ValidationCode: "ABCD1234",
		Status:         enums.ActivationStatusActive,
		ActivatedAt:    s.now,
		ExpiresAt:      s.now.Add(2 * time.Minute),
	}, nil
}

func (s *stubActivations) SubmitFeedback(_ context.Context, memberID uuid.UUID, input privileges.FeedbackInput) (*models.PrivilegeActivation, error) {
	s.feedback = &input
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRating, "rating must be between 1 and 5")
	}
	rating := input.Rating
	return &models.PrivilegeActivation{ID: input.ActivationID, MemberID: memberID, FeedbackRating: &rating, FeedbackPointsAwarded: 10}, nil
}

func (s *stubActivations) Cancel(_ context.Context, memberID, activationID uuid.UUID) (*models.PrivilegeActivation, error) {
	return &models.PrivilegeActivation{ID: activationID, MemberID: memberID, Status: enums.ActivationStatusCancelled}, nil
}

func (s *stubActivations) ListActive(context.Context, uuid.UUID) ([]privileges.ActivationDTO, error) {
	return []privileges.ActivationDTO{}, nil
}

func (s *stubActivations) ListHistory(context.Context, uuid.UUID) ([]privileges.ActivationDTO, error) {
	return []privileges.ActivationDTO{}, nil
}

func (s *stubActivations) Now() time.Time { return s.now }

func TestActivatePrivilege(t *testing.T) {
	member := uuid.New()
	svc := &stubActivations{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	body := []byte(`{"offer_id":"` + uuid.NewString() + `","latitude":46.2,"longitude":6.1}`)

	rec := serve(http.MethodPost, "/member/activate-privilege", "/member/activate-privilege", body, ActivatePrivilege(svc, nil), asMember(member))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var dto privileges.ActivationDTO
	if err := json.Unmarshal(decode(t, rec).Data, &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.ValidationCode != "ABCD1234" || dto.RemainingSeconds != 120 {
		t.Fatalf("unexpected activation %+v", dto)
	}

	expired := &stubActivations{now: svc.now, activateErr: pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "subscription expired")}
	rec = serve(http.MethodPost, "/member/activate-privilege", "/member/activate-privilege", body, ActivatePrivilege(expired, nil), asMember(member))
	if rec.Code != http.StatusForbidden || decode(t, rec).Error.Code != string(pkgerrors.CodeSubscriptionExpired) {
		t.Fatalf("expected 403 SUBSCRIPTION_EXPIRED got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(http.MethodPost, "/member/activate-privilege", "/member/activate-privilege", []byte(`{"offer_id":"x"}`), ActivatePrivilege(svc, nil), asMember(member))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid offer id got %d", rec.Code)
	}
}

func TestSubmitFeedbackMapsInvalidRating(t *testing.T) {
	member := uuid.New()
	svc := &stubActivations{}
	body := []byte(`{"activation_id":"` + uuid.NewString() + `","rating":7}`)

	rec := serve(http.MethodPost, "/member/submit-feedback", "/member/submit-feedback", body, SubmitFeedback(svc, nil), asMember(member))
	if rec.Code != http.StatusBadRequest || decode(t, rec).Error.Code != string(pkgerrors.CodeInvalidRating) {
		t.Fatalf("expected INVALID_RATING got %d %s", rec.Code, rec.Body.String())
	}
	if svc.feedback == nil || svc.feedback.Rating != 7 {
		t.Fatalf("rating should reach the service unchanged")
	}
}

func TestMemberActivationsListRejectsUnknownScope(t *testing.T) {
	rec := serve(http.MethodGet, "/member/activations", "/member/activations?scope=all", nil, MemberActivationsList(&stubActivations{}, nil), asMember(uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

type stubPartnerOffers struct {
	created *flashoffers.CreateOfferInput
}

func (s *stubPartnerOffers) CreateOffer(_ context.Context, partnerID uuid.UUID, input flashoffers.CreateOfferInput) (*models.FlashOffer, error) {
	s.created = &input
	return &models.FlashOffer{ID: uuid.New(), PartnerID: partnerID, Title: input.Title, TotalStock: input.TotalStock, CurrentStock: input.TotalStock,
		ValidityStart: input.ValidityStart, ValidityEnd: input.ValidityEnd, Status: enums.OfferStatusActive}, nil
}

func (s *stubPartnerOffers) ListPartnerOffers(context.Context, flashoffers.PartnerOffersParams) (*flashoffers.PartnerOffersResult, error) {
	return &flashoffers.PartnerOffersResult{Items: []flashoffers.OfferDTO{}}, nil
}

func (s *stubPartnerOffers) CancelOffer(_ context.Context, offerID, partnerID uuid.UUID) (*models.FlashOffer, error) {
	return &models.FlashOffer{ID: offerID, PartnerID: partnerID, Status: enums.OfferStatusCancelled}, nil
}

func (s *stubPartnerOffers) ValidateBooking(_ context.Context, bookingID, _ uuid.UUID) (*models.Booking, error) {
	return nil, pkgerrors.New(pkgerrors.CodeAlreadyUsed, "booking already used")
}

func (s *stubPartnerOffers) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestCreateFlashOffer(t *testing.T) {
	svc := &stubPartnerOffers{}
	partner := uuid.New()
	body := []byte(`{"title":"Two for one","discount_value":"20","total_stock":5,
		"validity_start":"2026-03-01T10:00:00Z","validity_end":"2026-03-01T20:00:00Z","category":"Restaurant"}`)

	rec := serve(http.MethodPost, "/partner/offers/flash", "/partner/offers/flash", body, CreateFlashOffer(svc, nil), asPartner(uuid.New(), partner))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created == nil || svc.created.Category == nil || *svc.created.Category != enums.OfferCategoryRestaurant {
		t.Fatalf("category not parsed: %+v", svc.created)
	}
	if svc.created.DiscountValue.String() != "20" {
		t.Fatalf("unexpected discount %s", svc.created.DiscountValue)
	}

	bad := []byte(`{"title":"x","discount_value":"20","total_stock":5,
		"validity_start":"2026-03-01T10:00:00Z","validity_end":"2026-03-01T20:00:00Z","category":"casino"}`)
	rec = serve(http.MethodPost, "/partner/offers/flash", "/partner/offers/flash", bad, CreateFlashOffer(svc, nil), asPartner(uuid.New(), partner))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category got %d", rec.Code)
	}

	rec = serve(http.MethodPost, "/partner/offers/flash", "/partner/offers/flash", body, CreateFlashOffer(svc, nil), asMember(uuid.New()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without partner claim got %d", rec.Code)
	}
}

func TestValidateBookingMapsAlreadyUsed(t *testing.T) {
	rec := serve(http.MethodPost, "/partner/bookings/{booking_id}/validate", "/partner/bookings/"+uuid.NewString()+"/validate", nil,
		ValidateBooking(&stubPartnerOffers{}, nil), asPartner(uuid.New(), uuid.New()))
	if rec.Code != http.StatusBadRequest || decode(t, rec).Error.Code != string(pkgerrors.CodeAlreadyUsed) {
		t.Fatalf("expected ALREADY_USED got %d %s", rec.Code, rec.Body.String())
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	ok := HealthReady("test", map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, nil)
	rec := serve(http.MethodGet, "/health/ready", "/health/ready", nil, ok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	down := HealthReady("test", map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}}, nil)
	rec = serve(http.MethodGet, "/health/ready", "/health/ready", nil, down, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if rec.Header().Get("X-Privilegia-Env") != "test" {
		t.Fatalf("env header missing")
	}
}
