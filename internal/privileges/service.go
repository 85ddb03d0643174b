package privileges

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/users"
	"github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/metrics"
	"github.com/privilegia/privilegia-backend/pkg/security"
)

const (
	DefaultWindow        = 2 * time.Minute
	DefaultFeedbackBonus = 10
	CodeLength           = 8
	maxCodeAttempts      = 5
	defaultListLimit     = 50
	codeIndex            = "privilege_activations_validation_code_key"
	minRating, maxRating = 1, 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accessChecker interface {
	ActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
}

type privilegeFinder interface {
	FindPrivilege(ctx context.Context, id uuid.UUID) (*models.Privilege, error)
}

// ServiceParams wires the activation state machine.
type ServiceParams struct {
	Repo          *Repository
	Users         *users.Repository
	Tx            txRunner
	Access        accessChecker
	Privileges    privilegeFinder
	Metrics       *metrics.DomainMetrics
	Window        time.Duration
	FeedbackBonus int
	Logger        *logger.Logger
	Clock         func() time.Time
	// CodeGenerator defaults to an 8-character crypto/rand code.
	CodeGenerator func() (string, error)
}

// Service manages privilege activations: active -> validated | cancelled,
// with expiry derived from expires_at at read time.
type Service struct {
	repo       *Repository
	users      *users.Repository
	tx         txRunner
	access     accessChecker
	privileges privilegeFinder
	metrics    *metrics.DomainMetrics
	window     time.Duration
	bonus      int
	logg       *logger.Logger
	now        func() time.Time
	newCode    func() (string, error)
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activation repo is required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo is required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	case params.Access == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription access checker is required")
	case params.Privileges == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "privilege lookup is required")
	}
	svc := &Service{
		repo:       params.Repo,
		users:      params.Users,
		tx:         params.Tx,
		access:     params.Access,
		privileges: params.Privileges,
		metrics:    params.Metrics,
		window:     params.Window,
		bonus:      params.FeedbackBonus,
		logg:       params.Logger,
		now:        params.Clock,
		newCode:    params.CodeGenerator,
	}
	if svc.window <= 0 {
		svc.window = DefaultWindow
	}
	if svc.bonus <= 0 {
		svc.bonus = DefaultFeedbackBonus
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	if svc.newCode == nil {
		svc.newCode = func() (string, error) { return security.RandomCode(CodeLength) }
	}
	return svc, nil
}

// Activate opens a redemption window for memberID at the privilege's
// partner. The member row lock serializes concurrent activations by the same
// member, so the one-usable-window rule holds without a unique index.
func (s *Service) Activate(ctx context.Context, memberID uuid.UUID, input ActivateInput) (*models.PrivilegeActivation, error) {
	activation, err := s.activate(ctx, memberID, input)
	s.metrics.ObserveActivation(activationOutcome(err))
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"activation_id": activation.ID.String(),
		"member_id":     memberID.String(),
		"partner_id":    activation.PartnerID.String(),
	}), "privilege.activated")
	return activation, nil
}

func (s *Service) activate(ctx context.Context, memberID uuid.UUID, input ActivateInput) (*models.PrivilegeActivation, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "member required")
	}
	if input.OfferID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer_id is required")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be provided together")
	}

	now := s.now()
	if _, err := s.access.ActiveForUser(ctx, memberID, now); err != nil {
		return nil, err
	}
	privilege, err := s.privileges.FindPrivilege(ctx, input.OfferID)
	if err != nil {
		return nil, err
	}
	if !privilege.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "privilege not found")
	}

	var created *models.PrivilegeActivation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.WithTx(tx).LockByID(ctx, memberID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindUsable(ctx, memberID, privilege.PartnerID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active privilege")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyActive, "a privilege is already active at this partner").
				WithDetails(map[string]any{
					"activation_id": existing.ID,
					"expires_at":    existing.ExpiresAt,
				})
		}

		activation := &models.PrivilegeActivation{
			MemberID:    memberID,
			PartnerID:   privilege.PartnerID,
			OfferID:     privilege.ID,
			ActivatedAt: now,
			ExpiresAt:   now.Add(s.window),
			Status:      enums.ActivationStatusActive,
			Latitude:    input.Latitude,
			Longitude:   input.Longitude,
			DeviceInfo:  trimOptional(input.DeviceInfo),
		}
		if err := s.insertWithCode(ctx, tx, activation); err != nil {
			return err
		}
		created = activation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertWithCode retries code generation on collisions. Each attempt runs in
// a savepoint so a failed insert does not poison the outer transaction.
func (s *Service) insertWithCode(ctx context.Context, tx *gorm.DB, activation *models.PrivilegeActivation) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate validation code")
		}
		activation.ValidationCode = code

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.repo.WithTx(sp).Create(ctx, activation)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, codeIndex) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create activation")
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "privilege.code_collision")
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique validation code")
}

func activationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.Is(err, pkgerrors.CodeAlreadyActive):
		return metrics.OutcomeDuplicate
	case pkgerrors.Is(err, pkgerrors.CodeSubscriptionExpired), pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	case pkgerrors.Is(err, pkgerrors.CodeValidation), pkgerrors.Is(err, pkgerrors.CodeUnauthorized):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// Validate lets a partner redeem a usable activation by its code.
func (s *Service) Validate(ctx context.Context, partnerID uuid.UUID, code string) (*models.PrivilegeActivation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation_code must be 8 characters")
	}

	var result *models.PrivilegeActivation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		activation, err := repo.LockByCode(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activation")
		}
		if activation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found")
		}
		if activation.PartnerID != partnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "activation belongs to another partner")
		}

		now := s.now()
		if err := ensureUsable(activation, now); err != nil {
			return err
		}
		ok, err := repo.Transition(ctx, activation.ID, enums.ActivationStatusActive, enums.ActivationStatusValidated, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate activation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "activation changed concurrently")
		}
		activation.Status = enums.ActivationStatusValidated
		activation.ValidatedAt = &now
		result = activation
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"activation_id": result.ID.String(),
		"partner_id":    partnerID.String(),
	}), "privilege.validated")
	return result, nil
}

// Cancel closes the member's own usable activation early.
func (s *Service) Cancel(ctx context.Context, memberID, activationID uuid.UUID) (*models.PrivilegeActivation, error) {
	var result *models.PrivilegeActivation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		activation, err := repo.LockByID(ctx, activationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activation")
		}
		if activation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found")
		}
		if activation.MemberID != memberID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "activation belongs to another member")
		}

		now := s.now()
		if err := ensureUsable(activation, now); err != nil {
			return err
		}
		ok, err := repo.Transition(ctx, activation.ID, enums.ActivationStatusActive, enums.ActivationStatusCancelled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel activation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "activation changed concurrently")
		}
		activation.Status = enums.ActivationStatusCancelled
		result = activation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureUsable maps every non-usable state to its error.
func ensureUsable(activation *models.PrivilegeActivation, now time.Time) error {
	if activation.UsableAt(now) {
		return nil
	}
	switch activation.EffectiveStatus(now) {
	case enums.ActivationStatusValidated:
		return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "activation already validated")
	case enums.ActivationStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeConflict, "activation was cancelled")
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "activation expired")
	}
}

// SubmitFeedback records the member's rating once and credits the bonus in
// the same transaction.
func (s *Service) SubmitFeedback(ctx context.Context, memberID uuid.UUID, input FeedbackInput) (*models.PrivilegeActivation, error) {
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRating, "rating must be between 1 and 5")
	}
	if input.ActivationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activation_id is required")
	}
	comment := trimOptional(input.Comment)

	var result *models.PrivilegeActivation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		activation, err := repo.LockByID(ctx, input.ActivationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activation")
		}
		if activation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found")
		}
		if activation.MemberID != memberID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "activation belongs to another member")
		}
		if activation.FeedbackRating != nil {
			return pkgerrors.New(pkgerrors.CodeFeedbackAlreadySubmitted, "feedback already submitted")
		}

		now := s.now()
		ok, err := repo.RecordFeedback(ctx, activation.ID, input.Rating, comment, s.bonus, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record feedback")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeFeedbackAlreadySubmitted, "feedback already submitted")
		}
		if err := s.users.WithTx(tx).AddPoints(ctx, memberID, s.bonus); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit feedback points")
		}

		rating := input.Rating
		activation.FeedbackRating = &rating
		activation.FeedbackComment = comment
		activation.FeedbackSubmittedAt = &now
		activation.FeedbackPointsAwarded = s.bonus
		result = activation
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"activation_id": result.ID.String(),
		"rating":        input.Rating,
		"points":        s.bonus,
	}), "privilege.feedback_recorded")
	return result, nil
}

// ListActive returns the member's currently usable activations.
func (s *Service) ListActive(ctx context.Context, memberID uuid.UUID) ([]ActivationDTO, error) {
	now := s.now()
	rows, err := s.repo.ListByMember(ctx, memberID, &now, defaultListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activations")
	}
	return toDTOs(rows, now), nil
}

// ListHistory returns recent activations with their effective status.
func (s *Service) ListHistory(ctx context.Context, memberID uuid.UUID) ([]ActivationDTO, error) {
	rows, err := s.repo.ListByMember(ctx, memberID, nil, defaultListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activations")
	}
	return toDTOs(rows, s.now()), nil
}

// Now exposes the service clock so handlers render DTOs consistently.
func (s *Service) Now() time.Time {
	return s.now()
}

func toDTOs(rows []models.PrivilegeActivation, now time.Time) []ActivationDTO {
	out := make([]ActivationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row, now))
	}
	return out
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
