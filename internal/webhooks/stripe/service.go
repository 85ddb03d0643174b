package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/privilegia/privilegia-backend/internal/subscriptions"
	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type customerLinker interface {
	SetStripeCustomerIDWithTx(tx *gorm.DB, userID uuid.UUID, customerID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	SubscriptionRepo  subscriptions.Repository
	Users             customerLinker
	Provider          subscriptionFetcher
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service materializes local subscription rows from billing events.
type Service struct {
	repo     subscriptions.Repository
	users    customerLinker
	provider subscriptionFetcher
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:     params.SubscriptionRepo,
		users:    params.Users,
		provider: params.Provider,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub, uuid.Nil)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		stripeSub, err := s.provider.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeBillingProvider, err, "fetch stripe subscription")
		}
		return s.syncSubscription(ctx, stripeSub, uuid.Nil)
	default:
		if s.logg != nil {
			s.logg.Debug(s.logg.WithField(ctx, "event_type", string(event.Type)), "stripe event ignored")
		}
		return nil
	}
}

// handleCheckoutCompleted pulls the subscription created by a completed
// checkout. The client reference id carries the user when the subscription
// metadata does not.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil || session.Subscription.ID == "" {
		return nil
	}
	stripeSub, err := s.provider.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeBillingProvider, err, "fetch stripe subscription")
	}
	fallback := uuid.Nil
	if ref := strings.TrimSpace(session.ClientReferenceID); ref != "" {
		if id, err := uuid.Parse(ref); err == nil {
			fallback = id
		}
	}
	if stripeSub.Customer == nil && session.Customer != nil {
		stripeSub.Customer = session.Customer
	}
	return s.syncSubscription(ctx, stripeSub, fallback)
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, fallbackUser uuid.UUID) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}

		userID, metadataErr := subscriptions.UserIDFromMetadata(stripeSub.Metadata)
		if metadataErr != nil {
			switch {
			case stored != nil:
				userID = stored.UserID
			case fallbackUser != uuid.Nil:
				userID = fallbackUser
			default:
				return metadataErr
			}
		}

		var synced *models.Subscription
		if stored == nil {
			built, err := subscriptions.BuildSubscriptionFromStripe(stripeSub, userID)
			if err != nil {
				return err
			}
			if err := repo.Create(ctx, built); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
			}
			synced = built
		} else {
			if err := subscriptions.UpdateSubscriptionFromStripe(stored, stripeSub); err != nil {
				return err
			}
			if err := repo.Update(ctx, stored); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
			}
			synced = stored
		}

		if synced.StripeCustomerID != nil && *synced.StripeCustomerID != "" {
			if err := s.users.SetStripeCustomerIDWithTx(tx, synced.UserID, *synced.StripeCustomerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link stripe customer")
			}
		}

		if s.logg != nil {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"stripe_subscription_id": synced.StripeSubscriptionID,
				"user_id":                synced.UserID.String(),
				"status":                 synced.Status.String(),
			}), "subscription synced")
		}
		return nil
	})
}
