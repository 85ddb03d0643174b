package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

// AccessChecker answers whether a user currently holds a usable subscription.
type AccessChecker struct {
	repo Repository
}

func NewAccessChecker(repo Repository) *AccessChecker {
	return &AccessChecker{repo: repo}
}

// ActiveForUser returns the user's subscription when it is active and its
// period has not ended at now. Anything else is SubscriptionExpired.
func (a *AccessChecker) ActiveForUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	sub, err := a.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil || !sub.GrantsAccessAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "an active subscription is required")
	}
	return sub, nil
}
