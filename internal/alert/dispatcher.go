package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/storage"
)

// PolicyStore reads alert policies.
type PolicyStore interface {
	GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error)
}

// Dispatcher loads the brand owner's policy and notifies each enabled
// channel when Evaluate passes. A user without a saved policy gets
// models.DefaultAlertPolicy.
type Dispatcher struct {
	Policies PolicyStore
	Email    Notifier
	Webhook  Notifier
	Logger   logrus.FieldLogger
}

// Dispatch returns whether the threat passed the policy, and any delivery
// errors joined together.
func (d *Dispatcher) Dispatch(ctx context.Context, brand *models.Brand, t *models.Threat, reason string) (bool, error) {
	policy, err := d.Policies.GetAlertPolicy(ctx, brand.OwnerID)
	if errors.Is(err, storage.ErrNotFound) {
		def := models.DefaultAlertPolicy(brand.OwnerID)
		policy, err = &def, nil
	}
	if err != nil {
		return false, fmt.Errorf("load alert policy: %w", err)
	}

	if !Evaluate(t.Severity, policy.Threshold) {
		return false, nil
	}

	n := Notification{
		UserID:  brand.OwnerID,
		Brand:   brand.Name,
		BrandID: brand.ID,
		Threat:  t,
		Reason:  reason,
	}

	var errs []error
	if policy.EmailEnabled && d.Email != nil {
		if err := d.Email.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if policy.WebhookEnabled && d.Webhook != nil {
		if err := d.Webhook.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("webhook: %w", err))
		}
	}
	return true, errors.Join(errs...)
}
