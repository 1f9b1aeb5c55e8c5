package threat

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
)

// transitions lists the analyst moves allowed out of each live status.
var transitions = map[models.ThreatStatus][]models.ThreatStatus{
	models.ThreatNew:               {models.ThreatReviewing, models.ThreatResolved, models.ThreatFalsePositive},
	models.ThreatReviewing:         {models.ThreatTakedownRequested, models.ThreatResolved, models.ThreatFalsePositive},
	models.ThreatTakedownRequested: {models.ThreatResolved, models.ThreatFalsePositive},
}

// CanTransition reports whether an analyst may move a threat from one status
// to another. Terminal statuses have no outgoing transitions; use Reopen.
func CanTransition(from, to models.ThreatStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SetStatus applies an analyst status change.
func (s *Service) SetStatus(ctx context.Context, id string, to models.ThreatStatus) (*models.Threat, error) {
	return s.mutate(ctx, id, func(cur *models.Threat) error {
		if cur.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, cur.ID, cur.Status)
		}
		if !CanTransition(cur.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
		}
		cur.Status = to
		return nil
	})
}

// Reopen moves a resolved or false_positive threat back to reviewing.
func (s *Service) Reopen(ctx context.Context, id string) (*models.Threat, error) {
	return s.mutate(ctx, id, func(cur *models.Threat) error {
		if !cur.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s, not terminal", ErrInvalidTransition, cur.ID, cur.Status)
		}
		cur.Status = models.ThreatReviewing
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, change func(cur *models.Threat) error) (*models.Threat, error) {
	t, err := s.store.GetThreat(ctx, id)
	if err != nil {
		return nil, err
	}
	key := lockKey(t.BrandID, t.Domain)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var out *models.Threat
	var from models.ThreatStatus
	err = s.store.UpdateThreatByKey(ctx, t.BrandID, t.Domain, func(cur *models.Threat) (*models.Threat, error) {
		if cur == nil || cur.ID != id {
			return nil, fmt.Errorf("threat %s changed while updating", id)
		}
		from = cur.Status
		if err := change(cur); err != nil {
			return nil, err
		}
		cur.UpdatedAt = s.now()
		out = cur
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"threat_id": id,
			"domain":    out.Domain,
			"from":      from,
			"to":        out.Status,
		}).Info("threat status changed")
	}
	return out, nil
}
