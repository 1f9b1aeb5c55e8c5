package models

// AlertThreshold is the minimum severity a user wants to be alerted about.
type AlertThreshold string

const (
	ThresholdAll          AlertThreshold = "all"
	ThresholdHighCritical AlertThreshold = "high_critical"
	ThresholdCritical     AlertThreshold = "critical"
)

// AlertPolicy is a user's alerting configuration.
type AlertPolicy struct {
	UserID         string         `json:"user_id"`
	Threshold      AlertThreshold `json:"threshold"`
	EmailEnabled   bool           `json:"email_enabled"`
	WebhookEnabled bool           `json:"webhook_enabled"`
}

// DefaultAlertPolicy is used when a user has never saved settings.
func DefaultAlertPolicy(userID string) AlertPolicy {
	return AlertPolicy{
		UserID:       userID,
		Threshold:    ThresholdHighCritical,
		EmailEnabled: true,
	}
}
