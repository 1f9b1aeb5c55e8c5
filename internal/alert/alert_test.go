package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/logging"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/storage"
)

func TestEvaluate(t *testing.T) {
	assert.False(t, Evaluate(models.SeverityMedium, models.ThresholdCritical))
	assert.True(t, Evaluate(models.SeverityCritical, models.ThresholdAll))
	assert.True(t, Evaluate(models.SeverityHigh, models.ThresholdHighCritical))

	cases := []struct {
		sev       models.Severity
		threshold models.AlertThreshold
		want      bool
	}{
		{models.SeverityLow, models.ThresholdAll, true},
		{models.SeverityMedium, models.ThresholdHighCritical, false},
		{models.SeverityCritical, models.ThresholdHighCritical, true},
		{models.SeverityHigh, models.ThresholdCritical, false},
		{models.SeverityCritical, models.ThresholdCritical, true},
		{models.SeverityCritical, "loud", false},
		{"bogus", models.ThresholdAll, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Evaluate(tc.sev, tc.threshold), "%s/%s", tc.sev, tc.threshold)
	}
}

func TestParseThreshold(t *testing.T) {
	got, err := ParseThreshold(" High_Critical ")
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdHighCritical, got)

	_, err = ParseThreshold("medium")
	assert.ErrorIs(t, err, ErrUnknownThreshold)
}

func TestMigrateLegacy(t *testing.T) {
	cases := []struct {
		in   []string
		want models.AlertThreshold
	}{
		{nil, models.ThresholdCritical},
		{[]string{"critical"}, models.ThresholdCritical},
		{[]string{"critical", "high"}, models.ThresholdHighCritical},
		{[]string{"critical", "high", "medium"}, models.ThresholdAll},
		{[]string{"low"}, models.ThresholdAll},
	}
	for _, tc := range cases {
		got, err := MigrateLegacy(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}

	_, err := MigrateLegacy([]string{"urgent"})
	assert.ErrorIs(t, err, ErrUnknownThreshold)
}

type policyMap map[string]models.AlertPolicy

func (p policyMap) GetAlertPolicy(_ context.Context, userID string) (*models.AlertPolicy, error) {
	pol, ok := p[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &pol, nil
}

type recordingNotifier struct{ got []Notification }

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return nil
}

func TestDispatcher(t *testing.T) {
	brand := &models.Brand{ID: "b1", OwnerID: "u1", Name: "Acme"}
	high := &models.Threat{Domain: "acme-login.com", Severity: models.SeverityHigh}
	medium := &models.Threat{Domain: "acme.xyz", Severity: models.SeverityMedium}

	email, hook := &recordingNotifier{}, &recordingNotifier{}
	d := &Dispatcher{
		Policies: policyMap{"u1": {UserID: "u1", Threshold: models.ThresholdHighCritical, WebhookEnabled: true}},
		Email:    email,
		Webhook:  hook,
	}

	fired, err := d.Dispatch(context.Background(), brand, high, "created")
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, hook.got, 1)
	assert.Empty(t, email.got)

	fired, err = d.Dispatch(context.Background(), brand, medium, "created")
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Len(t, hook.got, 1)
}

func TestDispatcher_DefaultPolicy(t *testing.T) {
	email := &recordingNotifier{}
	d := &Dispatcher{
		Policies: policyMap{},
		Email:    email,
		Webhook:  &LogNotifier{Channel: "webhook", Logger: logging.Discard()},
	}
	fired, err := d.Dispatch(context.Background(),
		&models.Brand{ID: "b1", OwnerID: "nobody"},
		&models.Threat{Domain: "acme.co", Severity: models.SeverityCritical}, "escalated")
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, email.got, 1)
	assert.Equal(t, "escalated", email.got[0].Reason)
}

func TestWebhookNotifier(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), Notification{
		UserID: "u1",
		Threat: &models.Threat{Domain: "acme-login.com", Severity: models.SeverityCritical},
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-login.com", got.Threat.Domain)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	err = NewWebhookNotifier(failing.URL, time.Second).Notify(context.Background(), Notification{Threat: &models.Threat{}})
	assert.Error(t, err)
}
