package connect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

// Section is one independently fetched slice of the diagnostic report. A
// failed sub-fetch degrades to an inline error instead of failing the report.
type Section struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// DiagnosticReport helps a caller self-diagnose sync-delay issues, which in
// practice are almost always a timezone skew between the application's notion
// of "today" and the provider's.
type DiagnosticReport struct {
	ServerTimeUTC       time.Time `json:"serverTimeUtc"`
	AccountTimezone     string    `json:"accountTimezone"`
	OffsetFromUTCMillis int64     `json:"offsetFromUtcMillis"`
	ProviderToday       string    `json:"providerToday"`
	ClientTimezone      string    `json:"clientTimezone"`
	TimezoneMismatch    string    `json:"timezoneMismatch,omitempty"`

	Activity Section `json:"activity"`
	Weight   Section `json:"weight"`
	Devices  Section `json:"devices"`
}

// Diagnose fetches the account profile, derives the provider's local "today"
// from server UTC time plus the account's UTC offset, and fans out the three
// data fetches concurrently, joining all of them before responding.
func (m *Manager) Diagnose(ctx context.Context, assertion, clientTimezone string) (DiagnosticReport, error) {
	userID, err := m.identity.Verify(ctx, assertion)
	if err != nil {
		return DiagnosticReport{}, fmt.Errorf("verifying identity: %w", err)
	}

	ctx = slogctx.With(ctx, "user_id", userID)

	cred, err := m.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return DiagnosticReport{}, serviceerr.ErrNotConnected
		}

		return DiagnosticReport{}, fmt.Errorf("reading credential: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	if !cred.Connected() {
		return DiagnosticReport{}, serviceerr.ErrNotConnected
	}

	profile, err := m.provider.Profile(ctx, cred.AccessToken)
	if err != nil {
		return DiagnosticReport{}, fmt.Errorf("fetching account profile: %w", err)
	}

	serverNow := m.now().UTC()
	// The provider scopes daily data to the account's local calendar day, so
	// "today" is server UTC time shifted by the account's offset. The caller's
	// timezone plays no part in this.
	providerToday := serverNow.
		Add(time.Duration(profile.OffsetFromUTCMillis) * time.Millisecond).
		Format("2006-01-02")

	report := DiagnosticReport{
		ServerTimeUTC:       serverNow,
		AccountTimezone:     profile.Timezone,
		OffsetFromUTCMillis: profile.OffsetFromUTCMillis,
		ProviderToday:       providerToday,
		ClientTimezone:      clientTimezone,
	}

	if clientTimezone != "" && clientTimezone != profile.Timezone {
		report.TimezoneMismatch = fmt.Sprintf(
			"client timezone %q differs from the tracker account timezone %q; daily data is scoped to the account timezone and may appear to be missing",
			clientTimezone, profile.Timezone)
	}

	var wg sync.WaitGroup

	wg.Go(func() {
		report.Activity = fetchSection(func() (json.RawMessage, error) {
			return m.provider.DailyActivity(ctx, cred.AccessToken, providerToday)
		})
	})

	wg.Go(func() {
		report.Weight = fetchSection(func() (json.RawMessage, error) {
			return m.provider.WeightLogs(ctx, cred.AccessToken, providerToday)
		})
	})

	wg.Go(func() {
		report.Devices = fetchSection(func() (json.RawMessage, error) {
			return m.provider.Devices(ctx, cred.AccessToken)
		})
	})

	wg.Wait()

	return report, nil
}

func fetchSection(fetch func() (json.RawMessage, error)) Section {
	data, err := fetch()
	if err != nil {
		return Section{Error: err.Error()}
	}

	return Section{Data: data}
}
