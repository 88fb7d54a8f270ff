package browser

import (
	"context"
	"encoding/json"
	"testing"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	table := []struct {
		input    string
		expected Selector
	}{
		{`[data-testid="org-switcher"]`, CSS(`[data-testid="org-switcher"]`)},
		{`xpath://button[normalize-space()="Export"]`, XPath(`//button[normalize-space()="Export"]`)},
		{`  xpath: //a  `, XPath(`//a`)},
	}
	for _, test := range table {
		sel := ParseSelector(test.input)
		require.Equal(t, test.expected, sel)
		require.Equal(t, sel, ParseSelector(sel.String()))
	}
}

func TestSelectorJSON(t *testing.T) {
	var out []Selector
	err := json.Unmarshal([]byte(`["button.export", "xpath://button"]`), &out)
	require.NoError(t, err)
	require.Equal(t, []Selector{CSS("button.export"), XPath("//button")}, out)
}

func TestCookieConversion(t *testing.T) {
	persistent := cookieFromCDP(&network.Cookie{
		Name:     "XERO_SESSION",
		Value:    "abc",
		Domain:   ".xero.com",
		Path:     "/",
		Expires:  1767225600,
		HTTPOnly: true,
		Secure:   true,
		SameSite: network.CookieSameSiteLax,
	})
	require.Equal(t, Cookie{
		Name:     "XERO_SESSION",
		Value:    "abc",
		Domain:   ".xero.com",
		Path:     "/",
		Expires:  1767225600,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	}, persistent)

	param := cookieToCDP(persistent)
	require.Equal(t, "XERO_SESSION", param.Name)
	require.Equal(t, network.CookieSameSiteLax, param.SameSite)
	require.NotNil(t, param.Expires)
	require.Equal(t, int64(1767225600), param.Expires.Time().Unix())

	session := cookieFromCDP(&network.Cookie{Name: "s", Value: "v", Session: true, Expires: -1})
	require.Zero(t, session.Expires)
	require.Nil(t, cookieToCDP(session).Expires)
}

func TestRuntimeNotStarted(t *testing.T) {
	r := NewRuntime(Options{}, &telemetry.Recorder{})

	_, err := r.Page()
	require.ErrorIs(t, err, failure.ErrNotStarted)
	require.Equal(t, State{}, r.State())

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}

func TestRuntimeLaunchFailure(t *testing.T) {
	r := NewRuntime(Options{ExecPath: "/nonexistent/chrome"}, &telemetry.Recorder{})

	err := r.Start(context.Background(), true)
	require.ErrorIs(t, err, failure.ErrLaunch)
	require.False(t, r.State().Initialized)
}
