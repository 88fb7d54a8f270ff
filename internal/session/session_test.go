package session

import (
	"context"
	"strings"
	"testing"
	"time"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
	"xeroreports/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", 32)

var now = time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

func setup(t testing.TB, secret string) (Store, *db.Queries, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "internal/session",
		DbSchema: db.Schema,
	})
	cipher, err := NewCipher(secret)
	require.NoError(t, err)
	qry := db.New(res.DB)
	store := NewStore(qry, cipher, chrono.Fixed{At: now}, 0, &telemetry.Recorder{})
	return store, qry, cleanup
}

func testCookies() []browser.Cookie {
	return []browser.Cookie{
		{
			Name:     "XERO_SESSION",
			Value:    "abc.def",
			Domain:   ".xero.com",
			Path:     "/",
			Expires:  1767225600.5,
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Lax",
		},
		{Name: "tz", Value: "Australia/Sydney", Domain: "go.xero.com", Path: "/", Expires: -1},
	}
}

func TestCipher(t *testing.T) {
	_, err := NewCipher("short")
	require.Error(t, err)

	c, err := NewCipher(testSecret)
	require.NoError(t, err)

	first, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	second, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)
	require.NotEqual(t, first, second, "nonces must differ")
	require.NotContains(t, first, "payload")

	plaintext, err := c.Decrypt(first)
	require.NoError(t, err)
	require.Equal(t, "payload", string(plaintext))

	other, err := NewCipher(strings.Repeat("z", 32))
	require.NoError(t, err)
	_, err = other.Decrypt(first)
	require.Error(t, err)

	_, err = c.Decrypt("not base64!")
	require.Error(t, err)
	_, err = c.Decrypt("AAAA")
	require.Error(t, err)
}

func TestCipherFromEnv(t *testing.T) {
	t.Setenv(ENV_SESSION_KEY, "")
	_, err := NewCipherFromEnv()
	require.Error(t, err)

	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(secret), MIN_SECRET_LENGTH)

	t.Setenv(ENV_SESSION_KEY, secret)
	_, err = NewCipherFromEnv()
	require.NoError(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, qry, cleanup := setup(t, testSecret)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionAbsent)

	err = store.Save(ctx, testCookies(), map[string]string{"access_token": "tok"}, nil)
	require.NoError(t, err)

	record, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(testCookies(), record.Cookies); diff != "" {
		t.Fatalf("cookies differ (-want +got):\n%s", diff)
	}
	require.Equal(t, map[string]string{"access_token": "tok"}, record.Tokens)
	require.NotNil(t, record.ExpiresAt)
	require.Equal(t, now.Add(DefaultExpiry).Unix(), record.ExpiresAt.Unix())
	require.Equal(t, now.Unix(), record.UpdatedAt.Unix())

	row, err := qry.GetSession(ctx)
	require.NoError(t, err)
	require.NotContains(t, row.Cookies, "XERO_SESSION")
	require.NotContains(t, row.OauthTokens.String, "tok")
}

func TestLoadCorrupt(t *testing.T) {
	store, qry, cleanup := setup(t, testSecret)
	defer cleanup()
	ctx := context.Background()

	err := qry.UpsertSession(ctx, db.UpsertSessionParams{Cookies: "garbage", UpdatedAt: now.Unix()})
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionCorrupt)

	status, err := store.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.HasSession)
	require.False(t, status.IsValid)
}

func TestLoadWithWrongKey(t *testing.T) {
	store, qry, cleanup := setup(t, testSecret)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testCookies(), nil, nil))

	cipher, err := NewCipher(strings.Repeat("x", 40))
	require.NoError(t, err)
	rotated := NewStore(qry, cipher, chrono.Fixed{At: now}, 0, &telemetry.Recorder{})

	_, err = rotated.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionCorrupt)
}

func TestValidity(t *testing.T) {
	store, qry, cleanup := setup(t, testSecret)
	defer cleanup()
	ctx := context.Background()

	valid, err := store.IsValid(ctx)
	require.NoError(t, err)
	require.False(t, valid)

	status, err := store.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, Status{}, status)

	past := now.Add(-time.Hour)
	require.NoError(t, store.Save(ctx, testCookies(), nil, &past))
	valid, err = store.IsValid(ctx)
	require.NoError(t, err)
	require.False(t, valid)

	future := now.Add(time.Hour)
	require.NoError(t, store.Save(ctx, testCookies(), nil, &future))
	valid, err = store.IsValid(ctx)
	require.NoError(t, err)
	require.True(t, valid)

	status, err = store.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.HasSession)
	require.True(t, status.IsValid)
	require.Equal(t, 2, status.CookieCount)

	sealed, err := store.cipher.Encrypt([]byte("[]"))
	require.NoError(t, err)
	require.NoError(t, qry.UpsertSession(ctx, db.UpsertSessionParams{Cookies: sealed, UpdatedAt: now.Unix()}))
	valid, err = store.IsValid(ctx)
	require.NoError(t, err)
	require.True(t, valid, "a session without expiry does not expire")

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, failure.ErrSessionAbsent)
}
