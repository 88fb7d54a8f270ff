// Package session persists the authenticated browser session, encrypted at rest, in the single
// xero_sessions row.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"xeroreports/internal/browser"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
)

const (
	report_store_load   = "store.load"
	report_store_status = "store.status"
)

const DefaultExpiry = 14 * 24 * time.Hour

// Record is a decrypted session.
type Record struct {
	Cookies   []browser.Cookie
	Tokens    map[string]string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

type Status struct {
	HasSession  bool       `json:"has_session"`
	IsValid     bool       `json:"is_valid"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	CookieCount int        `json:"cookie_count"`
}

type Store struct {
	qry           *db.Queries
	cipher        Cipher
	clock         chrono.API
	defaultExpiry time.Duration
	tel           telemetry.API
}

func NewStore(qry *db.Queries, cipher Cipher, clock chrono.API, defaultExpiry time.Duration, tel telemetry.API) Store {
	if defaultExpiry <= 0 {
		defaultExpiry = DefaultExpiry
	}
	return Store{
		qry:           qry,
		cipher:        cipher,
		clock:         clock,
		defaultExpiry: defaultExpiry,
		tel:           telemetry.NewScopedAPI("session", tel),
	}
}

// Save replaces the stored session. A nil expiry defaults to now plus the default expiry.
func (s Store) Save(ctx context.Context, cookies []browser.Cookie, tokens map[string]string, expiry *time.Time) error {
	serialized, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	sealedCookies, err := s.cipher.Encrypt(serialized)
	if err != nil {
		return fmt.Errorf("encrypt cookies: %w", err)
	}

	var sealedTokens sql.NullString
	if len(tokens) > 0 {
		serialized, err := json.Marshal(tokens)
		if err != nil {
			return err
		}
		sealed, err := s.cipher.Encrypt(serialized)
		if err != nil {
			return fmt.Errorf("encrypt tokens: %w", err)
		}
		sealedTokens = sql.NullString{String: sealed, Valid: true}
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.defaultExpiry)
	if expiry != nil {
		expiresAt = *expiry
	}

	return s.qry.UpsertSession(ctx, db.UpsertSessionParams{
		Cookies:     sealedCookies,
		OauthTokens: sealedTokens,
		ExpiresAt:   sql.NullInt64{Int64: expiresAt.Unix(), Valid: true},
		UpdatedAt:   now.Unix(),
	})
}

// Load returns failure.ErrSessionAbsent when nothing is stored and failure.ErrSessionCorrupt
// when the row cannot be decrypted or decoded.
func (s Store) Load(ctx context.Context) (Record, error) {
	row, err := s.qry.GetSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, failure.ErrSessionAbsent
	}
	if err != nil {
		return Record{}, err
	}

	record, err := s.decode(row)
	if err != nil {
		s.tel.ReportWarning(report_store_load, err)
		return Record{}, fmt.Errorf("%w: %w", failure.ErrSessionCorrupt, err)
	}
	return record, nil
}

func (s Store) decode(row db.XeroSession) (Record, error) {
	record := Record{UpdatedAt: time.Unix(row.UpdatedAt, 0)}
	if row.ExpiresAt.Valid {
		expiresAt := time.Unix(row.ExpiresAt.Int64, 0)
		record.ExpiresAt = &expiresAt
	}

	plaintext, err := s.cipher.Decrypt(row.Cookies)
	if err != nil {
		return Record{}, fmt.Errorf("decrypt cookies: %w", err)
	}
	err = json.Unmarshal(plaintext, &record.Cookies)
	if err != nil {
		return Record{}, fmt.Errorf("decode cookies: %w", err)
	}

	if row.OauthTokens.Valid {
		plaintext, err := s.cipher.Decrypt(row.OauthTokens.String)
		if err != nil {
			return Record{}, fmt.Errorf("decrypt tokens: %w", err)
		}
		err = json.Unmarshal(plaintext, &record.Tokens)
		if err != nil {
			return Record{}, fmt.Errorf("decode tokens: %w", err)
		}
	}
	return record, nil
}

func (s Store) expired(expiresAt *time.Time) bool {
	return expiresAt != nil && !s.clock.Now().Before(*expiresAt)
}

// IsValid is false when nothing is stored or the stored expiry has passed. A row without
// an expiry never expires.
func (s Store) IsValid(ctx context.Context) (bool, error) {
	row, err := s.qry.GetSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !row.ExpiresAt.Valid {
		return true, nil
	}
	expiresAt := time.Unix(row.ExpiresAt.Int64, 0)
	return !s.expired(&expiresAt), nil
}

// Status never fails on an undecryptable row, it reports it as present but invalid.
func (s Store) Status(ctx context.Context) (Status, error) {
	row, err := s.qry.GetSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	updatedAt := time.Unix(row.UpdatedAt, 0)
	status := Status{HasSession: true, UpdatedAt: &updatedAt}

	record, err := s.decode(row)
	if err != nil {
		s.tel.ReportWarning(report_store_status, err)
		if row.ExpiresAt.Valid {
			expiresAt := time.Unix(row.ExpiresAt.Int64, 0)
			status.ExpiresAt = &expiresAt
		}
		return status, nil
	}

	status.ExpiresAt = record.ExpiresAt
	status.CookieCount = len(record.Cookies)
	status.IsValid = !s.expired(record.ExpiresAt)
	return status, nil
}

// Delete removes the stored session, deleting nothing is not an error.
func (s Store) Delete(ctx context.Context) error {
	_, err := s.qry.DeleteSession(ctx)
	return err
}
