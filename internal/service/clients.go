package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
)

// Client is a tenant the scheduler and batches download reports for.
type Client struct {
	ID              int64     `json:"id"`
	TenantID        string    `json:"tenant_id"`
	TenantName      string    `json:"tenant_name"`
	TenantShortcode string    `json:"tenant_shortcode,omitempty"`
	IsActive        bool      `json:"is_active"`
	OnedriveFolder  string    `json:"onedrive_folder,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func clientFromRow(row db.Client) Client {
	return Client{
		ID:              row.ID,
		TenantID:        row.TenantID,
		TenantName:      row.TenantName,
		TenantShortcode: row.TenantShortcode.String,
		IsActive:        row.IsActive != 0,
		OnedriveFolder:  row.OnedriveFolder.String,
		CreatedAt:       time.Unix(row.CreatedAt, 0),
		UpdatedAt:       time.Unix(row.UpdatedAt, 0),
	}
}

type ClientInput struct {
	TenantID        string `json:"tenant_id"`
	TenantName      string `json:"tenant_name"`
	TenantShortcode string `json:"tenant_shortcode"`
	OnedriveFolder  string `json:"onedrive_folder"`
	// nil means active
	IsActive *bool `json:"is_active"`
}

// ClientUpdate changes only the fields that are set.
type ClientUpdate struct {
	TenantName      *string `json:"tenant_name"`
	TenantShortcode *string `json:"tenant_shortcode"`
	OnedriveFolder  *string `json:"onedrive_folder"`
	IsActive        *bool   `json:"is_active"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (s *Service) ListClients(ctx context.Context, activeOnly bool) ([]Client, error) {
	var rows []db.Client
	var err error
	if activeOnly {
		rows, err = s.qry.ListActiveClients(ctx)
	} else {
		rows, err = s.qry.ListClients(ctx)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, "ListClients", err)
		return nil, err
	}

	out := make([]Client, len(rows))
	for i, row := range rows {
		out[i] = clientFromRow(row)
	}
	return out, nil
}

func (s *Service) GetClient(ctx context.Context, id int64) (Client, error) {
	row, err := s.qry.GetClient(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, fmt.Errorf("%w: client %d", failure.ErrNotFound, id)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, "GetClient", err)
		return Client{}, err
	}
	return clientFromRow(row), nil
}

// clientByTenantID resolves a tenant id into its client row.
func (s *Service) clientByTenantID(ctx context.Context, tenantID string) (db.Client, error) {
	row, err := s.qry.GetClientByTenantID(ctx, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Client{}, fmt.Errorf("%w: tenant %q is not a registered client", failure.ErrNotFound, tenantID)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, "GetClientByTenantID", err)
		return db.Client{}, err
	}
	return row, nil
}

func (s *Service) CreateClient(ctx context.Context, input ClientInput) (Client, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.TenantName = strings.TrimSpace(input.TenantName)
	if input.TenantID == "" || input.TenantName == "" {
		return Client{}, fmt.Errorf("%w: tenant_id and tenant_name are required", failure.ErrInvalidInput)
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var created db.Client
	err := db.WithTx(ctx, s.db, func(qry *db.Queries) error {
		_, err := qry.GetClientByTenantID(ctx, input.TenantID)
		if err == nil {
			return fmt.Errorf("%w: client with tenant_id %q already exists", failure.ErrInvalidInput, input.TenantID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			s.tel.ReportBroken(report_db_query, "GetClientByTenantID", err)
			return err
		}

		now := s.clock.Now().Unix()
		created, err = qry.CreateClient(ctx, db.CreateClientParams{
			TenantID:        input.TenantID,
			TenantName:      input.TenantName,
			TenantShortcode: nullString(strings.TrimSpace(input.TenantShortcode)),
			IsActive:        boolInt(active),
			OnedriveFolder:  nullString(input.OnedriveFolder),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, "CreateClient", err)
		}
		return err
	})
	if err != nil {
		return Client{}, err
	}
	return clientFromRow(created), nil
}

func (s *Service) UpdateClient(ctx context.Context, id int64, update ClientUpdate) (Client, error) {
	if update.TenantName != nil && strings.TrimSpace(*update.TenantName) == "" {
		return Client{}, fmt.Errorf("%w: tenant_name cannot be empty", failure.ErrInvalidInput)
	}

	var updated db.Client
	err := db.WithTx(ctx, s.db, func(qry *db.Queries) error {
		row, err := qry.GetClient(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: client %d", failure.ErrNotFound, id)
		}
		if err != nil {
			s.tel.ReportBroken(report_db_query, "GetClient", err)
			return err
		}

		params := db.UpdateClientParams{
			ID:              id,
			TenantName:      row.TenantName,
			TenantShortcode: row.TenantShortcode,
			IsActive:        row.IsActive,
			OnedriveFolder:  row.OnedriveFolder,
			UpdatedAt:       s.clock.Now().Unix(),
		}
		if update.TenantName != nil {
			params.TenantName = strings.TrimSpace(*update.TenantName)
		}
		if update.TenantShortcode != nil {
			params.TenantShortcode = nullString(strings.TrimSpace(*update.TenantShortcode))
		}
		if update.OnedriveFolder != nil {
			params.OnedriveFolder = nullString(*update.OnedriveFolder)
		}
		if update.IsActive != nil {
			params.IsActive = boolInt(*update.IsActive)
		}

		updated, err = qry.UpdateClient(ctx, params)
		if err != nil {
			s.tel.ReportBroken(report_db_query, "UpdateClient", err)
		}
		return err
	})
	if err != nil {
		return Client{}, err
	}
	return clientFromRow(updated), nil
}

// DeleteClient deactivates the client, its download history stays.
func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	n, err := s.qry.DeactivateClient(ctx, db.DeactivateClientParams{
		UpdatedAt: s.clock.Now().Unix(),
		ID:        id,
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, "DeactivateClient", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: client %d", failure.ErrNotFound, id)
	}
	return nil
}
