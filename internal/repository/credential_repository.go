package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stanstork/stratum-etl/internal/models"
)

type CredentialRepository interface {
	// ListByType returns every credential whose db_type matches case-insensitively,
	// in id order.
	ListByType(ctx context.Context, dbType string) ([]models.Credential, error)
}

type credentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) ListByType(ctx context.Context, dbType string) ([]models.Credential, error) {
	query := r.db.Rebind(`
		SELECT id, db_type, db_role, host, port, db_name, username, password
		FROM database_cred
		WHERE LOWER(db_type) = LOWER(?)
		ORDER BY id
	`)

	creds := []models.Credential{}
	if err := r.db.SelectContext(ctx, &creds, query, dbType); err != nil {
		return nil, errors.Wrapf(err, "list credentials for %q", dbType)
	}
	return creds, nil
}
