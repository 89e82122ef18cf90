package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/repository"
	"github.com/stanstork/stratum-etl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	creds []models.Credential
	err   error
}

func (m *memStore) ListByType(_ context.Context, _ string) ([]models.Credential, error) {
	out := make([]models.Credential, len(m.creds))
	copy(out, m.creds)
	return out, m.err
}

func cred(id int64, role string) models.Credential {
	return models.Credential{ID: id, DBType: "mysql_wh", Role: role, Host: "h", Port: 3306, DBName: "wh", Username: "etl"}
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		creds  []models.Credential
		hint   string
		wantID int64
	}{
		{"single record", []models.Credential{cred(7, "anything")}, "x", 7},
		{"exact slug", []models.Credential{cred(1, "target"), cred(2, "chitfunds")}, "Chit Funds!", 2},
		{"slug keeps underscores", []models.Credential{cred(1, "target"), cred(2, "chit_funds")}, "chit_funds", 2},
		{"source prefix", []models.Credential{cred(1, "other"), cred(2, "SOURCE_VMS")}, "vms", 2},
		{"source suffix", []models.Credential{cred(1, "other"), cred(2, "vms_source")}, "vms", 2},
		{"source prefix without underscores", []models.Credential{cred(1, "other"), cred(2, "source_chitfunds")}, "chit_funds", 2},
		{"slug beats prefix", []models.Credential{cred(1, "source_vms"), cred(2, "vms")}, "vms", 2},
		{"source keyword", []models.Credential{cred(1, "reporting_target"), cred(2, "main_source")}, "unmatched", 2},
		{"target keyword", []models.Credential{cred(1, "reader"), cred(2, "dw_target")}, "", 2},
		{"destination keyword", []models.Credential{cred(1, "reader"), cred(2, "destination")}, "", 2},
		{"target hint", []models.Credential{cred(1, "source"), cred(2, "target")}, "target", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&memStore{creds: tt.creds}, false, zerolog.Nop())
			got, err := r.Resolve(context.Background(), "mysql_wh", tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolve_IndependentOfInsertionOrder(t *testing.T) {
	sets := [][]models.Credential{
		{cred(3, "reader"), cred(1, "writer"), cred(2, "auditor")},
		{cred(1, "writer"), cred(2, "auditor"), cred(3, "reader")},
		{cred(2, "auditor"), cred(3, "reader"), cred(1, "writer")},
	}
	for _, set := range sets {
		r := NewResolver(&memStore{creds: set}, false, zerolog.Nop())
		got, err := r.Resolve(context.Background(), "mysql_wh", "nobody")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ID)
	}

	keyword := [][]models.Credential{
		{cred(5, "main_source"), cred(4, "alt_source"), cred(6, "target")},
		{cred(6, "target"), cred(5, "main_source"), cred(4, "alt_source")},
	}
	for _, set := range keyword {
		r := NewResolver(&memStore{creds: set}, false, zerolog.Nop())
		got, err := r.Resolve(context.Background(), "mysql_wh", "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.ID)
	}
}

func TestResolve_StrictModeRejectsAmbiguity(t *testing.T) {
	r := NewResolver(&memStore{creds: []models.Credential{cred(1, "reader"), cred(2, "writer")}}, true, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "mysql_wh", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, etlerr.ErrAmbiguousCredential))
	assert.True(t, errors.Is(err, etlerr.ErrConfig))
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&memStore{}, false, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "oracle", "x")
	assert.True(t, errors.Is(err, etlerr.ErrNotFound))
}

func TestResolve_StoreError(t *testing.T) {
	r := NewResolver(&memStore{err: errors.New("db down")}, false, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "mysql", "x")
	assert.True(t, errors.Is(err, etlerr.ErrConfig))
}

func TestResolve_AgainstMetadataStore(t *testing.T) {
	db := testutil.NewMetadataDB(t)
	testutil.SeedCredential(t, db, 2, "MYSQL_WH", "target", "dw", 3306, "wh", "loader", "s2")
	testutil.SeedCredential(t, db, 1, "mysql_wh", "source_chitfunds", "app", 3306, "chit", "reader", "s1")
	testutil.SeedCredential(t, db, 3, "postgres", "target", "pg", 5432, "dw", "loader", "s3")

	r := NewResolver(repository.NewCredentialRepository(db), true, zerolog.Nop())

	src, err := r.Resolve(context.Background(), "mysql_wh", "Chit Funds")
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.ID)

	tgt, err := r.Resolve(context.Background(), "mysql_wh", "target")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tgt.ID)
	assert.Equal(t, "s2", tgt.Password)
}
