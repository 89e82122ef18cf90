// Package credentials picks the credential record a job uses for one side of
// a data movement.
package credentials

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/metrics"
	"github.com/stanstork/stratum-etl/internal/models"
)

// Store lists credentials by database type, ordered by id.
type Store interface {
	ListByType(ctx context.Context, dbType string) ([]models.Credential, error)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9_]`)

// roleKeywords are tried in order when no role hint matched.
var roleKeywords = []string{"source", "target", "destination"}

type Resolver struct {
	store  Store
	strict bool
	logger zerolog.Logger
}

// NewResolver returns a resolver. In strict mode several records with no
// role decision fail with ErrAmbiguousCredential instead of falling back to
// the lowest id.
func NewResolver(store Store, strict bool, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		strict: strict,
		logger: logger.With().Str("component", "credentials").Logger(),
	}
}

// Resolve returns the credential for dbType. The choice depends only on the
// set of records, never on the order the store returned them in.
func (r *Resolver) Resolve(ctx context.Context, dbType, roleHint string) (models.Credential, error) {
	creds, err := r.store.ListByType(ctx, dbType)
	if err != nil {
		return models.Credential{}, etlerr.Wrap(etlerr.ErrConfig, err, "load credentials for %q", dbType)
	}
	if len(creds) == 0 {
		return models.Credential{}, etlerr.New(etlerr.ErrNotFound, "no credentials for db_type %q", dbType)
	}
	slices.SortFunc(creds, func(a, b models.Credential) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if len(creds) == 1 {
		return creds[0], nil
	}

	for _, candidate := range hintCandidates(roleHint) {
		for _, c := range creds {
			if strings.EqualFold(strings.TrimSpace(c.Role), candidate) {
				return c, nil
			}
		}
	}

	for _, kw := range roleKeywords {
		for _, c := range creds {
			if strings.Contains(strings.ToLower(c.Role), kw) {
				return c, nil
			}
		}
	}

	roles := make([]string, 0, len(creds))
	for _, c := range creds {
		roles = append(roles, c.Role)
	}
	if r.strict {
		return models.Credential{}, etlerr.New(etlerr.ErrAmbiguousCredential,
			"%d credentials for db_type %q with roles %v", len(creds), dbType, roles)
	}

	metrics.AmbiguousCredentials.WithLabelValues(strings.ToLower(dbType)).Inc()
	r.logger.Warn().
		Str("db_type", dbType).
		Strs("roles", roles).
		Int64("chosen_id", creds[0].ID).
		Msg("Ambiguous credentials, using lowest id")
	return creds[0], nil
}

// hintCandidates derives the role names a hint may be stored under.
func hintCandidates(hint string) []string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(hint)), "")
	if slug == "" {
		return nil
	}
	return []string{
		slug,
		"source_" + slug,
		slug + "_source",
		"source_" + strings.ReplaceAll(slug, "_", ""),
	}
}

