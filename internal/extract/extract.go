// Package extract reads a job's source into a dataset.Table.
package extract

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
)

// maxBody caps how much of an HTTP response is buffered.
const maxBody = 512 << 20

// TokenSource supplies bearer tokens for the REST export API.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Options struct {
	// AuthScheme prefixes the token in the Authorization header.
	AuthScheme string
	// DefaultEntity is exported when the job names none.
	DefaultEntity string
}

type Extractor struct {
	tokens TokenSource
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func New(tokens TokenSource, opts Options, logger zerolog.Logger) *Extractor {
	if opts.AuthScheme == "" {
		opts.AuthScheme = "Zoho-oauthtoken"
	}
	return &Extractor{
		tokens: tokens,
		opts:   opts,
		logger: logger.With().Str("component", "extract").Logger(),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to compute the export date window.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract reads the job's source through h.
func (e *Extractor) Extract(ctx context.Context, job models.Job, h connector.Handle) (*dataset.Table, error) {
	switch src := h.(type) {
	case *connector.SQLHandle:
		return e.fromSQL(ctx, job, src)
	case *connector.HTTPHandle:
		switch src.Kind() {
		case connector.SAPOData:
			return e.fromOData(ctx, job, src)
		case connector.OAuthREST:
			return e.fromExport(ctx, job, src)
		}
	}
	return nil, etlerr.New(etlerr.ErrUnsupportedType, "cannot extract from %s", h.Kind())
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConnection, err, "read response body")
	}
	return body, nil
}

// checkStatus maps HTTP failures onto error kinds: rejected credentials are
// connection errors, anything else the server refuses is a protocol error.
func checkStatus(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return etlerr.New(etlerr.ErrConnection, "%s: %s", what, resp.Status)
	case resp.StatusCode >= 400:
		return etlerr.New(etlerr.ErrProtocol, "%s: %s", what, resp.Status)
	}
	return nil
}
