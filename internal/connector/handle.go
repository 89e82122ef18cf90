package connector

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/stanstork/stratum-etl/internal/dialect"
)

// Handle is an open connection to a source or target system.
type Handle interface {
	Kind() Kind
	// Identity names the physical system (kind, host, database) without secrets.
	Identity() string
	Close() error
}

// SQLHandle wraps a pooled database connection and its dialect.
type SQLHandle struct {
	db       *sqlx.DB
	kind     Kind
	dialect  dialect.SQLDialect
	identity string
}

// NewSQLHandle wraps an already open database.
func NewSQLHandle(db *sqlx.DB, kind Kind, identity string) (*SQLHandle, error) {
	d, err := dialect.New(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &SQLHandle{db: db, kind: kind, dialect: d, identity: identity}, nil
}

func (h *SQLHandle) DB() *sqlx.DB                { return h.db }
func (h *SQLHandle) Dialect() dialect.SQLDialect { return h.dialect }
func (h *SQLHandle) Kind() Kind                  { return h.kind }
func (h *SQLHandle) Identity() string            { return h.identity }
func (h *SQLHandle) Close() error                { return h.db.Close() }

// HTTPHandle carries what an HTTP source needs: the base URL, basic-auth
// credentials for OData and the organization id for the REST export API.
type HTTPHandle struct {
	kind     Kind
	BaseURL  string
	Username string
	Password string
	OrgID    string
	Client   *http.Client
}

// NewHTTPHandle returns a handle for an HTTP source. A nil client gets a
// default one.
func NewHTTPHandle(kind Kind, baseURL, username, password, orgID string, client *http.Client) *HTTPHandle {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPHandle{
		kind:     kind,
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		OrgID:    orgID,
		Client:   client,
	}
}

func (h *HTTPHandle) Kind() Kind       { return h.kind }
func (h *HTTPHandle) Identity() string { return h.kind.String() + "|" + h.BaseURL }

func (h *HTTPHandle) Close() error {
	h.Client.CloseIdleConnections()
	return nil
}
