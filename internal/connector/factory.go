// Package connector opens source and target systems from credential records.
package connector

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
)

const (
	defaultMySQLPort     = 3306
	defaultPostgresPort  = 5432
	defaultSAPDirectPort = 30015
	defaultSAPProdPort   = 30041
)

// SecretRevealer turns a stored password into the usable secret.
type SecretRevealer interface {
	Reveal(stored string) (string, error)
}

type Options struct {
	HTTPTimeout     time.Duration
	PostgresSSLMode string
}

type Factory struct {
	registry *Registry
	secrets  SecretRevealer
	opts     Options
	logger   zerolog.Logger
}

func NewFactory(registry *Registry, secrets SecretRevealer, opts Options, logger zerolog.Logger) *Factory {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 60 * time.Second
	}
	if opts.PostgresSSLMode == "" {
		opts.PostgresSSLMode = "disable"
	}
	return &Factory{
		registry: registry,
		secrets:  secrets,
		opts:     opts,
		logger:   logger.With().Str("component", "connector").Logger(),
	}
}

// Open connects to the system described by cred. SQL handles are pinged
// before they are returned.
func (f *Factory) Open(ctx context.Context, cred models.Credential) (Handle, error) {
	kind := f.registry.Kind(cred.DBType)
	if kind == Unknown {
		return nil, etlerr.New(etlerr.ErrUnsupportedType, "db_type %q", cred.DBType)
	}

	password := cred.Password
	if f.secrets != nil {
		revealed, err := f.secrets.Reveal(cred.Password)
		if err != nil {
			return nil, etlerr.Wrap(etlerr.ErrConfig, err, "credential %d", cred.ID)
		}
		password = revealed
	}

	if !kind.IsSQL() {
		return f.openHTTP(kind, cred, password), nil
	}
	return f.openSQL(ctx, kind, cred, password)
}

func (f *Factory) openSQL(ctx context.Context, kind Kind, cred models.Credential, password string) (*SQLHandle, error) {
	driver := kind.Driver()
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, etlerr.New(etlerr.ErrImportMissing, "driver %q for %s is not registered", driver, kind)
	}

	var dsn string
	switch kind {
	case MySQL:
		dsn = mysqlDSN(cred, password)
	case Postgres:
		dsn = postgresDSN(cred, password, f.opts.PostgresSSLMode)
	case SQLite:
		dsn = sqliteDSN(cred)
	case SAPDirect:
		dsn = hanaDSN(cred, password)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConnection, err, "connect %s", cred)
	}
	if kind == SQLite {
		db.SetMaxOpenConns(1)
	}

	h, err := NewSQLHandle(db, kind, identity(kind, cred))
	if err != nil {
		db.Close()
		return nil, etlerr.Wrap(etlerr.ErrUnsupportedType, err, "dialect for %s", kind)
	}
	f.logger.Debug().Str("kind", kind.String()).Str("host", cred.Host).Str("db", cred.DBName).Msg("Connected")
	return h, nil
}

func (f *Factory) openHTTP(kind Kind, cred models.Credential, password string) *HTTPHandle {
	base := strings.TrimRight(strings.TrimSpace(cred.Host), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	if cred.Port > 0 {
		if u, err := url.Parse(base); err == nil && u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(cred.Port))
			base = u.String()
		}
	}
	return NewHTTPHandle(kind, base, cred.Username, password, cred.DBName, &http.Client{Timeout: f.opts.HTTPTimeout})
}

func identity(kind Kind, cred models.Credential) string {
	return strings.Join([]string{kind.String(), strings.ToLower(cred.Host), cred.DBName}, "|")
}

func hostPort(host string, port, fallback int) string {
	if port <= 0 {
		port = fallback
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func mysqlDSN(cred models.Credential, password string) string {
	cfg := mysql.NewConfig()
	cfg.User = cred.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(cred.Host, cred.Port, defaultMySQLPort)
	cfg.DBName = cred.DBName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func postgresDSN(cred models.Credential, password, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cred.Username, password),
		Host:     hostPort(cred.Host, cred.Port, defaultPostgresPort),
		Path:     "/" + cred.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

func sqliteDSN(cred models.Credential) string {
	if cred.DBName != "" {
		return cred.DBName
	}
	return cred.Host
}

func hanaDSN(cred models.Credential, password string) string {
	fallback := defaultSAPDirectPort
	if normalize(cred.DBType) == "sap-prod" {
		fallback = defaultSAPProdPort
	}
	u := url.URL{
		Scheme: "hdb",
		User:   url.UserPassword(cred.Username, password),
		Host:   hostPort(cred.Host, cred.Port, fallback),
	}
	return u.String()
}
