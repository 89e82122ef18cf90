package connector

import (
	"fmt"
	"strings"
)

// Kind is the closed set of connector kinds the engine can open.
type Kind int

const (
	Unknown Kind = iota
	MySQL
	Postgres
	SQLite
	SAPDirect
	SAPOData
	OAuthREST
)

var kindNames = map[Kind]string{
	MySQL:     "mysql",
	Postgres:  "postgres",
	SQLite:    "sqlite",
	SAPDirect: "sap-direct",
	SAPOData:  "sap-odata",
	OAuthREST: "oauth-rest",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsSQL reports whether the kind is reached through database/sql.
func (k Kind) IsSQL() bool {
	switch k {
	case MySQL, Postgres, SQLite, SAPDirect:
		return true
	}
	return false
}

// Driver is the database/sql driver name for SQL kinds.
func (k Kind) Driver() string {
	switch k {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite3"
	case SAPDirect:
		return "hdb"
	}
	return ""
}

var builtinAliases = map[string]Kind{
	"mysql":           MySQL,
	"mariadb":         MySQL,
	"mysql_wh":        MySQL,
	"mysql_warehouse": MySQL,
	"mysql_prod":      MySQL,
	"mysql_staging":   MySQL,
	"mysql_dev":       MySQL,
	"vms":             MySQL,
	"chit_db":         MySQL,
	"warehouse_mysql": MySQL,
	"prod_mysql":      MySQL,
	"aws-mysql":       MySQL,
	"aws_vms":         MySQL,
	"mysql-ptp":       MySQL,

	"postgres":           Postgres,
	"postgresql":         Postgres,
	"postgre":            Postgres,
	"pg":                 Postgres,
	"postgres_wh":        Postgres,
	"postgres_warehouse": Postgres,
	"postgres_prod":      Postgres,
	"postgres_staging":   Postgres,
	"pg_warehouse":       Postgres,

	"sqlite":  SQLite,
	"sqlite3": SQLite,

	"sap-direct": SAPDirect,
	"sap-prod":   SAPDirect,
	"hana":       SAPDirect,

	"sap-odata": SAPOData,
	"odata":     SAPOData,

	"zakya-api":  OAuthREST,
	"oauth-rest": OAuthREST,
}

func normalize(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// Registry maps db_type spellings to kinds.
type Registry struct {
	aliases map[string]Kind
}

// NewRegistry returns the built-in alias table extended with extra
// (alias to canonical kind name or existing alias).
func NewRegistry(extra map[string]string) (*Registry, error) {
	aliases := make(map[string]Kind, len(builtinAliases)+len(extra))
	for k, v := range builtinAliases {
		aliases[k] = v
	}
	for alias, target := range extra {
		kind, ok := aliases[normalize(target)]
		if !ok {
			kind = kindByName(normalize(target))
		}
		if kind == Unknown {
			return nil, fmt.Errorf("alias %q refers to unknown connector %q", alias, target)
		}
		aliases[normalize(alias)] = kind
	}
	return &Registry{aliases: aliases}, nil
}

func kindByName(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return Unknown
}

// Kind resolves dbType case-insensitively; unrecognised types are Unknown.
func (r *Registry) Kind(dbType string) Kind {
	return r.aliases[normalize(dbType)]
}
