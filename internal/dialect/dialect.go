// Package dialect holds the per-database SQL differences the extractor and
// loader need: identifier quoting, column types and table DDL.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stanstork/stratum-etl/internal/dataset"
)

// SQLDialect renders the statements that differ between databases.
type SQLDialect interface {
	Name() string
	// DriverName is the database/sql driver the dialect is spoken through.
	DriverName() string
	Quote(ident string) string
	// Table renders a possibly schema-qualified table reference.
	Table(schema, table string) string
	ColumnType(col dataset.Column) string
	CreateTable(schema, table string, cols []dataset.Column) string
	DropTable(schema, table string) string
	RenameTable(schema, from, to string) string
	// MissingTable reports whether err says the table does not exist.
	MissingTable(err error) bool
	// MaxParams bounds the placeholders in one statement.
	MaxParams() int
	// MaxIdentifier is the longest identifier in bytes the database keeps
	// intact; zero means unbounded.
	MaxIdentifier() int
}

// New returns the dialect for a database/sql driver name.
func New(driver string) (SQLDialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return MySQL{}, nil
	case "postgres":
		return Postgres{}, nil
	case "sqlite3":
		return SQLite{}, nil
	case "hdb":
		return HANA{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", driver)
	}
}

func quoteWith(ident, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func qualified(d SQLDialect, schema, table string) string {
	if strings.TrimSpace(schema) == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

func createTable(d SQLDialect, schema, table string, cols []dataset.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = d.Quote(c.Name) + " " + d.ColumnType(c)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Table(schema, table), strings.Join(defs, ", "))
}

func varcharSize(c dataset.Column) int {
	if c.Size <= 0 {
		return 255
	}
	return c.Size
}

type MySQL struct{}

func (MySQL) Name() string                        { return "mysql" }
func (MySQL) DriverName() string                  { return "mysql" }
func (MySQL) Quote(ident string) string           { return quoteWith(ident, "`") }
func (d MySQL) Table(schema, table string) string { return qualified(d, schema, table) }
func (MySQL) MaxParams() int                      { return 65535 }
func (MySQL) MaxIdentifier() int                  { return 64 }

func (MySQL) ColumnType(c dataset.Column) string {
	switch c.Type {
	case dataset.TypeVarChar:
		return fmt.Sprintf("VARCHAR(%d)", varcharSize(c))
	case dataset.TypeInteger:
		return "INT"
	case dataset.TypeBigInt:
		return "BIGINT"
	case dataset.TypeDouble:
		return "DOUBLE"
	case dataset.TypeBoolean:
		return "TINYINT(1)"
	case dataset.TypeTimestamp:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

// mysqlMaxRowSize is the server's limit on the declared width of a row,
// counted with utf8mb4's four bytes per character.
const mysqlMaxRowSize = 65535

// CreateTable demotes the widest VARCHAR columns to LONGTEXT until the row
// fits in mysqlMaxRowSize.
func (d MySQL) CreateTable(schema, table string, cols []dataset.Column) string {
	return createTable(d, schema, table, fitMySQLRow(cols))
}

func fitMySQLRow(cols []dataset.Column) []dataset.Column {
	total := 0
	var varchars []int
	for i, c := range cols {
		total += mysqlColumnWidth(c)
		if c.Type == dataset.TypeVarChar {
			varchars = append(varchars, i)
		}
	}
	if total <= mysqlMaxRowSize {
		return cols
	}

	out := make([]dataset.Column, len(cols))
	copy(out, cols)
	sort.SliceStable(varchars, func(a, b int) bool {
		return varcharSize(cols[varchars[a]]) > varcharSize(cols[varchars[b]])
	})
	for _, i := range varchars {
		if total <= mysqlMaxRowSize {
			break
		}
		total -= mysqlColumnWidth(out[i])
		out[i] = dataset.Column{Name: out[i].Name, Type: dataset.TypeText}
		total += mysqlColumnWidth(out[i])
	}
	return out
}

// mysqlColumnWidth is the bytes a column counts against the row size. Text
// columns count only their in-row pointer.
func mysqlColumnWidth(c dataset.Column) int {
	switch c.Type {
	case dataset.TypeVarChar:
		n := varcharSize(c) * 4
		if n > 255 {
			return n + 2
		}
		return n + 1
	case dataset.TypeInteger:
		return 4
	case dataset.TypeBigInt, dataset.TypeDouble, dataset.TypeTimestamp:
		return 8
	case dataset.TypeBoolean:
		return 1
	default:
		return 12
	}
}

func (d MySQL) DropTable(schema, table string) string {
	return "DROP TABLE IF EXISTS " + d.Table(schema, table)
}

func (d MySQL) RenameTable(schema, from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.Table(schema, from), d.Table(schema, to))
}

func (MySQL) MissingTable(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && (myErr.Number == 1146 || myErr.Number == 1051)
}

type Postgres struct{}

func (Postgres) Name() string                        { return "postgres" }
func (Postgres) DriverName() string                  { return "postgres" }
func (Postgres) Quote(ident string) string           { return quoteWith(ident, `"`) }
func (d Postgres) Table(schema, table string) string { return qualified(d, schema, table) }
func (Postgres) MaxParams() int                      { return 65535 }
func (Postgres) MaxIdentifier() int                  { return 63 }

func (Postgres) ColumnType(c dataset.Column) string {
	switch c.Type {
	case dataset.TypeVarChar:
		return fmt.Sprintf("VARCHAR(%d)", varcharSize(c))
	case dataset.TypeInteger:
		return "INTEGER"
	case dataset.TypeBigInt:
		return "BIGINT"
	case dataset.TypeDouble:
		return "DOUBLE PRECISION"
	case dataset.TypeBoolean:
		return "BOOLEAN"
	case dataset.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (d Postgres) CreateTable(schema, table string, cols []dataset.Column) string {
	return createTable(d, schema, table, cols)
}

func (d Postgres) DropTable(schema, table string) string {
	return "DROP TABLE IF EXISTS " + d.Table(schema, table)
}

// RenameTable keeps the table in its schema; Postgres takes a bare new name.
func (d Postgres) RenameTable(schema, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.Table(schema, from), d.Quote(to))
}

func (Postgres) MissingTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

type SQLite struct{}

func (SQLite) Name() string                        { return "sqlite" }
func (SQLite) DriverName() string                  { return "sqlite3" }
func (SQLite) Quote(ident string) string           { return quoteWith(ident, `"`) }
func (d SQLite) Table(schema, table string) string { return qualified(d, schema, table) }
func (SQLite) MaxParams() int                      { return 32766 }
func (SQLite) MaxIdentifier() int                  { return 0 }

func (SQLite) ColumnType(c dataset.Column) string {
	switch c.Type {
	case dataset.TypeVarChar:
		return fmt.Sprintf("VARCHAR(%d)", varcharSize(c))
	case dataset.TypeInteger, dataset.TypeBigInt:
		return "INTEGER"
	case dataset.TypeDouble:
		return "REAL"
	case dataset.TypeBoolean:
		return "BOOLEAN"
	case dataset.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (d SQLite) CreateTable(schema, table string, cols []dataset.Column) string {
	return createTable(d, schema, table, cols)
}

func (d SQLite) DropTable(schema, table string) string {
	return "DROP TABLE IF EXISTS " + d.Table(schema, table)
}

func (d SQLite) RenameTable(schema, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.Table(schema, from), d.Quote(to))
}

func (SQLite) MissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// HANA is spoken through github.com/SAP/go-hdb.
type HANA struct{}

func (HANA) Name() string                        { return "hana" }
func (HANA) DriverName() string                  { return "hdb" }
func (HANA) Quote(ident string) string           { return quoteWith(ident, `"`) }
func (d HANA) Table(schema, table string) string { return qualified(d, schema, table) }
func (HANA) MaxParams() int                      { return 32767 }
func (HANA) MaxIdentifier() int                  { return 127 }

func (HANA) ColumnType(c dataset.Column) string {
	switch c.Type {
	case dataset.TypeVarChar:
		return fmt.Sprintf("NVARCHAR(%d)", varcharSize(c))
	case dataset.TypeInteger:
		return "INTEGER"
	case dataset.TypeBigInt:
		return "BIGINT"
	case dataset.TypeDouble:
		return "DOUBLE"
	case dataset.TypeBoolean:
		return "BOOLEAN"
	case dataset.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "NCLOB"
	}
}

func (d HANA) CreateTable(schema, table string, cols []dataset.Column) string {
	return "CREATE COLUMN TABLE" + strings.TrimPrefix(createTable(d, schema, table, cols), "CREATE TABLE")
}

// DropTable has no IF EXISTS form here; callers treat MissingTable errors as success.
func (d HANA) DropTable(schema, table string) string {
	return "DROP TABLE " + d.Table(schema, table)
}

func (d HANA) RenameTable(schema, from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.Table(schema, from), d.Quote(to))
}

// hdbError matches the database errors returned by go-hdb.
type hdbError interface {
	Code() int
}

// MissingTable matches SQL error 259, invalid table name.
func (HANA) MissingTable(err error) bool {
	var hErr hdbError
	return errors.As(err, &hErr) && hErr.Code() == 259
}
