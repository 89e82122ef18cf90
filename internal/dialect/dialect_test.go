package dialect

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHDBError struct{ code int }

func (e fakeHDBError) Error() string { return "hdb error" }
func (e fakeHDBError) Code() int     { return e.code }

func TestNew(t *testing.T) {
	for driver, name := range map[string]string{
		"mysql": "mysql", "postgres": "postgres", "sqlite3": "sqlite", "hdb": "hana",
	} {
		d, err := New(driver)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
		assert.Equal(t, driver, d.DriverName())
	}

	_, err := New("oracle")
	assert.Error(t, err)
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, "`a``b`", MySQL{}.Quote("a`b"))
	assert.Equal(t, `"a""b"`, Postgres{}.Quote(`a"b`))
	assert.Equal(t, `"s"."t"`, SQLite{}.Table("s", "t"))
	assert.Equal(t, `"t"`, HANA{}.Table(" ", "t"))
}

func TestCreateTable(t *testing.T) {
	cols := []dataset.Column{
		{Name: "id", Type: dataset.TypeBigInt},
		{Name: "name", Type: dataset.TypeVarChar, Size: 255},
		{Name: "notes", Type: dataset.TypeText},
		{Name: "price", Type: dataset.TypeDouble},
	}

	assert.Equal(t,
		"CREATE TABLE `wh`.`items` (`id` BIGINT, `name` VARCHAR(255), `notes` LONGTEXT, `price` DOUBLE)",
		MySQL{}.CreateTable("wh", "items", cols))
	assert.Equal(t,
		`CREATE TABLE "items" ("id" BIGINT, "name" VARCHAR(255), "notes" TEXT, "price" DOUBLE PRECISION)`,
		Postgres{}.CreateTable("", "items", cols))
	assert.Equal(t,
		`CREATE COLUMN TABLE "S"."items" ("id" BIGINT, "name" NVARCHAR(255), "notes" NCLOB, "price" DOUBLE)`,
		HANA{}.CreateTable("S", "items", cols))
}

func TestRenameTable(t *testing.T) {
	assert.Equal(t, "RENAME TABLE `wh`.`a__stg` TO `wh`.`a`", MySQL{}.RenameTable("wh", "a__stg", "a"))
	assert.Equal(t, `ALTER TABLE "public"."a__stg" RENAME TO "a"`, Postgres{}.RenameTable("public", "a__stg", "a"))
	assert.Equal(t, `DROP TABLE "S"."a"`, HANA{}.DropTable("S", "a"))
}

func TestMissingTable(t *testing.T) {
	assert.True(t, MySQL{}.MissingTable(&mysql.MySQLError{Number: 1146}))
	assert.False(t, MySQL{}.MissingTable(&mysql.MySQLError{Number: 1045}))
	assert.True(t, Postgres{}.MissingTable(&pq.Error{Code: "42P01"}))
	assert.True(t, SQLite{}.MissingTable(errors.New("no such table: a")))
	assert.True(t, HANA{}.MissingTable(fakeHDBError{code: 259}))
	assert.False(t, HANA{}.MissingTable(fakeHDBError{code: 10}))
	assert.False(t, HANA{}.MissingTable(nil))
}

func TestMySQLCreateTable_FitsRowSize(t *testing.T) {
	cols := []dataset.Column{{Name: "id", Type: dataset.TypeBigInt}}
	for i := 0; i < 100; i++ {
		cols = append(cols, dataset.Column{Name: fmt.Sprintf("c%d", i), Type: dataset.TypeVarChar, Size: 255})
	}
	cols[50].Size = 40

	ddl := MySQL{}.CreateTable("", "export", cols)

	fitted := fitMySQLRow(cols)
	width := 0
	for _, c := range fitted {
		width += mysqlColumnWidth(c)
	}
	assert.LessOrEqual(t, width, mysqlMaxRowSize)

	varchars := strings.Count(ddl, "VARCHAR(255)")
	assert.Equal(t, 63, varchars)
	assert.Contains(t, ddl, "`c49` VARCHAR(40)", "narrow column kept")
	assert.Contains(t, ddl, "`c0` LONGTEXT")
	assert.Contains(t, ddl, "`c98` VARCHAR(255)")
	assert.Contains(t, ddl, "`c35` LONGTEXT")
	assert.Contains(t, ddl, "`c36` VARCHAR(255)")
	assert.Equal(t, dataset.TypeVarChar, cols[1].Type, "input columns untouched")

	small := cols[:10]
	assert.Equal(t, small, fitMySQLRow(small))
}
