package models

import "fmt"

// Credential is one row of database_cred. It is resolved once per job and
// passed by value; the secret is only read while a connection is built.
type Credential struct {
	ID       int64  `json:"id" db:"id"`
	DBType   string `json:"db_type" db:"db_type"`
	Role     string `json:"db_role" db:"db_role"`
	Host     string `json:"host" db:"host"`
	Port     int    `json:"port" db:"port"`
	DBName   string `json:"db_name" db:"db_name"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
}

// String never includes the secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s[%s] %s@%s:%d/%s", c.DBType, c.Role, c.Username, c.Host, c.Port, c.DBName)
}
