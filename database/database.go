package database

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// Builder is the shared squirrel statement builder for the raw SQL paths
// (search candidate queries, random sampling, stats repair, import cursor).
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier abstracts *sql.DB and *sql.Tx for functions that run inside or
// outside a transaction.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}
