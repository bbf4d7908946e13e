package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error: its typed code, the unwrap
// chain and any Postgres diagnostics found along it.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	Postgres *PostgresDetail `json:"postgres,omitempty"`
}

type PostgresDetail struct {
	SQLState   string `json:"sqlstate"`
	Class      string `json:"class"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Retryable: IsRetryable(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresDetail(err)
	return d
}

// Fields flattens the dump for structured log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.SQLState
		fields["pg_class"] = pg.Class
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
	}
	return fields
}

func postgresDetail(err error) *PostgresDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return newPostgresDetail(pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return newPostgresDetail(string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message)
	}
	return nil
}

func newPostgresDetail(code, constraint, table, column, detail, message string) *PostgresDetail {
	d := &PostgresDetail{
		SQLState:   code,
		Constraint: constraint,
		Table:      table,
		Column:     column,
		Detail:     detail,
		Message:    message,
	}
	if len(code) >= 2 {
		d.Class = code[:2]
	}
	return d
}
