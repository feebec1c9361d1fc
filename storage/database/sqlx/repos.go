// Package sqlxrepos implements the core repositories on PostgreSQL with sqlx & squirrel.
package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/autograder/core"
)

// PostgreSQL error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
	invalidTextRepr     = "22P02" // eg. malformed uuid
	stringTooLong       = "22001"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// trapNoRowsErr maps "no rows" & malformed ids to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows || pqCode(err) == invalidTextRepr {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapTooLongErr maps values too long for their column to a validation error on field.
func trapTooLongErr(err error, field, msg string) error {
	if pqCode(err) == stringTooLong {
		return core.NewValidationError(
			errors.Wrap(err, msg),
			core.FieldError{Field: field, Error: field + " is too long"},
		)
	}
	return errors.Wrap(err, msg)
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// orderBy renders ordering, keeping only the allowed columns.
func orderBy(ordering []core.DBOrdering, allowed map[string]string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		ord.Field = col
		clauses = append(clauses, ord.String())
	}
	return clauses
}
