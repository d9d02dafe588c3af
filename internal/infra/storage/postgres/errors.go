package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vietddude/recall/internal/resilience"
)

// classify tags driver errors with an explicit error type so the
// resilience handler doesn't have to guess from message text. Errors we
// can't place confidently are passed through untagged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08": // connection exception class
			return resilience.Classify(resilience.ErrorTypeDatabaseConnection, err)
		case "42": // syntax error or access rule violation class
			return resilience.Classify(resilience.ErrorTypeDatabaseQuery, err)
		case "53": // insufficient resources (disk full, out of memory)
			return resilience.Classify(resilience.ErrorTypeMemoryStorage, err)
		}
	}

	if pgconn.Timeout(err) {
		return resilience.Classify(resilience.ErrorTypeDatabaseConnection, err)
	}

	return err
}
