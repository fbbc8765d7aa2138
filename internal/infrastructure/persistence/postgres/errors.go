package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// SQLSTATE коды, которые различает хранилище.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool { return sqlState(err) == codeUniqueViolation }

func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// mapError turns a driver error into a DomainError for entity/id.
// Domain errors pass through; unknown failures are retryable dependency errors.
func mapError(domain, op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if IsNoRows(err) {
		return shared.NotFoundError(domain, op, entity, id)
	}

	switch sqlState(err) {
	case codeUniqueViolation:
		return shared.WrapError(domain, op, shared.ErrAlreadyExists, entity+" already exists", err).
			WithCode(shared.CodeConflict)
	case codeForeignKeyViolation:
		return shared.WrapError(domain, op, shared.ErrNotFound, "referenced entity does not exist", err).
			WithCode(shared.CodeNotFound)
	case codeCheckViolation:
		return shared.WrapError(domain, op, shared.ErrValidation, entity+" violates a schema constraint", err).
			WithCode(shared.CodeValidation)
	}
	return shared.DependencyError(domain, op, err)
}
