// Package repository provides PostgreSQL data access for the travel data
// service.
//
// Repositories follow the repository pattern: an interface per aggregate
// (CollectionTask, ReviewItem, places) with a pgx implementation. All
// implementations are safe for concurrent use; pooling and synchronization
// live in the underlying pgxpool.
//
// Methods return domain errors (domain.ErrNotFound, domain.ErrAlreadyExists,
// domain.ErrConflict, domain.ErrInvalidInput) for business failures and wrap
// database errors with fmt.Errorf %w otherwise.
//
// Constructors accept DBTX, so a repository can run against the pool or
// inside an existing transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgReviewRepository(tx)
//	    return txRepo.Decide(ctx, id, decision)
//	})
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hgj2025/cityinfo-sub001/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts.
type DBTX = database.DBTX

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 50
	maxFilterLimit     = 500
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and ensures
// offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// isPgUniqueViolation checks for a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks for a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// nullString returns a pointer to s when non-empty, otherwise nil, so empty
// strings land as SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
