package repository

import (
	"database/sql"
	"errors"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

// Sentinel errors returned by the stores. The zero-rows outcomes of the
// conditional updates map onto these; services translate them into the
// engine error taxonomy.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotActive       = errors.New("coupon not in active state")
	ErrNotAvailable    = errors.New("reward account not available")
	ErrHolderMismatch  = errors.New("reward account not held by expected submission")
	ErrDuplicateCoupon = errors.New("submission already exists for coupon")
	ErrAlreadyAssigned = errors.New("submission already has an assignment")
	ErrNotAssigned     = errors.New("submission has no assignment")
)
