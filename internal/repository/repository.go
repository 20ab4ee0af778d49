package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrStateChanged   = errors.New("record state changed concurrently")
	ErrDuplicate      = errors.New("duplicate record")
)

// pick returns tx when the caller is inside a transaction, db otherwise.
func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// NormalizePage clamps paging input to page >= 1 and 1..100 rows, 20 by default.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
