package repository

import (
	"context"

	"cashmine/internal/model"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return pick(r.db, tx).WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) GetByNo(ctx context.Context, tx *gorm.DB, transactionNo string) (*model.Transaction, error) {
	var t model.Transaction
	err := pick(r.db, tx).WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TransactionRepository) GetByNoForUpdate(ctx context.Context, tx *gorm.DB, transactionNo string) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_no = ?", transactionNo).
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Resolve moves a pending transaction to its final status. A row that is no
// longer pending yields ErrStateChanged, so the transition happens once.
func (r *TransactionRepository) Resolve(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", t.ID, model.StatusPending).
		Updates(map[string]interface{}{
			"status":         t.Status,
			"balance_before": t.BalanceBefore,
			"balance_after":  t.BalanceAfter,
			"admin_note":     t.AdminNote,
			"resolved_by":    t.ResolvedBy,
			"resolved_at":    t.ResolvedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// ListByUserID 分页查询用户流水，最新的在前
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.Transaction, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error
	return transactions, total, err
}

// ListPending returns pending requests of kind, oldest first. An empty kind
// matches every kind.
func (r *TransactionRepository) ListPending(ctx context.Context, kind string, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	query := r.db.WithContext(ctx).Where("status = ?", model.StatusPending)
	if kind != "" {
		query = query.Where("type = ?", kind)
	}
	err := query.Order("created_at ASC").Limit(limit).Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) CountPending(ctx context.Context, kind string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("status = ? AND type = ?", model.StatusPending, kind).
		Count(&total).Error
	return total, err
}

// SumCompleted returns the completed credits and debits of a user.
func (r *TransactionRepository) SumCompleted(ctx context.Context, tx *gorm.DB, userID string) (credits, debits decimal.Decimal, err error) {
	type row struct {
		Kind  string
		Total decimal.NullDecimal
	}
	var rows []row
	err = pick(r.db, tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Select("type AS kind, SUM(amount) AS total").
		Where("user_id = ? AND status = ?", userID, model.StatusCompleted).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	credits, debits = decimal.Zero, decimal.Zero
	for _, agg := range rows {
		if !agg.Total.Valid {
			continue
		}
		if agg.Kind == model.KindWithdraw {
			debits = debits.Add(agg.Total.Decimal)
		} else {
			credits = credits.Add(agg.Total.Decimal)
		}
	}
	// SQLite sums NUMERIC columns as floats.
	return credits.Round(money.Scale), debits.Round(money.Scale), nil
}
