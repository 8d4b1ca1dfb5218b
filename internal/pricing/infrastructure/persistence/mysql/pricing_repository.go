package mysql

import (
	"context"
	"time"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/db"
	"gorm.io/gorm"
)

type pricingRepository struct {
	db *gorm.DB
}

// NewPricingRepository 创建定价结果仓储
func NewPricingRepository(gdb *gorm.DB) domain.PricingRepository {
	return &pricingRepository{db: gdb}
}

// Save 新结果插入，已有 ID 时覆盖
func (r *pricingRepository) Save(ctx context.Context, res *domain.PricingResult) error {
	model := toPricingResultModel(res)
	if model == nil {
		return nil
	}
	conn := db.Conn(ctx, r.db)
	if model.ID == 0 {
		if err := conn.Create(model).Error; err != nil {
			return err
		}
		res.ID = model.ID
		res.CreatedAt = model.CreatedAt
		res.UpdatedAt = model.UpdatedAt
		return nil
	}
	return conn.Save(model).Error
}

// GetLatest 最近一次结果，不存在时返回 nil
func (r *pricingRepository) GetLatest(ctx context.Context, instrumentID string) (*domain.PricingResult, error) {
	var m PricingResultModel
	err := db.Conn(ctx, r.db).
		Where("instrument_id = ?", instrumentID).
		Order("calculated_at desc").
		First(&m).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toPricingResult(&m), nil
}

// GetHistory 按计算时间倒序
func (r *pricingRepository) GetHistory(ctx context.Context, instrumentID string, limit int) ([]*domain.PricingResult, error) {
	var models []PricingResultModel
	if err := db.Conn(ctx, r.db).
		Where("instrument_id = ?", instrumentID).
		Order("calculated_at desc").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]*domain.PricingResult, len(models))
	for i := range models {
		res[i] = toPricingResult(&models[i])
	}
	return res, nil
}

// DeleteBefore 清理计算时间早于 cutoff 的结果
func (r *pricingRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := db.Conn(ctx, r.db).Where("calculated_at < ?", cutoff).Delete(&PricingResultModel{})
	return tx.RowsAffected, tx.Error
}
