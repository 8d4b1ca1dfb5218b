package mysql

import (
	"context"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type strikeRuleRepository struct {
	db *gorm.DB
}

// NewStrikeRuleRepository 创建行权价规则仓储，规则以文本形式保存
func NewStrikeRuleRepository(gdb *gorm.DB) domain.StrikeRuleRepository {
	return &strikeRuleRepository{db: gdb}
}

func (r *strikeRuleRepository) Save(ctx context.Context, record *domain.StrikeRuleRecord) error {
	model := &StrikeRuleModel{
		UnderlyingID: record.UnderlyingID,
		Name:         record.Name,
		Rule:         record.Spec.String(),
	}
	if err := db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "underlying_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"rule", "updated_at"}),
	}).Create(model).Error; err != nil {
		return err
	}
	record.UpdatedAt = model.UpdatedAt
	return nil
}

// Get 不存在时返回 nil
func (r *strikeRuleRepository) Get(ctx context.Context, underlyingID, name string) (*domain.StrikeRuleRecord, error) {
	var m StrikeRuleModel
	err := db.Conn(ctx, r.db).
		Where("underlying_id = ? AND name = ?", underlyingID, name).
		First(&m).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toStrikeRuleRecord(&m)
}

func (r *strikeRuleRepository) ListByUnderlying(ctx context.Context, underlyingID string) ([]*domain.StrikeRuleRecord, error) {
	var models []StrikeRuleModel
	if err := db.Conn(ctx, r.db).
		Where("underlying_id = ?", underlyingID).
		Order("name asc").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.StrikeRuleRecord, 0, len(models))
	for i := range models {
		rec, err := toStrikeRuleRecord(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
