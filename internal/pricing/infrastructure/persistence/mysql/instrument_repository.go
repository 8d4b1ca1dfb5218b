package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type instrumentRepository struct {
	db *gorm.DB
}

// NewInstrumentRepository 创建证券目录仓储
func NewInstrumentRepository(gdb *gorm.DB) domain.InstrumentRepository {
	return &instrumentRepository{db: gdb}
}

// Save 按 instrument_id 插入或更新
func (r *instrumentRepository) Save(ctx context.Context, inst *domain.Instrument) error {
	model := toInstrumentModel(inst)
	if model == nil {
		return domain.ErrNilInstrument
	}
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instrument_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "type", "underlying_id", "strike", "option_type",
			"expiry_date", "board_code", "board_expiry_second", "updated_at",
		}),
	}).Create(model).Error
}

func (r *instrumentRepository) Get(ctx context.Context, id string) (*domain.Instrument, error) {
	var m InstrumentModel
	err := db.Conn(ctx, r.db).Where("instrument_id = ?", id).First(&m).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return toInstrument(&m), nil
}

// List 按插入顺序返回全部证券
func (r *instrumentRepository) List(ctx context.Context) ([]*domain.Instrument, error) {
	var models []InstrumentModel
	if err := db.Conn(ctx, r.db).Order("id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Instrument, len(models))
	for i := range models {
		out[i] = toInstrument(&models[i])
	}
	return out, nil
}

func (r *instrumentRepository) Delete(ctx context.Context, id string) error {
	tx := db.Conn(ctx, r.db).Where("instrument_id = ?", id).Delete(&InstrumentModel{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	return nil
}
