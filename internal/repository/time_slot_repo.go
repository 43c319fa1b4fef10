package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
)

// TimeslotRepository 节次数据访问接口（只读）
type TimeslotRepository interface {
	List(ctx context.Context) ([]model.Timeslot, error)
	GetByPairNo(ctx context.Context, pairNo int) (*model.Timeslot, error)
}

type timeslotRepo struct {
	db *gorm.DB
}

// NewTimeslotRepo 创建 TimeslotRepository 实例
func NewTimeslotRepo(db *gorm.DB) TimeslotRepository {
	return &timeslotRepo{db: db}
}

func (r *timeslotRepo) List(ctx context.Context) ([]model.Timeslot, error) {
	var slots []model.Timeslot
	err := r.db.WithContext(ctx).
		Order("pair_no ASC").
		Find(&slots).Error
	return slots, err
}

func (r *timeslotRepo) GetByPairNo(ctx context.Context, pairNo int) (*model.Timeslot, error) {
	var slot model.Timeslot
	err := r.db.WithContext(ctx).
		Where("pair_no = ?", pairNo).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
