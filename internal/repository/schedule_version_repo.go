package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/C4erries/edumax/internal/model"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
)

// ScheduleVersionRepository 课表版本计数器
type ScheduleVersionRepository interface {
	// LockForUpdate 确保版本行存在并加行锁（SELECT … FOR UPDATE），返回当前版本；需在事务内调用
	LockForUpdate(ctx context.Context, scope model.Scope) (int64, error)
	// Advance 将版本从 from 推进到 from+1
	Advance(ctx context.Context, scope model.Scope, from int64) (int64, error)
	// Get 读取当前版本，从未修改过的作用域返回 0
	Get(ctx context.Context, scope model.Scope) (int64, error)
}

type scheduleVersionRepo struct {
	db *gorm.DB
}

// NewScheduleVersionRepo 创建 ScheduleVersionRepository 实例
func NewScheduleVersionRepo(db *gorm.DB) ScheduleVersionRepository {
	return &scheduleVersionRepo{db: db}
}

func (r *scheduleVersionRepo) LockForUpdate(ctx context.Context, scope model.Scope) (int64, error) {
	db := r.db.WithContext(ctx)

	row := model.ScheduleVersion{ScopeType: scope.Type, ScopeID: scope.ID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return 0, err
	}

	var locked model.ScheduleVersion
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID).
		First(&locked).Error
	if err != nil {
		return 0, err
	}
	return locked.Version, nil
}

func (r *scheduleVersionRepo) Advance(ctx context.Context, scope model.Scope, from int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ScheduleVersion{}).
		Where("scope_type = ? AND scope_id = ? AND version = ?", scope.Type, scope.ID, from).
		Updates(map[string]interface{}{
			"version":    from + 1,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, pkgerrors.ErrOptimisticLock
	}
	return from + 1, nil
}

func (r *scheduleVersionRepo) Get(ctx context.Context, scope model.Scope) (int64, error) {
	var v model.ScheduleVersion
	err := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.Version, nil
}
