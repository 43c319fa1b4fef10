package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
)

// ChangelogRepository 课表变更日志数据访问接口
// 只追加：不提供 Update / Delete（数据库触发器同样拒绝修改）
type ChangelogRepository interface {
	BatchCreate(ctx context.Context, entries []model.ChangelogEntry) error
	// ListByScope 按作用域分页查询，时间正序（最早的在前）
	ListByScope(ctx context.Context, scope model.Scope, offset, limit int) ([]model.ChangelogEntry, int64, error)
	// ListAfterSeq 按 seq 顺序返回 seq > afterSeq 的记录，供归档使用
	ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]model.ChangelogEntry, error)
}

type changelogRepo struct {
	db *gorm.DB
}

// NewChangelogRepo 创建 ChangelogRepository 实例
func NewChangelogRepo(db *gorm.DB) ChangelogRepository {
	return &changelogRepo{db: db}
}

func (r *changelogRepo) BatchCreate(ctx context.Context, entries []model.ChangelogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *changelogRepo) ListByScope(ctx context.Context, scope model.Scope, offset, limit int) ([]model.ChangelogEntry, int64, error) {
	var entries []model.ChangelogEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ChangelogEntry{}).
		Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	return entries, total, err
}

func (r *changelogRepo) ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]model.ChangelogEntry, error) {
	var entries []model.ChangelogEntry
	err := r.db.WithContext(ctx).
		Where("seq > ?", afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
