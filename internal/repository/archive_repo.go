package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/C4erries/edumax/internal/model"
)

// ArchiveRepository 变更日志归档记录
type ArchiveRepository interface {
	// LastArchivedSeq 已归档的最大 seq，从未归档返回 0
	LastArchivedSeq(ctx context.Context) (int64, error)
	Create(ctx context.Context, a *model.ChangelogArchive) error
}

type archiveRepo struct {
	db *gorm.DB
}

// NewArchiveRepo 创建 ArchiveRepository 实例
func NewArchiveRepo(db *gorm.DB) ArchiveRepository {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) LastArchivedSeq(ctx context.Context) (int64, error) {
	var last int64
	err := r.db.WithContext(ctx).
		Model(&model.ChangelogArchive{}).
		Select("COALESCE(MAX(last_seq), 0)").
		Scan(&last).Error
	return last, err
}

func (r *archiveRepo) Create(ctx context.Context, a *model.ChangelogArchive) error {
	return r.db.WithContext(ctx).Create(a).Error
}
