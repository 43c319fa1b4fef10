package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/internal/repository"
	"github.com/C4erries/edumax/pkg/archive"
	pkgerrors "github.com/C4erries/edumax/pkg/errors"
	"github.com/C4erries/edumax/pkg/metrics"
)

// ── 归档模块业务错误 ──

var (
	ErrArchiveDisabled = errors.New("变更日志归档未启用")
)

const (
	defaultArchiveBatch  = 5000
	defaultArchivePrefix = "schedule-changelog"
	archiveContentType   = "application/x-ndjson"
)

// ArchiveService 变更日志归档：把尚未归档的日志按 seq 顺序以 JSON Lines 上传到对象存储
// 日志本身从不删除，归档只是额外的冷备份
type ArchiveService interface {
	// Run 归档所有新日志，返回本次归档的条数
	Run(ctx context.Context) (int, error)
}

type archiveService struct {
	repo      *repository.Repository
	uploader  archive.Uploader
	metrics   *metrics.Metrics
	logger    *zap.Logger
	prefix    string
	batchSize int
	now       func() time.Time
}

// NewArchiveService 创建 ArchiveService 实例；uploader 为 nil 时 Run 返回 ErrArchiveDisabled
func NewArchiveService(cfg *config.ArchiveConfig, repo *repository.Repository, uploader archive.Uploader, m *metrics.Metrics, logger *zap.Logger) ArchiveService {
	s := &archiveService{
		repo:      repo,
		uploader:  uploader,
		metrics:   m,
		logger:    logger,
		prefix:    cfg.Prefix,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
	if s.prefix == "" {
		s.prefix = defaultArchivePrefix
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultArchiveBatch
	}
	return s
}

func (s *archiveService) Run(ctx context.Context) (int, error) {
	if s.uploader == nil {
		return 0, ErrArchiveDisabled
	}

	last, err := s.repo.Archive.LastArchivedSeq(ctx)
	if err != nil {
		return 0, pkgerrors.Persistence(err)
	}

	total := 0
	for {
		entries, err := s.repo.Changelog.ListAfterSeq(ctx, last, s.batchSize)
		if err != nil {
			return total, pkgerrors.Persistence(err)
		}
		if len(entries) == 0 {
			break
		}

		n, lastSeq, err := s.archiveChunk(ctx, entries)
		if err != nil {
			return total, err
		}
		total += n
		last = lastSeq

		if len(entries) < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("变更日志归档完成", zap.Int("entries", total), zap.Int64("last_seq", last))
	}
	return total, nil
}

func (s *archiveService) archiveChunk(ctx context.Context, entries []model.ChangelogEntry) (int, int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(toChangelogResponse(&entries[i])); err != nil {
			return 0, 0, err
		}
	}

	first, last := entries[0].Seq, entries[len(entries)-1].Seq
	key := archive.ObjectKey(s.prefix, s.now(), first, last)
	if err := s.uploader.Put(ctx, key, buf.Bytes(), archiveContentType); err != nil {
		s.logger.Error("上传归档失败", zap.String("key", key), zap.Error(err))
		return 0, 0, err
	}

	rec := &model.ChangelogArchive{
		FirstSeq:   first,
		LastSeq:    last,
		EntryCount: len(entries),
		ObjectKey:  key,
	}
	if err := s.repo.Archive.Create(ctx, rec); err != nil {
		// 对象已上传但未登记，下次运行会重新上传该 seq 范围
		s.logger.Error("登记归档记录失败", zap.String("key", key), zap.Error(err))
		return 0, 0, pkgerrors.Persistence(err)
	}

	s.metrics.AddArchived(len(entries))
	return len(entries), last, nil
}
