package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ── 错误分类 ──
//
// ErrNotFound / ErrValidation 属于业务错误，补丁引擎按单条补丁记录，不中断批次；
// ErrPersistence 属于存储层错误，整批回滚。

var (
	ErrNotFound    = errors.New("资源不存在")
	ErrValidation  = errors.New("校验失败")
	ErrPersistence = errors.New("存储层错误")
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = fmt.Errorf("%w: 数据已被其他操作修改，请刷新后重试", ErrPersistence)

// PostgreSQL SQLSTATE
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Persistence 将底层存储错误包装为 ErrPersistence；nil 原样返回，已包装的错误不重复包装。
func Persistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// IsRetryable 判断是否为可重试的并发冲突：乐观锁冲突，或 PostgreSQL 的序列化失败、死锁、锁等待失败
// 乐观锁冲突说明读取后记录被其他事务提交修改，重新读取后可以继续
func IsRetryable(err error) bool {
	if errors.Is(err, ErrOptimisticLock) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}
