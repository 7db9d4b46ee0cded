package service

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

var (
	ErrNotFound            = errors.New("资源不存在")
	ErrInvalidArgument     = errors.New("参数错误")
	ErrInsufficientCredits = errors.New("积分不足")
	ErrProviderFailed      = errors.New("内容生成失败")

	// errConflictRetry 存储层瞬时冲突，只在账本内部重试，不对外暴露
	errConflictRetry = errors.New("transient store conflict")
)

// InsufficientCreditsError 余额不足，携带所需与可用积分
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// ProviderError 生成服务失败，预扣积分已退回
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failed: %v", e.Err)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailed
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// DeductedError 扣减已提交但读取余额失败，调用方必须按已扣减处理
type DeductedError struct {
	Amount int
	Err    error
}

func (e *DeductedError) Error() string {
	return fmt.Sprintf("credits deducted (%d), balance unavailable: %v", e.Amount, e.Err)
}

func (e *DeductedError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// isTransient 判断存储错误是否可以重试：
// MySQL 死锁 1213 与锁等待超时 1205，SQLite busy/locked。
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errConflictRetry) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
