package util

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateForeignKeyViolation  = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation 唯一约束冲突
func IsUniqueViolation(err error) bool {
	return pgCode(err) == sqlStateUniqueViolation
}

// IsSerializationFailure 串行化事务冲突（包括死锁）
func IsSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
}

// IsForeignKeyViolation 外键不存在，例如引用了已删除的 habit
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == sqlStateForeignKeyViolation
}

// ClassifyError 返回用于日志和指标的错误类别
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUniqueViolation(err):
		return "duplicate_key"
	case IsSerializationFailure(err):
		return "serialization_failure"
	case IsForeignKeyViolation(err):
		return "foreign_key_violation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	default:
		return "unknown_error"
	}
}
