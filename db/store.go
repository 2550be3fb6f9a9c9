package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// DefaultStoreTimeout - предел для одного обращения к хранилищу
const DefaultStoreTimeout = 5 * time.Second

// base - общая часть хранилищ: подключение и таймаут на каждый вызов
type base struct {
	orm     *gorm.DB
	timeout time.Duration
}

func newBase(orm *gorm.DB, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return base{orm: orm, timeout: timeout}
}

func (b base) write(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return b.orm.WithContext(ctx).Clauses(dbresolver.Write), cancel
}

func (b base) read(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return b.orm.WithContext(ctx).Clauses(dbresolver.Read), cancel
}

// isDuplicate распознает нарушение уникального индекса, в том числе без TranslateError
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
