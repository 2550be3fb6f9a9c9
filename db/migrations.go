package db

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateActiveSessionIndex создает частичный уникальный индекс: для пары
// может существовать не более одной активной сессии. Это единственная точка
// сериализации открытия сессий между процессами.
func CreateActiveSessionIndex(db *gorm.DB) error {
	createIndexSQL := `
		CREATE UNIQUE INDEX IF NOT EXISTS ux_time_sessions_active_pair
		ON time_sessions (user_low, user_high)
		WHERE is_active;
	`
	if err := db.Exec(createIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create index ux_time_sessions_active_pair: %w", err)
	}

	// индекс для выборки истории пользователя по времени окончания
	createIndexSQL = `
		CREATE INDEX IF NOT EXISTS idx_time_sessions_closed_ended_at
		ON time_sessions (ended_at)
		WHERE NOT is_active;
	`
	if err := db.Exec(createIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create index idx_time_sessions_closed_ended_at: %w", err)
	}
	return nil
}
