package db

import (
	"fmt"
	"log"
	"time"

	"friendtime/config"
	"friendtime/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var ORM *gorm.DB

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
			NoLowerCase:   false,
		},
		// Нарушение уникального индекса приходит как gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func ConnectDB() (err error) {
	if ORM != nil {
		log.Println("ORM is already initialized")
		return nil
	}

	conf := config.AppConfig
	if conf == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}

	var db *gorm.DB
	if conf.Databases.SQLitePath != "" {
		db, err = OpenSQLite(conf.Databases.SQLitePath)
		if err != nil {
			return err
		}
	} else {
		if conf.Databases.Master.Host == "" {
			return fmt.Errorf("Master database configuration is missing")
		}

		// Мастер для записи, реплики для чтения статистики
		masterDSN := dsnFromConfig(conf.Databases.Master)
		replicaDSNs := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
		for _, r := range conf.Databases.Replicas {
			replicaDSNs = append(replicaDSNs, postgres.Open(dsnFromConfig(r)))
		}

		db, err = gorm.Open(postgres.Open(masterDSN), gormConfig())
		if err != nil {
			return err
		}

		if len(replicaDSNs) > 0 {
			err = db.Use(dbresolver.Register(dbresolver.Config{
				Replicas: replicaDSNs,
				Policy:   dbresolver.RandomPolicy{},
			}))
			if err != nil {
				return
			}
		}
	}

	if err = Migrate(db); err != nil {
		return err
	}

	ORM = db
	return nil
}

// OpenSQLite открывает SQLite (тесты и локальный запуск). Одно соединение:
// SQLite не допускает параллельной записи.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate создает таблицы и индексы
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.User{}, &models.Friendship{}, &models.Position{}, &models.TimeSession{})
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return CreateActiveSessionIndex(db)
}
