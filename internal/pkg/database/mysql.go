// internal/pkg/database/mysql.go
package database

import (
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shopflow/internal/pkg/config"
)

// Open 建立 gorm 连接。DSN 会被补上 parseTime 和 UTC，保证 expires_at 这类时间比较正确。
func Open(cfg config.MySQLConfig) (*gorm.DB, error) {
	dsnCfg, err := mysqldriver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC

	db, err := gorm.Open(mysql.Open(dsnCfg.FormatDSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码
const mysqlDuplicateEntry = 1062

// IsDuplicateKey 判断是否为唯一索引冲突
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
