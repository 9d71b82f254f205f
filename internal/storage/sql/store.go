package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (database/sql 适配)
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

const (
	driverMySQL    = "mysql"
	driverPostgres = "postgres"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	queries
	db     *sql.DB
	gormDB *gorm.DB // GORM 实例，仅用于迁移
}

// queries 承载全部数据存取实现，事务内外共用：
// Store 将其绑定到 *sql.DB，Tx 将其绑定到 *sql.Tx。
type queries struct {
	db     dbtx
	driver string
}

// dbtx 是 *sql.DB 与 *sql.Tx 的公共子集
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NewStore 创建 SQL 数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != driverMySQL && driverName != driverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// PostgreSQL 走 pgx 的 database/sql 适配驱动
	sqlDriver := driverName
	if driverName == driverPostgres {
		sqlDriver = "pgx"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	switch driverName {
	case driverMySQL:
		gormDB, err = gorm.Open(gormmysql.New(gormmysql.Config{Conn: db}), gormConfig)
	case driverPostgres:
		gormDB, err = gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		queries: queries{db: db, driver: driverName},
		db:      db,
		gormDB:  gormDB,
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// Begin 开启一次数据库事务
func (s *Store) Begin() (storage.Tx, error) {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{
		queries: queries{db: sqlTx, driver: s.driver},
		tx:      sqlTx,
	}, nil
}

// Tx 基于 *sql.Tx 的事务实现
type Tx struct {
	queries
	tx *sql.Tx
}

// Commit 提交事务
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback 回滚事务
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// migrate 执行数据库迁移（使用 GORM AutoMigrate）
func (s *Store) migrate() error {
	if s.gormDB == nil {
		return nil
	}

	return s.gormDB.AutoMigrate(
		&domain.Namespace{},
		&domain.PendingUser{},
		&domain.User{},
		&domain.Session{},
		&domain.Group{},
		&domain.GroupMembership{},
		&domain.Customer{},
		&domain.Contact{},
		&domain.NewsletterList{},
		&domain.NewsletterListContactRelation{},
	)
}

// rebind 将 `?` 占位符转换为当前驱动的占位符格式
func (q queries) rebind(query string) string {
	if q.driver != driverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// groupsTable 返回带引号的 groups 表名（GROUPS 在 MySQL 8 中是保留字）
func (q queries) groupsTable() string {
	if q.driver == driverMySQL {
		return "`groups`"
	}
	return `"groups"`
}

// isDuplicateKey 判断错误是否为唯一约束冲突
func isDuplicateKey(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}
