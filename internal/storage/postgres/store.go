// Package postgres хранит каталог, продажи, outbox и ключи идемпотентности в PostgreSQL
// через database/sql и драйвер pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	// opTimeout ограничивает одну операцию репозитория, включая транзакцию продажи.
	opTimeout = 5 * time.Second
	// pingTimeout ограничивает проверку соединения при Open и в health-пробе.
	pingTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
)

// Пул рассчитан на один экземпляр сервиса: транзакция продажи держит соединение
// на время блокировки строк products.
var poolSettings = struct {
	maxOpen, maxIdle         int
	maxLifetime, maxIdleTime time.Duration
}{
	maxOpen:     25,
	maxIdle:     25,
	maxLifetime: 30 * time.Minute,
	maxIdleTime: 5 * time.Minute,
}

// Store владеет пулом соединений; репозитории пакета создаются поверх него.
type Store struct {
	db *sql.DB
}

// Open подключается к базе по dsn и проверяет соединение ping'ом.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(poolSettings.maxOpen)
	db.SetMaxIdleConns(poolSettings.maxIdle)
	db.SetConnMaxLifetime(poolSettings.maxLifetime)
	db.SetConnMaxIdleTime(poolSettings.maxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул для миграций и тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все ещё не применённые up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// opContext ограничивает операцию outbox и идемпотентности: их порты не принимают ctx.
func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// withTx выполняет fn в транзакции: ошибка fn или commit откатывает всё.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
