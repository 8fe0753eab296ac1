package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"net"

	"moodmate/app/config"

	_ "github.com/lib/pq"
	"github.com/samber/oops"
)

//go:embed migrations.sql
var migrations embed.FS

// PostgresStore keeps all partitions in a single kv_records table keyed
// by (partition, sort). Conditional puts map to INSERT ... ON CONFLICT
// DO NOTHING and Update runs under SELECT ... FOR UPDATE, so per-key
// operations stay linearizable across processes.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg config.DB) (*PostgresStore, error) {
	host, port, err := net.SplitHostPort(cfg.Host)
	if err != nil {
		host = cfg.Host
		port = "5432"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, cfg.User, cfg.Pass, cfg.Database)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, oops.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, oops.Errorf("failed to connect to database: %w", err)
	}

	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return nil, oops.Errorf("failed to read migrations: %w", err)
	}

	if _, err = db.Exec(string(migrationSQL)); err != nil {
		return nil, oops.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, partition, sortKey string, out any) error {
	var value []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE partition = $1 AND sort = $2`,
		partition, sortKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	return json.Unmarshal(value, out)
}

func (s *PostgresStore) Query(ctx context.Context, partition string, opts QueryOptions) ([]Record, error) {
	query := `SELECT sort, value FROM kv_records WHERE partition = $1`
	args := []any{partition}

	if opts.Prefix != "" {
		query += ` AND sort LIKE $2 || '%'`
		args = append(args, opts.Prefix)
	}

	if opts.Descending {
		query += ` ORDER BY sort DESC`
	} else {
		query += ` ORDER BY sort ASC`
	}

	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition: %w", err)
	}
	defer rows.Close()

	var result []Record

	for rows.Next() {
		rec := Record{Partition: partition}

		var value []byte
		if err = rows.Scan(&rec.Sort, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Value = value
		result = append(result, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return result, nil
}

func (s *PostgresStore) Put(ctx context.Context, partition, sortKey string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv_records (partition, sort, value) VALUES ($1, $2, $3)
		 ON CONFLICT (partition, sort) DO UPDATE SET value = EXCLUDED.value`,
		partition, sortKey, data)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}

	return nil
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, partition, sortKey string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (partition, sort, value) VALUES ($1, $2, $3)
		 ON CONFLICT (partition, sort) DO NOTHING`,
		partition, sortKey, data)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return ErrConflict
	}

	return nil
}

func (s *PostgresStore) Update(ctx context.Context, partition, sortKey string, fn func(raw json.RawMessage) (any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var value []byte

	err = tx.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE partition = $1 AND sort = $2 FOR UPDATE`,
		partition, sortKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock record: %w", err)
	}

	next, err := fn(value)
	if err != nil {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE kv_records SET value = $3 WHERE partition = $1 AND sort = $2`,
		partition, sortKey, data); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, partition, sortKey string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_records WHERE partition = $1 AND sort = $2`,
		partition, sortKey); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}

func (s *PostgresStore) DeleteIf(ctx context.Context, partition, sortKey string, fn func(raw json.RawMessage) (bool, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var value []byte

	err = tx.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE partition = $1 AND sort = $2 FOR UPDATE`,
		partition, sortKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to lock record: %w", err)
	}

	ok, err := fn(value)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM kv_records WHERE partition = $1 AND sort = $2`,
		partition, sortKey); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

func (s *PostgresStore) Shutdown() error {
	return s.db.Close()
}
