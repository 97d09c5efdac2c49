package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQL streams the rows returned by query. Each row must have two columns,
// the document ID and its text; NULL text is treated as empty and such rows
// are skipped. Query and scan failures end the stream with ErrIO.
func SQL(ctx context.Context, db Queryer, query string) indexer.DocumentStream {
	return func(yield func(indexer.RawDocument, error) bool) {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			yield(indexer.RawDocument{}, fmt.Errorf("%w: querying corpus: %w", apperrors.ErrIO, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   string
				body sql.NullString
			)
			if err := rows.Scan(&id, &body); err != nil {
				yield(indexer.RawDocument{}, fmt.Errorf("%w: scanning corpus row: %w", apperrors.ErrIO, err))
				return
			}
			if !body.Valid || body.String == "" {
				continue
			}
			if !yield(indexer.RawDocument{ExternalID: id, Text: body.String}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(indexer.RawDocument{}, fmt.Errorf("%w: reading corpus rows: %w", apperrors.ErrIO, err))
		}
	}
}

// SQLSource reads a corpus table from PostgreSQL or SQLite.
type SQLSource struct {
	driver string
	query  string
	db     *sql.DB
	pg     *postgres.Client
}

// OpenSQL connects to the database named by cfg.Corpus. The "postgres"
// driver goes through pkg/postgres, using cfg.Corpus.SQLDSN when set and the
// postgres section otherwise. The "sqlite" driver opens SQLDSN as a file
// path or DSN.
func OpenSQL(ctx context.Context, cfg config.Config) (*SQLSource, error) {
	query := cfg.Corpus.SQLQuery
	if query == "" {
		return nil, fmt.Errorf("%w: corpus.sqlQuery is required for sql corpora", apperrors.ErrConfig)
	}
	switch cfg.Corpus.SQLDriver {
	case "postgres", "postgresql", "":
		client, err := postgres.Connect(ctx, cfg.Postgres, cfg.Corpus.SQLDSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrIO, err)
		}
		return &SQLSource{driver: "postgres", query: query, db: client.DB, pg: client}, nil
	case "sqlite", "sqlite3":
		if cfg.Corpus.SQLDSN == "" {
			return nil, fmt.Errorf("%w: corpus.sqlDsn is required for sqlite corpora", apperrors.ErrConfig)
		}
		db, err := sql.Open("sqlite", cfg.Corpus.SQLDSN)
		if err != nil {
			return nil, fmt.Errorf("%w: opening sqlite corpus: %w", apperrors.ErrIO, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: opening sqlite corpus: %w", apperrors.ErrIO, err)
		}
		return NewSQLSource(db, "sqlite", query), nil
	default:
		return nil, fmt.Errorf("%w: unknown corpus sql driver %q", apperrors.ErrConfig, cfg.Corpus.SQLDriver)
	}
}

// NewSQLSource wraps an open database. The source takes ownership of db.
func NewSQLSource(db *sql.DB, driver, query string) *SQLSource {
	return &SQLSource{driver: driver, query: query, db: db}
}

// Documents streams the corpus table. On PostgreSQL the scan runs in one
// read-only transaction.
func (s *SQLSource) Documents(ctx context.Context) indexer.DocumentStream {
	if s.pg == nil {
		return SQL(ctx, s.db, s.query)
	}
	return func(yield func(indexer.RawDocument, error) bool) {
		stopped := errors.New("stopped")
		err := s.pg.InTx(ctx, func(tx *sql.Tx) error {
			for doc, err := range SQL(ctx, tx, s.query) {
				if err != nil {
					return err
				}
				if !yield(doc, nil) {
					return stopped
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, stopped) {
			yield(indexer.RawDocument{}, err)
		}
	}
}

func (s *SQLSource) Describe() string { return "sql:" + s.driver }

func (s *SQLSource) Close() error {
	slog.Default().With("component", "corpus").Debug("closing sql corpus", "driver", s.driver)
	if s.pg != nil {
		return s.pg.Close()
	}
	return s.db.Close()
}
