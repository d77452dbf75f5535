package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/ValentinKolb/dotKV/lib/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const documentsTableName = "documents"

var log = logger.GetLogger("store")

// Backend is a store.IBackend persisting documents in SQLite.
type Backend struct {
	db *sql.DB
}

type collectionImpl struct {
	db   *sql.DB
	name string
}

// Open opens (or creates) the SQLite database at path and runs all pending migrations.
func Open(path string) (*Backend, error) {
	// 1. Use Write-Ahead Logging (WAL).
	// 2. Use synchronous=NORMAL, which is still safe in WAL mode.
	// 3. Wait for locks instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err = runMigrations(db, "sqlite3"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not run migrations")
	}

	log.Infof("opened sqlite backend at %s", path)
	return &Backend{db: db}, nil
}

func runMigrations(db *sql.DB, dialect string) error {
	m := &migrate.AssetMigrationSource{
		Asset: migrations.ReadFile,
		AssetDir: func(path string) ([]string, error) {
			dirEntry, err := migrations.ReadDir(path)
			if err != nil {
				return nil, err
			}
			entries := make([]string, 0, len(dirEntry))
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}
			return entries, nil
		},
		Dir: "migrations",
	}
	_, err := migrate.ExecMax(db, dialect, m, migrate.Up, 0)
	return err
}

// --------------------------------------------------------------------------
// Backend Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (b *Backend) Collection(name string) (store.IStore, error) {
	return &collectionImpl{db: b.db, name: name}, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return internalError(err, "ping failed")
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (c *collectionImpl) FindAll(ctx context.Context) ([]store.Document, error) {
	query := sq.Select("id", "key", "value", "revision").
		From(documentsTableName).
		Where(sq.Eq{"collection": c.name}).
		OrderBy("key asc")
	return c.selectDocs(ctx, query)
}

func (c *collectionImpl) FindOne(ctx context.Context, key string) (store.Document, bool, error) {
	query := sq.Select("id", "key", "value", "revision").
		From(documentsTableName).
		Where(sq.Eq{"collection": c.name, "key": key})
	docs, err := c.selectDocs(ctx, query)
	if err != nil {
		return store.Document{}, false, err
	}
	switch len(docs) {
	case 0:
		return store.Document{}, false, nil
	case 1:
		return docs[0], true, nil
	default:
		return store.Document{}, false, store.NewError(store.RetCInternalError,
			fmt.Sprintf("multiple documents (%d) for key %q in collection %q", len(docs), key, c.name))
	}
}

func (c *collectionImpl) InsertOne(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return store.NewError(store.RetCInvalidOperation, errors.Wrap(err, "could not encode value").Error())
	}
	query, args, err := sq.Insert(documentsTableName).
		Columns("collection", "key", "value").
		Values(c.name, key, string(encoded)).
		ToSql()
	if err != nil {
		return internalError(err, "could not build insert")
	}
	if _, err = c.db.ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return store.NewError(store.RetCDuplicateKey, fmt.Sprintf("duplicate key: %s", key))
		}
		return internalError(err, "insert failed")
	}
	return nil
}

func (c *collectionImpl) UpdateOne(ctx context.Context, key string, value any) (bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, store.NewError(store.RetCInvalidOperation, errors.Wrap(err, "could not encode value").Error())
	}
	query, args, err := sq.Update(documentsTableName).
		Set("value", string(encoded)).
		Set("revision", sq.Expr("revision + 1")).
		Where(sq.Eq{"collection": c.name, "key": key}).
		ToSql()
	if err != nil {
		return false, internalError(err, "could not build update")
	}
	n, err := c.exec(ctx, query, args, "update failed")
	return n > 0, err
}

func (c *collectionImpl) DeleteOne(ctx context.Context, key string) (bool, error) {
	query, args, err := sq.Delete(documentsTableName).
		Where(sq.Eq{"collection": c.name, "key": key}).
		ToSql()
	if err != nil {
		return false, internalError(err, "could not build delete")
	}
	n, err := c.exec(ctx, query, args, "delete failed")
	return n > 0, err
}

func (c *collectionImpl) DeleteMany(ctx context.Context) (int, error) {
	query, args, err := sq.Delete(documentsTableName).
		Where(sq.Eq{"collection": c.name}).
		ToSql()
	if err != nil {
		return 0, internalError(err, "could not build delete")
	}
	n, err := c.exec(ctx, query, args, "delete failed")
	return int(n), err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// exec runs a statement and returns the number of affected rows.
func (c *collectionImpl) exec(ctx context.Context, query string, args []any, msg string) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, internalError(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, internalError(err, msg)
	}
	return n, nil
}

func (c *collectionImpl) selectDocs(ctx context.Context, builder sq.SelectBuilder) ([]store.Document, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, internalError(err, "could not build select")
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalError(err, "select failed")
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var (
			id      int64
			doc     store.Document
			encoded string
		)
		if err := rows.Scan(&id, &doc.Key, &encoded, &doc.Revision); err != nil {
			return nil, internalError(err, "scan failed")
		}
		if err := json.Unmarshal([]byte(encoded), &doc.Value); err != nil {
			return nil, internalError(err, fmt.Sprintf("corrupt value for key %q", doc.Key))
		}
		doc.ID = strconv.FormatInt(id, 10)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError(err, "select failed")
	}
	return docs, nil
}

func internalError(err error, msg string) *store.Error {
	return store.NewError(store.RetCInternalError, errors.Wrap(err, msg).Error())
}
