// Package storage persists materialized id sets as (key, member_id) rows in
// SQLite.
//
// Every mutation runs in its own transaction begun fresh on the *sql.DB
// pool and committed immediately. Callers are frequently inside a read-only
// ambient transaction of their own; beginning on the pool keeps that
// transaction untouched, makes materialized rows visible to other sessions
// at commit, and minimizes how long row locks are held.
package storage

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/evalkit/idjoin/errors"
)

// insertChunkSize bounds the number of rows per INSERT statement. SQLite
// limits bound variables per statement (999 by default on older builds);
// two variables per row keeps each chunk well below that.
const insertChunkSize = 400

// deleteChunkSize bounds the number of keys per DELETE statement, for the
// same limit.
const deleteChunkSize = 500

// RowStore executes inserts, deletes and counts against the idset_rows
// table.
type RowStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewRowStore creates a row store on the given database handle.
func NewRowStore(db *sql.DB, logger *zap.SugaredLogger) *RowStore {
	return &RowStore{
		db:     db,
		logger: logger,
	}
}

// InsertSet persists all members under key in one independent transaction.
// On any failure the transaction is rolled back and no rows remain.
func (s *RowStore) InsertSet(ctx context.Context, key string, members []int64) error {
	if len(members) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorage(err, "begin insert transaction")
	}
	defer tx.Rollback() // Rollback if not committed

	for start := 0; start < len(members); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(members) {
			end = len(members)
		}
		chunk := members[start:end]

		var q strings.Builder
		q.WriteString("INSERT INTO idset_rows (idset_key, member_id) VALUES ")
		args := make([]interface{}, 0, len(chunk)*2)
		for i, id := range chunk {
			if i > 0 {
				q.WriteString(",")
			}
			q.WriteString("(?, ?)")
			args = append(args, key, id)
		}

		if _, err := tx.ExecContext(ctx, q.String(), args...); err != nil {
			return errors.WrapStorage(err, "insert id set rows")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorage(err, "commit id set insert")
	}

	if s.logger != nil {
		s.logger.Debugw("Inserted id set rows",
			"key", key,
			"rows", len(members),
		)
	}
	return nil
}

// CountKey returns the number of persisted rows for key.
func (s *RowStore) CountKey(ctx context.Context, key string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM idset_rows WHERE idset_key = ?", key).Scan(&count)
	if err != nil {
		return 0, errors.WrapStorage(err, "count id set rows")
	}
	return count, nil
}

// DeleteKey removes every persisted row for key in one independent
// transaction.
func (s *RowStore) DeleteKey(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorage(err, "begin delete transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM idset_rows WHERE idset_key = ?", key)
	if err != nil {
		return errors.WrapStorage(err, "delete id set rows")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorage(err, "commit id set delete")
	}

	if s.logger != nil {
		deleted, _ := res.RowsAffected()
		s.logger.Debugw("Deleted id set rows",
			"key", key,
			"rows", deleted,
		)
	}
	return nil
}

// DeleteAll removes every persisted row across all keys in one independent
// transaction.
func (s *RowStore) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapStorage(err, "begin reset transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM idset_rows"); err != nil {
		return errors.WrapStorage(err, "delete all id set rows")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStorage(err, "commit id set reset")
	}

	if s.logger != nil {
		s.logger.Debugw("Deleted all id set rows")
	}
	return nil
}

// DeleteExcept removes persisted rows for every key not in keep and returns
// the number of rows deleted. An empty keep list deletes everything.
//
// The keep list can outgrow SQLite's bound-variable limit, so orphaned keys
// are resolved in memory and deleted in bounded chunks rather than through a
// single NOT IN over every kept key.
func (s *RowStore) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WrapStorage(err, "begin sweep transaction")
	}
	defer tx.Rollback()

	var deleted int64
	if len(keep) == 0 {
		res, err := tx.ExecContext(ctx, "DELETE FROM idset_rows")
		if err != nil {
			return 0, errors.WrapStorage(err, "sweep orphaned id set rows")
		}
		deleted, _ = res.RowsAffected()
	} else {
		orphans, err := orphanedKeys(ctx, tx, keep)
		if err != nil {
			return 0, err
		}
		for start := 0; start < len(orphans); start += deleteChunkSize {
			end := start + deleteChunkSize
			if end > len(orphans) {
				end = len(orphans)
			}
			chunk := orphans[start:end]

			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
			args := make([]interface{}, len(chunk))
			for i, k := range chunk {
				args[i] = k
			}
			res, err := tx.ExecContext(ctx,
				"DELETE FROM idset_rows WHERE idset_key IN ("+placeholders+")", args...)
			if err != nil {
				return 0, errors.WrapStorage(err, "sweep orphaned id set rows")
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.WrapStorage(err, "commit orphan sweep")
	}

	if s.logger != nil && deleted > 0 {
		s.logger.Infow("Swept orphaned id set rows",
			"rows", deleted,
			"keys_kept", len(keep),
		)
	}
	return deleted, nil
}

// orphanedKeys returns every persisted key absent from keep.
func orphanedKeys(ctx context.Context, tx *sql.Tx, keep []string) ([]string, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		kept[k] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT idset_key FROM idset_rows")
	if err != nil {
		return nil, errors.WrapStorage(err, "query persisted id set keys")
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.WrapStorage(err, "scan persisted id set key")
		}
		if _, ok := kept[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "iterate persisted id set keys")
	}
	return orphans, nil
}

// KeyCount is the persisted row count for one key.
type KeyCount struct {
	Key  string
	Rows int
}

// KeyCounts returns every persisted key with its row count, ordered by key.
func (s *RowStore) KeyCounts(ctx context.Context) ([]KeyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT idset_key, COUNT(*) FROM idset_rows GROUP BY idset_key ORDER BY idset_key")
	if err != nil {
		return nil, errors.WrapStorage(err, "query id set key counts")
	}
	defer rows.Close()

	var counts []KeyCount
	for rows.Next() {
		var kc KeyCount
		if err := rows.Scan(&kc.Key, &kc.Rows); err != nil {
			return nil, errors.WrapStorage(err, "scan id set key count")
		}
		counts = append(counts, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStorage(err, "iterate id set key counts")
	}
	return counts, nil
}
