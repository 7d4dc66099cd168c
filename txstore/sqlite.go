package txstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/wbtc-cafe/convert-go/database"
)

// records are stored as opaque serialized snapshots keyed by id, the
// same shape the remote document store uses.
var recordTable = `CREATE TABLE IF NOT EXISTS tx_record (
	id CHAR(36) PRIMARY KEY NOT NULL,
	owner VARCHAR(130) NOT NULL,
	updated BIGINT NOT NULL,
	data BLOB NOT NULL,
	CONSTRAINT chk_id CHECK (id != ''),
	CONSTRAINT chk_owner CHECK (owner != '')
);
CREATE INDEX IF NOT EXISTS idx_tx_record_owner ON tx_record (owner);`

// SqliteBackend persists records to local device storage through a
// sqlite database file.
type SqliteBackend struct {
	stmtCache *database.StmtCache
}

func NewSqliteBackend(db *sql.DB) (*SqliteBackend, error) {
	if _, err := db.Exec(recordTable); err != nil {
		return nil, errors.Wrap(err, "creating tx_record table")
	}

	return &SqliteBackend{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (b *SqliteBackend) AddRecord(ctx context.Context, owner string, tx *Transaction) error {
	data, err := Encode(tx)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	// INSERT OR IGNORE keeps Add a no-op on duplicate ids at the
	// persistence layer too.
	query := `INSERT OR IGNORE INTO tx_record (id, owner, updated, data) VALUES (?, ?, ?, ?)`
	stmt, err := b.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, tx.ID, owner, tx.Updated.UnixMilli(), data)
	return errors.Wrap(err, "inserting record")
}

func (b *SqliteBackend) UpdateRecord(ctx context.Context, owner string, tx *Transaction) error {
	data, err := Encode(tx)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	query := `UPDATE tx_record SET updated = ?, data = ? WHERE id = ? AND owner = ?`
	stmt, err := b.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, tx.Updated.UnixMilli(), data, tx.ID, owner)
	if err != nil {
		return errors.Wrap(err, "updating record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("no record with id %s to update", tx.ID)
	}
	return nil
}

func (b *SqliteBackend) DeleteRecord(ctx context.Context, owner string, id string) error {
	query := `DELETE FROM tx_record WHERE id = ? AND owner = ?`
	stmt, err := b.stmtCache.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, id, owner)
	return errors.Wrap(err, "deleting record")
}

func (b *SqliteBackend) QueryByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	query := `SELECT data FROM tx_record WHERE owner = ? ORDER BY updated ASC`
	stmt, err := b.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		tx, err := Decode(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding record")
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (b *SqliteBackend) Close() error {
	b.stmtCache.Clear()
	return nil
}
