package txstore

import (
	"context"
	"database/sql"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

var pgRecordTable = `CREATE TABLE IF NOT EXISTS tx_record (
	id CHAR(36) PRIMARY KEY NOT NULL,
	owner CHAR(64) NOT NULL,
	updated BIGINT NOT NULL,
	data JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tx_record_owner ON tx_record (owner);`

// PostgresBackend is the remote per-identity document store. Records are
// keyed by an owner derived from the wallet address and its verifying
// signature, so one identity can only ever query its own documents.
type PostgresBackend struct {
	db *sql.DB
}

func OpenPostgresBackend(dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres backend")
	}
	if _, err := db.Exec(pgRecordTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating tx_record table")
	}
	return &PostgresBackend{db: db}, nil
}

// OwnerKey derives the remote document-store identity from the wallet
// address and the signature that proved control of it.
func OwnerKey(address string, signature []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(address))
	h.Write(signature)
	return ethcommon.Bytes2Hex(h.Sum(nil))
}

func (b *PostgresBackend) AddRecord(ctx context.Context, owner string, tx *Transaction) error {
	data, err := Encode(tx)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	query := `INSERT INTO tx_record (id, owner, updated, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	_, err = b.db.ExecContext(ctx, query, tx.ID, owner, tx.Updated.UnixMilli(), data)
	return errors.Wrap(err, "inserting record")
}

func (b *PostgresBackend) UpdateRecord(ctx context.Context, owner string, tx *Transaction) error {
	data, err := Encode(tx)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	query := `UPDATE tx_record SET updated = $1, data = $2 WHERE id = $3 AND owner = $4`
	res, err := b.db.ExecContext(ctx, query, tx.Updated.UnixMilli(), data, tx.ID, owner)
	if err != nil {
		return errors.Wrap(err, "updating record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("no record with id %s to update", tx.ID)
	}
	return nil
}

func (b *PostgresBackend) DeleteRecord(ctx context.Context, owner string, id string) error {
	query := `DELETE FROM tx_record WHERE id = $1 AND owner = $2`
	_, err := b.db.ExecContext(ctx, query, id, owner)
	return errors.Wrap(err, "deleting record")
}

func (b *PostgresBackend) QueryByOwner(ctx context.Context, owner string) ([]*Transaction, error) {
	query := `SELECT data FROM tx_record WHERE owner = $1 ORDER BY updated ASC`
	rows, err := b.db.QueryContext(ctx, query, owner)
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

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
