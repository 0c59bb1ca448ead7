package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"richCollab/backend/internal/ot/doc"
)

// SnapshotStore 把文档快照写入 document_snapshots 表：
//
//	document_id VARCHAR(36), revision BIGINT UNSIGNED, content MEDIUMBLOB,
//	checksum BIGINT UNSIGNED, created_at DATETIME,
//	UNIQUE KEY (document_id, revision)
type SnapshotStore struct{ db *sql.DB }

const snapshotDDL = `CREATE TABLE IF NOT EXISTS document_snapshots (
	document_id VARCHAR(36) NOT NULL,
	revision BIGINT UNSIGNED NOT NULL,
	content MEDIUMBLOB NOT NULL,
	checksum BIGINT UNSIGNED NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE KEY uk_doc_rev (document_id, revision)
)`

// EnsureSnapshotSchema 建表（已存在时不做任何事）
func EnsureSnapshotSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, snapshotDDL)
	return err
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) SaveDocumentSnapshot(ctx context.Context, docID string, rev uint64, span doc.Span) error {
	blob, sum, err := EncodeSnapshot(span)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_snapshots (document_id, revision, content, checksum, created_at)
		VALUES (?, ?, ?, ?, NOW())`,
		docID,
		rev,
		blob,
		sum,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 同一版本重复保存视为成功
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return err
	}
	return nil
}

// LoadLatestSnapshot 返回最新版本的快照，没有快照时 found 为 false。
func (s *SnapshotStore) LoadLatestSnapshot(ctx context.Context, docID string) (doc.Span, uint64, bool, error) {
	var (
		rev  uint64
		blob []byte
		sum  uint64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, content, checksum FROM document_snapshots
		WHERE document_id = ? ORDER BY revision DESC LIMIT 1`,
		docID,
	).Scan(&rev, &blob, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	span, err := DecodeSnapshot(blob, sum)
	if err != nil {
		return nil, 0, false, err
	}
	return span, rev, true, nil
}
