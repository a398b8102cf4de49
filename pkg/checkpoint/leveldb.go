package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/openlegis/govharvest/pkg/pagination"
)

const leveldbKeyPrefix = "ckpt:"

// LevelDBStore keeps cursors in an embedded LevelDB, pairing with the
// LevelDB ledger backend for single-process deployments.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (or creates) a checkpoint database at path. The
// path must differ from the ledger's.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Save implements Store.
func (s *LevelDBStore) Save(ctx context.Context, sourceKey string, cur pagination.Cursor) error {
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.db.Put([]byte(leveldbKeyPrefix+sourceKey), data, nil); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *LevelDBStore) Load(ctx context.Context, sourceKey string) (pagination.Cursor, error) {
	data, err := s.db.Get([]byte(leveldbKeyPrefix+sourceKey), nil)
	if err == leveldb.ErrNotFound {
		return pagination.Cursor{}, ErrNoCheckpoint
	}
	if err != nil {
		return pagination.Cursor{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var cur pagination.Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return pagination.Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return cur, nil
}

// Clear implements Store.
func (s *LevelDBStore) Clear(ctx context.Context, sourceKey string) error {
	if err := s.db.Delete([]byte(leveldbKeyPrefix+sourceKey), nil); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
