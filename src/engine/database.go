package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"txn-db-golang/src/buffer"
	"txn-db-golang/src/catalog"
	"txn-db-golang/src/common"
	"txn-db-golang/src/config"
	"txn-db-golang/src/heap"
	"txn-db-golang/src/lock"
	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// Database wires the catalog, lock manager and page cache into one engine
// instance. Table files live under the configured data directory.
type Database struct {
	cfg   config.Config
	cat   *catalog.Catalog
	locks *lock.Manager
	pool  *buffer.Pool

	mu    sync.Mutex
	files []*heap.File
}

func Open(cfg config.Config) (*Database, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "engine: create data dir %s", cfg.Storage.DataDir)
	}
	if cfg.Storage.PageSize != storage.PageSize() {
		storage.SetPageSize(cfg.Storage.PageSize)
	}
	cat := catalog.New()
	locks := lock.NewManager()
	db := &Database{
		cfg:   cfg,
		cat:   cat,
		locks: locks,
		pool:  buffer.NewPool(cfg.Buffer.Capacity, cat, locks),
	}
	log.WithFields(log.Fields{
		"data_dir":  cfg.Storage.DataDir,
		"page_size": cfg.Storage.PageSize,
		"capacity":  cfg.Buffer.Capacity,
	}).Infof("Database opened.")
	return db, nil
}

// CreateTable opens (or creates) the table's file under the data directory
// and registers it. Calling it again for a known name returns the already
// open file, so it doubles as "open table" after a restart.
func (db *Database) CreateTable(name string, desc *tuple.Desc) (*heap.File, error) {
	if id, err := db.cat.TableId(name); err == nil {
		f, err := db.cat.FileForTable(id)
		if err != nil {
			return nil, err
		}
		hf, ok := f.(*heap.File)
		if !ok {
			return nil, errors.Errorf("engine: table %q is not a heap file", name)
		}
		if !hf.TupleDesc().Equals(desc) {
			return nil, errors.Errorf("engine: table %q exists with a different schema", name)
		}
		return hf, nil
	}
	f, err := heap.NewFile(filepath.Join(db.cfg.Storage.DataDir, name+".dat"), desc, db.pool)
	if err != nil {
		return nil, err
	}
	db.cat.AddTable(f, name)
	db.mu.Lock()
	db.files = append(db.files, f)
	db.mu.Unlock()
	log.WithFields(log.Fields{"table": name, "path": f.Path()}).Infof("Table created.")
	return f, nil
}

func (db *Database) Catalog() *catalog.Catalog {
	return db.cat
}

func (db *Database) Pool() *buffer.Pool {
	return db.pool
}

// Begin starts a transaction. There is nothing to allocate, a transaction is
// just an id until it touches pages.
func (db *Database) Begin() common.TransactionId {
	return common.NewTransactionId()
}

func (db *Database) Commit(tid common.TransactionId) error {
	return db.pool.CommitTransaction(tid)
}

func (db *Database) Abort(tid common.TransactionId) error {
	return db.pool.AbortTransaction(tid)
}

// Close flushes whatever is dirty, syncs the table files this engine opened
// and closes every registered file. Finish or abort running transactions
// first; a dirty page of a live transaction gets written out here. The first
// error is returned, the remaining steps still run.
func (db *Database) Close() error {
	first := db.pool.FlushAllPages()
	db.mu.Lock()
	files := db.files
	db.files = nil
	db.mu.Unlock()
	for _, f := range files {
		if err := f.Sync(); err != nil && first == nil {
			first = err
		}
	}
	if err := db.cat.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
