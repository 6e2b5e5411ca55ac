package catalog

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"txn-db-golang/src/storage"
	"txn-db-golang/src/tuple"
)

// Catalog maps table names to their files. It satisfies the pool's
// FileLookup, which is how pages find their way back to the right file.
type Catalog struct {
	mu      sync.RWMutex
	byName  map[string]int
	byId    map[int]storage.DbFile
	nameFor map[int]string
}

func New() *Catalog {
	return &Catalog{
		byName:  make(map[string]int),
		byId:    make(map[int]storage.DbFile),
		nameFor: make(map[int]string),
	}
}

// AddTable registers f under name. Re-registering a name points it at the
// new file; the old file stays reachable by id until closed.
func (c *Catalog) AddTable(f storage.DbFile, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byName[name]; ok && old != f.ID() {
		log.Warnf("Table %q rebound from id %d to id %d.", name, old, f.ID())
		delete(c.nameFor, old)
	}
	c.byName[name] = f.ID()
	c.byId[f.ID()] = f
	c.nameFor[f.ID()] = name
}

func (c *Catalog) FileForTable(tableId int) (storage.DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byId[tableId]
	if !ok {
		return nil, errors.Errorf("catalog: no table with id %d", tableId)
	}
	return f, nil
}

func (c *Catalog) TableId(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return 0, errors.Errorf("catalog: no table named %q", name)
	}
	return id, nil
}

func (c *Catalog) TableName(tableId int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.nameFor[tableId]
	if !ok {
		return "", errors.Errorf("catalog: no table with id %d", tableId)
	}
	return name, nil
}

func (c *Catalog) TupleDesc(tableId int) (*tuple.Desc, error) {
	f, err := c.FileForTable(tableId)
	if err != nil {
		return nil, err
	}
	return f.TupleDesc(), nil
}

// TableNames lists the registered tables, sorted for stable output.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every registered file and empties the catalog. The first
// error is returned, remaining files are still closed.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for id, f := range c.byId {
		if err := f.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "catalog: close table %d", id)
		}
	}
	c.byName = make(map[string]int)
	c.byId = make(map[int]storage.DbFile)
	c.nameFor = make(map[int]string)
	return first
}
