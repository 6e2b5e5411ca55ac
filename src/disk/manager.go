package disk

import (
	"os"
	"sync"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"txn-db-golang/src/storage"
)

var (
	ErrPastEOF        = errors.New("disk: read past end of file")
	ErrNegativePageNo = errors.New("disk: page number is negative")
	ErrShortPage      = errors.New("disk: page data has wrong length")
)

// Manager moves fixed-size pages between memory and one table file. Pages
// live at offset pageNo*pageSize. Reads and writes use pread/pwrite, so
// concurrent calls never trample each other's file position.
type Manager struct {
	mu       sync.Mutex
	path     string
	fi       *os.File
	pageSize int
	direct   bool
}

// NewManager opens (or creates) the file at path. It prefers O_DIRECT and
// falls back to buffered I/O where direct I/O is unsupported, for example on
// tmpfs, or when the page size is not a multiple of the device block size.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, pageSize: storage.PageSize()}

	if m.pageSize%directio.BlockSize == 0 {
		fi, err := directio.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_SYNC, 0644)
		if err == nil {
			m.fi = fi
			m.direct = true
			return m, nil
		}
		log.WithError(err).WithField("path", path).
			Warnf("Direct I/O unavailable, falling back to buffered I/O.")
	}

	fi, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: open %s", path)
	}
	m.fi = fi
	return m, nil
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) PageSize() int {
	return m.pageSize
}

// NumPages reports how many whole pages the file currently holds.
func (m *Manager) NumPages() (int, error) {
	size, err := m.fileSize()
	if err != nil {
		return 0, err
	}
	return int(size / int64(m.pageSize)), nil
}

// ReadPageData returns the raw content of page pageNo.
func (m *Manager) ReadPageData(pageNo int) ([]byte, error) {
	if pageNo < 0 {
		return nil, ErrNegativePageNo
	}
	offset := int64(pageNo) * int64(m.pageSize)
	size, err := m.fileSize()
	if err != nil {
		return nil, err
	}
	if offset+int64(m.pageSize) > size {
		return nil, errors.Wrapf(ErrPastEOF, "page %d of %s", pageNo, m.path)
	}
	data := m.block()
	if _, err := m.fi.ReadAt(data, offset); err != nil {
		return nil, errors.Wrapf(err, "disk: read page %d of %s", pageNo, m.path)
	}
	return data, nil
}

// WritePageData stores data as page pageNo. Writing one page past the end
// grows the file; writing further past the end is rejected.
func (m *Manager) WritePageData(pageNo int, data []byte) error {
	if pageNo < 0 {
		return ErrNegativePageNo
	}
	if len(data) != m.pageSize {
		return errors.Wrapf(ErrShortPage, "got %d bytes, want %d", len(data), m.pageSize)
	}
	offset := int64(pageNo) * int64(m.pageSize)
	size, err := m.fileSize()
	if err != nil {
		return err
	}
	if offset > size {
		return errors.Errorf("disk: write page %d of %s would leave a hole", pageNo, m.path)
	}
	if m.direct {
		// O_DIRECT needs an aligned buffer; callers hand us ordinary slices.
		block := directio.AlignedBlock(m.pageSize)
		copy(block, data)
		data = block
	}
	if _, err := m.fi.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "disk: write page %d of %s", pageNo, m.path)
	}
	return nil
}

// AllocatePage appends a zeroed page and returns its page number.
func (m *Manager) AllocatePage() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.NumPages()
	if err != nil {
		return 0, err
	}
	if err := m.WritePageData(n, m.block()); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Manager) Sync() error {
	if err := m.fi.Sync(); err != nil {
		return errors.Wrapf(err, "disk: sync %s", m.path)
	}
	return nil
}

func (m *Manager) Close() error {
	return m.fi.Close()
}

func (m *Manager) fileSize() (int64, error) {
	stat, err := m.fi.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "disk: stat %s", m.path)
	}
	return stat.Size(), nil
}

// block allocates one page worth of bytes, aligned when running with direct
// I/O so the buffer can be handed straight to the kernel.
func (m *Manager) block() []byte {
	if m.direct {
		return directio.AlignedBlock(m.pageSize)
	}
	return make([]byte, m.pageSize)
}
