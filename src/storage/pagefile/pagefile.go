// Package pagefile is the fixed-size block storage layer consumed by the
// buffer pool manager. It is out of scope of the index subsystem proper —
// the buffer pool only needs Open/ReadPage/WritePage/AllocatePage/DeletePage
// — but something has to actually put bytes on disk, so this package is a
// small, concrete stand-in for it.
package pagefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"
)

// DefaultPageSize matches the common 8 KiB page used across the corpus this
// was grounded on (PostgreSQL's default, also used by the buffer pool).
const DefaultPageSize = 8 * 1024

const checksumSize = 32 // blake2b-256

// PageId identifies a page within a file. Zero is reserved for "no page".
type PageId uint32

// Manager is a fixed-size paged file: every slot is PageSize payload bytes
// followed by a blake2b-256 checksum trailer, numbered from 1.
type Manager struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	pageSize   int
	nextPageNo uint32 // last PageId allocated (page count); AllocatePage hands out nextPageNo+1

	logger *zap.SugaredLogger
}

func slotSize(pageSize int) int64 { return int64(pageSize) + checksumSize }

// Open opens path as a page file, creating it (via a temp-file-then-rename
// sequence so a crash mid-create never leaves a half-written file at path)
// if createIfMissing is true and the file does not exist. The returned
// Manager holds an exclusive, non-blocking advisory lock on the file for its
// entire lifetime: this is a concrete enforcement, at the OS level, of the
// single-mutator contract the index subsystem already assumes.
func Open(path string, pageSize int, createIfMissing bool, logger *zap.SugaredLogger) (*Manager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if !exists && !createIfMissing {
		return nil, fmt.Errorf("open %s: %w", path, ErrFileNotFound)
	}

	if !exists {
		if err := createEmpty(path); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, ErrFileLocked)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	nextPageNo := uint32(info.Size() / slotSize(pageSize))

	mgr := &Manager{
		path:       path,
		f:          f,
		pageSize:   pageSize,
		nextPageNo: nextPageNo,
		logger:     logger,
	}

	if logger != nil {
		logger.Debugw("opened page file", "path", path, "pages", nextPageNo, "pageSize", pageSize)
	}

	return mgr, nil
}

// createEmpty creates an empty page file atomically: write to a uuid-suffixed
// temp file in the same directory, then rename over the real path.
func createEmpty(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create temp page file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp page file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp page file %s -> %s: %w", tmp, path, err)
	}
	return nil
}

// PageSize returns the file's configured payload size per page.
func (m *Manager) PageSize() int { return m.pageSize }

// FirstPageNo returns the page number of the file's first page, or 0 if the
// file has no pages yet.
func (m *Manager) FirstPageNo() PageId {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextPageNo == 0 {
		return 0
	}
	return 1
}

// LastPageNo returns the page number of the most recently allocated page, or
// 0 if the file has no pages yet.
func (m *Manager) LastPageNo() PageId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PageId(m.nextPageNo)
}

func (m *Manager) offset(pageNo PageId) int64 {
	return int64(pageNo-1) * slotSize(m.pageSize)
}

// ReadPage reads the payload of pageNo, verifying its checksum trailer.
func (m *Manager) ReadPage(pageNo PageId) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pageNo == 0 || uint32(pageNo) > m.nextPageNo {
		return nil, fmt.Errorf("read page %d: %w", pageNo, ErrNoSuchPage)
	}

	slot := make([]byte, slotSize(m.pageSize))
	if _, err := unix.Pread(int(m.f.Fd()), slot, m.offset(pageNo)); err != nil {
		return nil, fmt.Errorf("pread page %d: %w", pageNo, err)
	}

	payload := slot[:m.pageSize]
	wantSum := slot[m.pageSize:]
	gotSum := blake2b.Sum256(payload)
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, fmt.Errorf("read page %d: %w", pageNo, ErrChecksumMismatch)
	}

	out := make([]byte, m.pageSize)
	copy(out, payload)
	return out, nil
}

// WritePage overwrites the payload of pageNo and recomputes its checksum.
func (m *Manager) WritePage(pageNo PageId, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(pageNo, data)
}

func (m *Manager) writeLocked(pageNo PageId, data []byte) error {
	if pageNo == 0 || uint32(pageNo) > m.nextPageNo {
		return fmt.Errorf("write page %d: %w", pageNo, ErrNoSuchPage)
	}
	if len(data) != m.pageSize {
		return fmt.Errorf("write page %d: payload is %d bytes, want %d", pageNo, len(data), m.pageSize)
	}

	slot := make([]byte, slotSize(m.pageSize))
	copy(slot, data)
	sum := blake2b.Sum256(data)
	copy(slot[m.pageSize:], sum[:])

	if _, err := unix.Pwrite(int(m.f.Fd()), slot, m.offset(pageNo)); err != nil {
		return fmt.Errorf("pwrite page %d: %w", pageNo, err)
	}
	return nil
}

// AllocatePage appends a new zeroed page to the file and returns its number
// and payload.
func (m *Manager) AllocatePage() (PageId, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPageNo++
	pageNo := PageId(m.nextPageNo)
	payload := make([]byte, m.pageSize)

	if err := m.writeLocked(pageNo, payload); err != nil {
		m.nextPageNo--
		return 0, nil, err
	}

	if m.logger != nil {
		m.logger.Debugw("allocated page", "path", m.path, "page", pageNo)
	}

	return pageNo, payload, nil
}

// DeletePage zeroes pageNo's slot. Page numbers are never reused: the index
// layer built on top never destroys nodes on the insert/scan paths (per the
// B+ tree's own invariants), so a free list would have no caller.
func (m *Manager) DeletePage(pageNo PageId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(pageNo, make([]byte, m.pageSize))
}

// Close releases the advisory lock and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := unix.Flock(int(m.f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock %s: %w", m.path, err)
	}
	return m.f.Close()
}
