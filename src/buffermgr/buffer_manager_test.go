package buffermgr

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"heapidx/src/storage/pagefile"
)

func openTestFile(t *testing.T) *pagefile.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.db")
	f, err := pagefile.Open(path, 64, true, nil)
	if err != nil {
		t.Fatalf("pagefile.Open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAllocReadUnpinRoundTrip(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	pageNo, data, err := pool.Alloc(f)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	copy(data, bytes.Repeat([]byte{0xCD}, 64))
	if err := pool.Unpin(f, pageNo, true); err != nil {
		t.Fatalf("Unpin: %v", err)
	}

	got, err := pool.Read(f, pageNo)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xCD}, 64)) {
		t.Fatalf("Read returned stale data after dirty unpin")
	}
	if err := pool.Unpin(f, pageNo, false); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
}

func TestUnpinAlreadyZeroFails(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	pageNo, _, err := pool.Alloc(f)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := pool.Unpin(f, pageNo, false); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if err := pool.Unpin(f, pageNo, false); !errors.Is(err, ErrPageNotPinned) {
		t.Fatalf("second Unpin: got %v, want ErrPageNotPinned", err)
	}
}

func TestAllFramesPinned(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(3, 64, nil)

	var pinned []pagefile.PageId
	for i := 0; i < 3; i++ {
		pageNo, _, err := pool.Alloc(f)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		pinned = append(pinned, pageNo)
	}

	if _, _, err := pool.Alloc(f); !errors.Is(err, ErrAllFramesPinned) {
		t.Fatalf("Alloc with all frames pinned: got %v, want ErrAllFramesPinned", err)
	}

	if err := pool.Unpin(f, pinned[0], false); err != nil {
		t.Fatalf("Unpin: %v", err)
	}

	if _, _, err := pool.Alloc(f); err != nil {
		t.Fatalf("Alloc after unpin: %v", err)
	}
}

func TestFlushFileRequiresZeroPins(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	pageNo, data, err := pool.Alloc(f)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	copy(data, bytes.Repeat([]byte{0x42}, 64))

	if err := pool.FlushFile(f); !errors.Is(err, ErrPagePinned) {
		t.Fatalf("FlushFile while pinned: got %v, want ErrPagePinned", err)
	}

	if err := pool.Unpin(f, pageNo, true); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if err := pool.FlushFile(f); err != nil {
		t.Fatalf("FlushFile: %v", err)
	}

	onDisk, err := f.ReadPage(pageNo)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(onDisk, bytes.Repeat([]byte{0x42}, 64)) {
		t.Fatalf("FlushFile did not persist dirty page")
	}
}

func TestDisposePinnedFails(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	pageNo, _, err := pool.Alloc(f)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := pool.Dispose(f, pageNo); !errors.Is(err, ErrPagePinned) {
		t.Fatalf("Dispose while pinned: got %v, want ErrPagePinned", err)
	}
}

func TestCloseFailsWithOutstandingPin(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	if _, _, err := pool.Alloc(f); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := pool.Close(); err == nil {
		t.Fatalf("Close with pinned frame: got nil error")
	}
}

func TestCloseFlushesDirtyFrames(t *testing.T) {
	f := openTestFile(t)
	pool := NewPool(8, 64, nil)

	pageNo, data, err := pool.Alloc(f)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	copy(data, bytes.Repeat([]byte{0x7F}, 64))
	if err := pool.Unpin(f, pageNo, true); err != nil {
		t.Fatalf("Unpin: %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	onDisk, err := f.ReadPage(pageNo)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(onDisk, bytes.Repeat([]byte{0x7F}, 64)) {
		t.Fatalf("Close did not write back dirty frame")
	}
}
