package pagefile

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestAllocateWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")

	mgr, err := Open(path, 64, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close()

	pageNo, payload, err := mgr.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if pageNo != 1 {
		t.Fatalf("first allocated page = %d, want 1", pageNo)
	}
	if !bytes.Equal(payload, make([]byte, 64)) {
		t.Fatalf("new page is not zeroed")
	}

	data := bytes.Repeat([]byte{0xAB}, 64)
	if err := mgr.WritePage(pageNo, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := mgr.ReadPage(pageNo)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadPage returned %x, want %x", got, data)
	}
}

func TestFirstPageNo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	mgr, err := Open(path, 64, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close()

	if got := mgr.FirstPageNo(); got != 0 {
		t.Fatalf("FirstPageNo on empty file = %d, want 0", got)
	}

	pageNo, _, err := mgr.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if got := mgr.FirstPageNo(); got != pageNo {
		t.Fatalf("FirstPageNo = %d, want %d", got, pageNo)
	}
}

func TestReadPageChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	mgr, err := Open(path, 64, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close()

	pageNo, _, err := mgr.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	// Corrupt the payload directly on disk, bypassing WritePage so the
	// trailer checksum goes stale.
	corrupt := bytes.Repeat([]byte{0xFF}, 64)
	slot := append(corrupt, make([]byte, checksumSize)...)
	if _, err := mgr.f.WriteAt(slot, mgr.offset(pageNo)); err != nil {
		t.Fatalf("corrupt page: %v", err)
	}

	if _, err := mgr.ReadPage(pageNo); err == nil {
		t.Fatalf("ReadPage on corrupted page: got nil error, want ErrChecksumMismatch")
	}
}

func TestOpenMissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	if _, err := Open(path, 64, false, nil); err == nil {
		t.Fatalf("Open on missing file without createIfMissing: got nil error")
	}
}

func TestOpenTwiceIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	first, err := Open(path, 64, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	if _, err := Open(path, 64, false, nil); err == nil {
		t.Fatalf("second Open on locked file: got nil error, want ErrFileLocked")
	}
}
