package heapfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"heapidx/src/storage/pagefile"
)

func openTestHeap(t *testing.T, recordSize int) *HeapFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heap.db")
	pages, err := pagefile.Open(path, 256, true, nil)
	if err != nil {
		t.Fatalf("pagefile.Open: %v", err)
	}
	t.Cleanup(func() { pages.Close() })

	h, err := Open(pages, recordSize, nil)
	if err != nil {
		t.Fatalf("heapfile.Open: %v", err)
	}
	return h
}

func record(n int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b
}

func TestInsertFetchRoundTrip(t *testing.T) {
	h := openTestHeap(t, 4)

	rid, err := h.Insert(record(42))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := h.Fetch(rid)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, record(42)) {
		t.Fatalf("Fetch = %x, want %x", got, record(42))
	}
}

func TestInsertSpansMultiplePages(t *testing.T) {
	h := openTestHeap(t, 4)

	const n = 200
	rids := make([]RecordId, n)
	for i := 0; i < n; i++ {
		rid, err := h.Insert(record(int32(i)))
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		rids[i] = rid
	}

	if h.LastPage() == h.FirstPage() {
		t.Fatalf("expected records to overflow onto a second page")
	}

	for i, rid := range rids {
		got, err := h.Fetch(rid)
		if err != nil {
			t.Fatalf("Fetch(%d): %v", i, err)
		}
		if !bytes.Equal(got, record(int32(i))) {
			t.Fatalf("record %d = %x, want %x", i, got, record(int32(i)))
		}
	}
}

func TestInsertWrongSize(t *testing.T) {
	h := openTestHeap(t, 4)
	if _, err := h.Insert([]byte{1, 2, 3}); !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("Insert with wrong size: got %v, want ErrRecordTooLarge", err)
	}
}

func TestScannerVisitsEveryRecordInOrder(t *testing.T) {
	h := openTestHeap(t, 4)

	const n = 150
	for i := 0; i < n; i++ {
		if _, err := h.Insert(record(int32(i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	scanner := NewScanner(h)
	for i := 0; i < n; i++ {
		_, got, err := scanner.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if !bytes.Equal(got, record(int32(i))) {
			t.Fatalf("record %d = %x, want %x", i, got, record(int32(i)))
		}
	}

	if _, _, err := scanner.Next(); !errors.Is(err, ErrEndOfFile) {
		t.Fatalf("Next past end: got %v, want ErrEndOfFile", err)
	}
	if _, _, err := scanner.Next(); !errors.Is(err, ErrEndOfFile) {
		t.Fatalf("Next after exhaustion: got %v, want ErrEndOfFile", err)
	}
}

func TestScannerOnEmptyHeap(t *testing.T) {
	h := openTestHeap(t, 4)
	scanner := NewScanner(h)
	if _, _, err := scanner.Next(); !errors.Is(err, ErrEndOfFile) {
		t.Fatalf("Next on empty heap: got %v, want ErrEndOfFile", err)
	}
}
