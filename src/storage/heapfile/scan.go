package heapfile

import (
	"fmt"

	"heapidx/src/storage/pagefile"
)

// Scanner walks every record of a HeapFile in (page, slot) order, from the
// first page to the last. It is the only way the B+ tree's bulk build reads
// source records: one pass, front to back, no seeking.
type Scanner struct {
	heap    *HeapFile
	page    pagefile.PageId
	last    pagefile.PageId
	slot    uint16
	count   uint16
	current []byte
	done    bool
}

// NewScanner opens a fresh, unstarted scan over heap.
func NewScanner(heap *HeapFile) *Scanner {
	return &Scanner{
		heap: heap,
		page: heap.FirstPage(),
		last: heap.LastPage(),
	}
}

// Next advances to the next record, returning its RecordId and payload. Once
// every record has been produced it returns ErrEndOfFile on every
// subsequent call.
func (s *Scanner) Next() (RecordId, []byte, error) {
	if s.done {
		return RecordId{}, nil, ErrEndOfFile
	}

	for {
		if s.page == 0 || s.page > s.last {
			s.done = true
			return RecordId{}, nil, ErrEndOfFile
		}

		if s.current == nil {
			page, err := s.heap.pages.ReadPage(s.page)
			if err != nil {
				return RecordId{}, nil, fmt.Errorf("scan heap page %d: %w", s.page, err)
			}
			s.current = page
			s.count = slotCount(page)
			s.slot = 0
		}

		if s.slot >= s.count {
			s.page++
			s.current = nil
			continue
		}

		off := slotOffset(s.slot, s.heap.recordSize)
		record := make([]byte, s.heap.recordSize)
		copy(record, s.current[off:off+s.heap.recordSize])
		rid := RecordId{PageNo: s.page, SlotNo: s.slot}
		s.slot++
		return rid, record, nil
	}
}
