// Package heapfile is a minimal fixed-width-record heap, the "heap scan"
// collaborator the B+ tree index's bulk build consumes (spec §4.2 step 3
// / §6). It is deliberately simple: out of scope of the index subsystem
// proper, it exists only so the index has a real source of (RecordId,
// payload) pairs to build from.
package heapfile

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
	"heapidx/src/storage/pagefile"
)

const pageHeaderSize = 2 // uint16 slot count

// RecordId identifies a tuple in the heap file by (page, slot).
type RecordId struct {
	PageNo pagefile.PageId
	SlotNo uint16
}

// HeapFile stores fixed-width records across pages allocated from a
// pagefile.Manager. Each page holds a uint16 record count followed by a
// packed array of RecordSize-byte slots; there is no tombstoning or
// compaction, matching the append-only, delete-free scope of this spec.
type HeapFile struct {
	pages      *pagefile.Manager
	recordSize int
	perPage    int
	lastPage   pagefile.PageId

	logger *zap.SugaredLogger
}

// Open wraps an already-open pagefile.Manager as a heap of fixed-size
// records. If the file is brand new (no pages yet), a single empty page is
// allocated as the first page.
func Open(pages *pagefile.Manager, recordSize int, logger *zap.SugaredLogger) (*HeapFile, error) {
	perPage := (pages.PageSize() - pageHeaderSize) / recordSize
	if perPage <= 0 {
		return nil, fmt.Errorf("heap record size %d does not fit page size %d", recordSize, pages.PageSize())
	}

	h := &HeapFile{
		pages:      pages,
		recordSize: recordSize,
		perPage:    perPage,
		logger:     logger,
	}

	h.lastPage = pages.LastPageNo()
	if h.lastPage == 0 {
		pageNo, _, err := pages.AllocatePage()
		if err != nil {
			return nil, fmt.Errorf("allocate initial heap page: %w", err)
		}
		h.lastPage = pageNo
	}

	return h, nil
}

func (h *HeapFile) RecordSize() int { return h.recordSize }

func slotCount(page []byte) uint16 {
	return binary.LittleEndian.Uint16(page[:pageHeaderSize])
}

func setSlotCount(page []byte, n uint16) {
	binary.LittleEndian.PutUint16(page[:pageHeaderSize], n)
}

func slotOffset(slot uint16, recordSize int) int {
	return pageHeaderSize + int(slot)*recordSize
}

// Insert appends record to the heap, allocating a new page if the current
// last page is full, and returns its RecordId.
func (h *HeapFile) Insert(record []byte) (RecordId, error) {
	if len(record) != h.recordSize {
		return RecordId{}, fmt.Errorf("insert record of %d bytes, want %d: %w", len(record), h.recordSize, ErrRecordTooLarge)
	}

	page, err := h.pages.ReadPage(h.lastPage)
	if err != nil {
		return RecordId{}, fmt.Errorf("read last heap page %d: %w", h.lastPage, err)
	}

	count := slotCount(page)
	if int(count) >= h.perPage {
		pageNo, newPage, err := h.pages.AllocatePage()
		if err != nil {
			return RecordId{}, fmt.Errorf("allocate heap page: %w", err)
		}
		h.lastPage = pageNo
		page = newPage
		count = 0
	}

	off := slotOffset(count, h.recordSize)
	copy(page[off:off+h.recordSize], record)
	setSlotCount(page, count+1)

	if err := h.pages.WritePage(h.lastPage, page); err != nil {
		return RecordId{}, fmt.Errorf("write heap page %d: %w", h.lastPage, err)
	}

	return RecordId{PageNo: h.lastPage, SlotNo: count}, nil
}

// Fetch returns the raw record bytes for rid.
func (h *HeapFile) Fetch(rid RecordId) ([]byte, error) {
	page, err := h.pages.ReadPage(rid.PageNo)
	if err != nil {
		return nil, fmt.Errorf("read heap page %d: %w", rid.PageNo, err)
	}
	if rid.SlotNo >= slotCount(page) {
		return nil, fmt.Errorf("slot %d out of range on heap page %d", rid.SlotNo, rid.PageNo)
	}
	off := slotOffset(rid.SlotNo, h.recordSize)
	out := make([]byte, h.recordSize)
	copy(out, page[off:off+h.recordSize])
	return out, nil
}

// FirstPage returns the heap's first page number, for a Scanner to start at.
func (h *HeapFile) FirstPage() pagefile.PageId { return h.pages.FirstPageNo() }

// LastPage returns the heap's current last (append target) page number.
func (h *HeapFile) LastPage() pagefile.PageId { return h.lastPage }

// Pages exposes the underlying page manager for the Scanner.
func (h *HeapFile) Pages() *pagefile.Manager { return h.pages }
