package btreeindex

import (
	"fmt"

	"heapidx/src/storage/pagefile"
)

// StartScan begins a range scan over [low, high] (bounds canonicalized from
// the given operators to inclusive form). Only one scan may be active per
// index; a scan already in progress is ended first.
func (idx *Index) StartScan(low int32, lowOp ScanOp, high int32, highOp ScanOp) error {
	idx.debugw("start scan", "low", low, "low_op", lowOp, "high", high, "high_op", highOp)
	if !isLowOp(lowOp) || !isHighOp(highOp) {
		return ErrBadOpcodes
	}

	lo := low
	if lowOp == OpGT {
		lo = low + 1
	}
	hi := high
	if highOp == OpLT {
		hi = high - 1
	}
	if lo > hi {
		return ErrBadScanRange
	}

	if idx.scan.executing {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}

	leafPageNo, err := idx.findLeafForKey(lo)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	data, err := idx.pool.Read(idx.pages, leafPageNo)
	if err != nil {
		return fmt.Errorf("start scan: pin leaf %d: %w", leafPageNo, err)
	}
	leaf := decodeLeaf(data, idx.leafCap)

	nextEntry := 0
	for nextEntry < leaf.num && leaf.keys[nextEntry] < lo {
		nextEntry++
	}

	idx.scan = scanState{
		executing:     true,
		lo:            lo,
		hi:            hi,
		currentPageNo: leafPageNo,
		currentData:   data,
		nextEntry:     nextEntry,
	}
	return nil
}

// ScanNext returns the next qualifying record id, or ErrIndexScanCompleted
// once the upper bound or the end of the sibling chain is reached (the
// current leaf is unpinned in both cases).
func (idx *Index) ScanNext() (RecordId, error) {
	if !idx.scan.executing {
		return RecordId{}, ErrScanNotInitialized
	}

	for {
		leaf := decodeLeaf(idx.scan.currentData, idx.leafCap)

		if idx.scan.nextEntry >= leaf.num {
			rightSib := leaf.rightSib
			if err := idx.pool.Unpin(idx.pages, idx.scan.currentPageNo, false); err != nil {
				return RecordId{}, err
			}
			if rightSib == 0 {
				idx.scan.executing = false
				return RecordId{}, ErrIndexScanCompleted
			}
			data, err := idx.pool.Read(idx.pages, rightSib)
			if err != nil {
				return RecordId{}, err
			}
			idx.scan.currentPageNo = rightSib
			idx.scan.currentData = data
			idx.scan.nextEntry = 0
			continue
		}

		if leaf.keys[idx.scan.nextEntry] <= idx.scan.hi {
			rid := leaf.rids[idx.scan.nextEntry]
			idx.scan.nextEntry++
			idx.debugw("scan next", "key", leaf.keys[idx.scan.nextEntry-1], "rid", rid)
			return rid, nil
		}

		if err := idx.pool.Unpin(idx.pages, idx.scan.currentPageNo, false); err != nil {
			return RecordId{}, err
		}
		idx.scan.executing = false
		return RecordId{}, ErrIndexScanCompleted
	}
}

// EndScan unpins the current leaf (not dirty — a scan never mutates) and
// resets scan state to inactive.
func (idx *Index) EndScan() error {
	if !idx.scan.executing {
		return ErrScanNotInitialized
	}
	if err := idx.pool.Unpin(idx.pages, idx.scan.currentPageNo, false); err != nil {
		return err
	}
	idx.scan = scanState{}
	return nil
}

// findLeafForKey descends from the root to the leaf that could contain key,
// pinning and unpinning each non-leaf page along the way but leaving the
// final leaf page unpinned — the caller pins it.
func (idx *Index) findLeafForKey(key int32) (pagefile.PageId, error) {
	pageNo := idx.rootPageNo
	isLeaf := idx.rootIsLeaf

	for !isLeaf {
		data, err := idx.pool.Read(idx.pages, pageNo)
		if err != nil {
			return 0, fmt.Errorf("descend to page %d: %w", pageNo, err)
		}
		node := decodeNonLeaf(data, idx.nonLeafCap)
		childIdx := findChildIndex(node, key)
		childPageNo := node.children[childIdx]
		childIsLeaf := node.level == 1

		if err := idx.pool.Unpin(idx.pages, pageNo, false); err != nil {
			return 0, err
		}
		pageNo = childPageNo
		isLeaf = childIsLeaf
	}

	return pageNo, nil
}
