package btreeindex

import "heapidx/src/storage/heapfile"

// RecordId identifies a tuple in the heap file an index entry points at.
type RecordId = heapfile.RecordId

// AttrType tags the projected key's declared type. Only Integer is actually
// supported by this index (keys are fixed 32-bit signed integers), but the
// tag is still persisted and checked on reopen so a caller that passes a
// different type than the one the file was created with gets a clear error
// rather than silently misreading bytes.
type AttrType int32

const (
	AttrTypeInteger AttrType = iota
	AttrTypeDouble
	AttrTypeString
)

// ScanOp is a comparison operator for a scan bound.
type ScanOp int

const (
	OpGT ScanOp = iota
	OpGTE
	OpLT
	OpLTE
)

func isLowOp(op ScanOp) bool  { return op == OpGT || op == OpGTE }
func isHighOp(op ScanOp) bool { return op == OpLT || op == OpLTE }
