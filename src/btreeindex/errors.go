package btreeindex

import "errors"

var (
	// ErrBadIndexInfo is returned by Open when an existing index file's
	// meta page disagrees with the relation name, attribute offset, or
	// attribute type the caller supplied.
	ErrBadIndexInfo = errors.New("bad-index-info")

	// ErrBadScanRange is returned by StartScan when the inclusive bounds
	// (low+1 for GT, high-1 for LT) give lo > hi.
	ErrBadScanRange = errors.New("bad-scan-range")

	// ErrBadOpcodes is returned by StartScan when lowOp/highOp are outside
	// {GT,GTE}x{LT,LTE}.
	ErrBadOpcodes = errors.New("bad-opcodes")

	// ErrScanNotInitialized is returned by ScanNext/EndScan when no scan
	// is currently executing.
	ErrScanNotInitialized = errors.New("scan-not-initialized")

	// ErrIndexScanCompleted is returned by ScanNext once no further entry
	// qualifies under the scan's upper bound.
	ErrIndexScanCompleted = errors.New("index-scan-completed")
)
