package heapfile

import "errors"

var (
	// ErrEndOfFile is the "expected" termination signal a heap scan raises
	// once every record has been produced — the B+ tree bulk-build loop
	// catches exactly this error to end cleanly.
	ErrEndOfFile = errors.New("end-of-file")

	// ErrRecordTooLarge is returned by Insert when a record's length is not
	// the heap file's fixed record size, shorter records included.
	ErrRecordTooLarge = errors.New("record-too-large")
)
