package pagefile

import "errors"

var (
	// ErrFileLocked is returned by Open when another handle already holds
	// the exclusive advisory lock on the same path.
	ErrFileLocked = errors.New("file-locked")

	// ErrChecksumMismatch is returned by ReadPage when a page's on-disk
	// trailer does not match the checksum recomputed over its payload.
	ErrChecksumMismatch = errors.New("page-checksum-mismatch")

	// ErrNoSuchPage is returned for a page number outside the file's
	// currently allocated range.
	ErrNoSuchPage = errors.New("no-such-page")

	// ErrFileNotFound is returned by Open when createIfMissing is false
	// and the path does not exist.
	ErrFileNotFound = errors.New("file-not-found")
)
