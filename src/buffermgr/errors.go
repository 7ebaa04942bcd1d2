package buffermgr

import "errors"

var (
	// ErrAllFramesPinned is returned by Read/Alloc when the clock sweep
	// passes every frame in a row pinned, which happens within two
	// rotations (the first may only clear reference bits).
	ErrAllFramesPinned = errors.New("all-frames-pinned")

	// ErrPagePinned is returned by FlushFile/Dispose/Close when a page
	// they need to touch still has a nonzero pin count.
	ErrPagePinned = errors.New("page-pinned")

	// ErrPageNotPinned is returned by Unpin when the target frame's pin
	// count is already zero.
	ErrPageNotPinned = errors.New("page-not-pinned")

	// ErrBadBuffer is returned by FlushFile when it encounters a
	// descriptor claimed by the target file that is not marked valid.
	ErrBadBuffer = errors.New("bad-buffer")
)
