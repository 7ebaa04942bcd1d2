// Package buffermgr implements a fixed-size buffer pool over pagefile.Manager
// files, using clock (second-chance) replacement. It is the sole owner of
// every page frame in the process: callers obtain a borrowed view of a page
// via Read or Alloc and must release it via Unpin before it can be evicted.
package buffermgr

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"heapidx/src/storage/pagefile"
)

// DefaultFrameCount mirrors the corpus's usual default pool size.
const DefaultFrameCount = 1000

// FrameDescriptor is the metadata tracked for one frame of the pool.
type FrameDescriptor struct {
	File     *pagefile.Manager
	PageNo   pagefile.PageId
	PinCount int
	Dirty    bool
	Valid    bool // descriptor refers to a real resident page
	RefBit   bool // used by the clock sweep
}

type frameKey struct {
	file   *pagefile.Manager
	pageNo pagefile.PageId
}

// Pool is a fixed-size buffer pool. All methods are safe to call
// concurrently, but the subsystems built on top of it (a single B+ tree
// index, say) are expected to serialize their own mutating calls.
type Pool struct {
	mu          sync.Mutex
	frames      [][]byte
	descriptors []FrameDescriptor
	index       map[frameKey]int
	clockHand   int
	numFrames   int
	pageSize    int

	hits      uint64
	misses    uint64
	evictions uint64

	// instanceID distinguishes this pool's log lines from any other pool's
	// in the same process — useful when tests or a multi-index process
	// run several pools concurrently.
	instanceID uuid.UUID

	logger *zap.SugaredLogger
}

// NewPool allocates a pool of frameCount frames, each pageSize bytes.
func NewPool(frameCount, pageSize int, logger *zap.SugaredLogger) *Pool {
	if frameCount <= 0 {
		frameCount = DefaultFrameCount
	}
	if pageSize <= 0 {
		pageSize = pagefile.DefaultPageSize
	}

	p := &Pool{
		frames:      make([][]byte, frameCount),
		descriptors: make([]FrameDescriptor, frameCount),
		index:       make(map[frameKey]int, frameCount),
		numFrames:   frameCount,
		pageSize:    pageSize,
		instanceID:  uuid.New(),
		logger:      logger,
	}
	for i := range p.frames {
		p.frames[i] = make([]byte, pageSize)
	}
	return p
}

// debugw and infow log with this pool's instance id attached to every line,
// and are no-ops when no logger was injected.
func (p *Pool) debugw(msg string, keysAndValues ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Debugw(msg, append([]interface{}{"pool_id", p.instanceID}, keysAndValues...)...)
}

func (p *Pool) infow(msg string, keysAndValues ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Infow(msg, append([]interface{}{"pool_id", p.instanceID}, keysAndValues...)...)
}

// Read pins pageNo of file, reading it from storage on a cache miss, and
// returns the pool's live backing slice for it — mutations the caller makes
// are visible to anyone else holding the same pin, which is the point: the
// caller marks the page dirty via Unpin when it has actually mutated it.
func (p *Pool) Read(file *pagefile.Manager, pageNo pagefile.PageId) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := frameKey{file, pageNo}
	if idx, ok := p.index[key]; ok {
		p.hits++
		d := &p.descriptors[idx]
		d.PinCount++
		d.RefBit = true
		return p.frames[idx], nil
	}
	p.misses++

	idx, err := p.evictVictim()
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageNo, err)
	}

	data, err := file.ReadPage(pageNo)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageNo, err)
	}
	copy(p.frames[idx], data)

	p.descriptors[idx] = FrameDescriptor{
		File: file, PageNo: pageNo,
		PinCount: 1, Dirty: false, Valid: true, RefBit: true,
	}
	p.index[key] = idx

	return p.frames[idx], nil
}

// Alloc asks file's storage layer for a brand-new page, admits it to a
// frame with pin count 1, and returns its page number and backing slice.
func (p *Pool) Alloc(file *pagefile.Manager) (pagefile.PageId, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pageNo, payload, err := file.AllocatePage()
	if err != nil {
		return 0, nil, fmt.Errorf("alloc page: %w", err)
	}

	idx, err := p.evictVictim()
	if err != nil {
		return 0, nil, fmt.Errorf("alloc page: %w", err)
	}
	copy(p.frames[idx], payload)

	key := frameKey{file, pageNo}
	p.descriptors[idx] = FrameDescriptor{
		File: file, PageNo: pageNo,
		PinCount: 1, Dirty: false, Valid: true, RefBit: false,
	}
	p.index[key] = idx

	return pageNo, p.frames[idx], nil
}

// Unpin decrements the pin count of (file, pageNo) and ORs in becameDirty.
// A page absent from the pool is silently ignored, matching the contract:
// by the time a caller unpins, the page may already have been flushed away.
func (p *Pool) Unpin(file *pagefile.Manager, pageNo pagefile.PageId, becameDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[frameKey{file, pageNo}]
	if !ok {
		return nil
	}

	d := &p.descriptors[idx]
	if d.PinCount == 0 {
		return fmt.Errorf("unpin page %d: %w", pageNo, ErrPageNotPinned)
	}
	d.PinCount--
	d.Dirty = d.Dirty || becameDirty
	return nil
}

// FlushFile writes every dirty resident page of file to storage and evicts
// them from the pool. Every page of file must have a zero pin count.
func (p *Pool) FlushFile(file *pagefile.Manager) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.descriptors {
		d := &p.descriptors[i]
		if d.File != file {
			continue
		}
		if !d.Valid {
			return fmt.Errorf("flush file: %w", ErrBadBuffer)
		}
		if d.PinCount > 0 {
			return fmt.Errorf("flush file: page %d: %w", d.PageNo, ErrPagePinned)
		}
	}

	for i := range p.descriptors {
		d := &p.descriptors[i]
		if d.File != file || !d.Valid {
			continue
		}
		if d.Dirty {
			if err := file.WritePage(d.PageNo, p.frames[i]); err != nil {
				return fmt.Errorf("flush file: write page %d: %w", d.PageNo, err)
			}
		}
		delete(p.index, frameKey{file, d.PageNo})
		*d = FrameDescriptor{}
	}

	p.debugw("flushed file", "file", file)
	return nil
}

// Dispose evicts pageNo from the pool, if resident, and frees it in storage.
func (p *Pool) Dispose(file *pagefile.Manager, pageNo pagefile.PageId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := frameKey{file, pageNo}
	if idx, ok := p.index[key]; ok {
		d := &p.descriptors[idx]
		if d.PinCount > 0 {
			return fmt.Errorf("dispose page %d: %w", pageNo, ErrPagePinned)
		}
		delete(p.index, key)
		*d = FrameDescriptor{}
	}

	return file.DeletePage(pageNo)
}

// Close errors if any frame is still pinned, then writes back every dirty
// valid frame. It does not close any underlying pagefile.Manager — those are
// owned by whoever opened them.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	for i := range p.descriptors {
		d := &p.descriptors[i]
		if d.Valid && d.PinCount > 0 {
			errs = multierr.Append(errs, fmt.Errorf("frame %d holding page %d: %w", i, d.PageNo, ErrPagePinned))
		}
	}
	if errs != nil {
		return errs
	}

	for i := range p.descriptors {
		d := &p.descriptors[i]
		if d.Valid && d.Dirty {
			if err := d.File.WritePage(d.PageNo, p.frames[i]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("write back page %d: %w", d.PageNo, err))
				continue
			}
			d.Dirty = false
			p.debugw("wrote back dirty frame on close", "frame", i, "page", d.PageNo)
		}
	}

	p.infow("pool closed", "total_frames", p.numFrames, "hits", p.hits, "misses", p.misses, "evictions", p.evictions)
	return errs
}

// evictVictim runs the clock sweep and returns the index of a frame ready
// for admission, having already written back and evicted whatever it held.
// Must be called with p.mu held.
func (p *Pool) evictVictim() (int, error) {
	consecutivePinned := 0

	for {
		p.clockHand = (p.clockHand + 1) % p.numFrames
		d := &p.descriptors[p.clockHand]

		if !d.Valid {
			return p.clockHand, nil
		}

		if d.RefBit {
			d.RefBit = false
			consecutivePinned = 0
			continue
		}

		if d.PinCount > 0 {
			consecutivePinned++
			if consecutivePinned >= p.numFrames {
				return 0, ErrAllFramesPinned
			}
			continue
		}

		p.evictions++
		if d.Dirty {
			if err := d.File.WritePage(d.PageNo, p.frames[p.clockHand]); err != nil {
				return 0, fmt.Errorf("write back victim page %d: %w", d.PageNo, err)
			}
			p.debugw("wrote back dirty victim", "frame", p.clockHand, "page", d.PageNo)
		}
		p.debugw("evicted frame", "frame", p.clockHand, "page", d.PageNo, "was_dirty", d.Dirty)
		delete(p.index, frameKey{d.File, d.PageNo})
		*d = FrameDescriptor{}
		return p.clockHand, nil
	}
}

// Stats summarizes pool activity, useful for logging at shutdown.
type Stats struct {
	TotalFrames int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
}

// Stats returns a snapshot of the pool's hit/miss/eviction counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalFrames: p.numFrames,
		Hits:        p.hits,
		Misses:      p.misses,
		Evictions:   p.evictions,
	}
}
