// Package btreeindex persists a B+ tree index over 32-bit signed integer
// keys projected from a fixed byte offset inside heap-file records. Every
// page it touches — meta, leaf, or non-leaf — is obtained from and released
// back to a buffermgr.Pool; the index never reads or writes its file
// directly.
package btreeindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"heapidx/src/buffermgr"
	"heapidx/src/storage/heapfile"
	"heapidx/src/storage/pagefile"
)

const metaPageNo = pagefile.PageId(1)

// Index is a handle to one open B+ tree index file.
type Index struct {
	pages *pagefile.Manager
	pool  *buffermgr.Pool

	relationName   string
	attrByteOffset int32
	attrType       AttrType

	rootPageNo pagefile.PageId
	rootIsLeaf bool

	leafCap    int
	nonLeafCap int

	scan scanState

	logger *zap.SugaredLogger
}

type scanState struct {
	executing     bool
	lo, hi        int32
	currentPageNo pagefile.PageId
	currentData   []byte
	nextEntry     int
}

// FileName is the on-disk name an index over (relationName, attrByteOffset)
// is given, independent of where it's stored.
func FileName(relationName string, attrByteOffset int32) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// debugw and infow are no-ops when idx was opened without a logger.
func (idx *Index) debugw(msg string, keysAndValues ...interface{}) {
	if idx.logger == nil {
		return
	}
	idx.logger.Debugw(msg, keysAndValues...)
}

func (idx *Index) infow(msg string, keysAndValues ...interface{}) {
	if idx.logger == nil {
		return
	}
	idx.logger.Infow(msg, keysAndValues...)
}

// Open opens (creating if absent) the index file for
// (relationName, attrByteOffset, attrType) under dataDir. If the file is
// newly created, it is populated by scanning heap via one Insert per record,
// projecting the key at attrByteOffset, and then flushed. heap may be nil
// when opening a file that is already known to exist. pageSize <= 0 means
// pagefile.DefaultPageSize. The file does not record its page size: an
// existing file is read with the pageSize passed here, not the one it was
// created with.
func Open(dataDir string, relationName string, attrByteOffset int32, attrType AttrType, pageSize int, heap *heapfile.HeapFile, pool *buffermgr.Pool, logger *zap.SugaredLogger) (*Index, string, error) {
	fileName := FileName(relationName, attrByteOffset)
	path := filepath.Join(dataDir, fileName)

	_, statErr := os.Stat(path)
	existed := statErr == nil

	pages, err := pagefile.Open(path, pageSize, true, logger)
	if err != nil {
		return nil, "", fmt.Errorf("open index file %s: %w", fileName, err)
	}

	idx := &Index{
		pages:          pages,
		pool:           pool,
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		leafCap:        leafCapacity(pages.PageSize()),
		nonLeafCap:     nonLeafCapacity(pages.PageSize()),
		logger:         logger,
	}

	if !existed {
		if err := idx.create(heap); err != nil {
			pages.Close()
			return nil, "", err
		}
		idx.infow("index created", "file", fileName, "relation", relationName, "attr_offset", attrByteOffset)
		return idx, fileName, nil
	}

	if err := idx.loadMeta(); err != nil {
		pages.Close()
		return nil, "", err
	}
	idx.infow("index reopened", "file", fileName, "relation", relationName, "attr_offset", attrByteOffset)
	return idx, fileName, nil
}

func (idx *Index) create(heap *heapfile.HeapFile) error {
	metaNo, metaData, err := idx.pool.Alloc(idx.pages)
	if err != nil {
		return fmt.Errorf("allocate meta page: %w", err)
	}
	if metaNo != metaPageNo {
		idx.pool.Unpin(idx.pages, metaNo, false)
		return fmt.Errorf("index file's first allocated page is %d, want %d", metaNo, metaPageNo)
	}

	rootNo, rootData, err := idx.pool.Alloc(idx.pages)
	if err != nil {
		idx.pool.Unpin(idx.pages, metaNo, false)
		return fmt.Errorf("allocate root leaf page: %w", err)
	}
	leaf := newLeafNode(idx.leafCap)
	leaf.encodeInto(rootData)
	if err := idx.pool.Unpin(idx.pages, rootNo, true); err != nil {
		return err
	}

	idx.rootPageNo = rootNo
	idx.rootIsLeaf = true

	if err := idx.writeMeta(metaData, true); err != nil {
		return err
	}
	if err := idx.pool.Unpin(idx.pages, metaNo, true); err != nil {
		return err
	}

	if heap != nil {
		if err := idx.build(heap); err != nil {
			return fmt.Errorf("build index %s: %w", FileName(idx.relationName, idx.attrByteOffset), err)
		}
	}

	return idx.pool.FlushFile(idx.pages)
}

const buildProgressInterval = 1000

func (idx *Index) build(heap *heapfile.HeapFile) error {
	scanner := heapfile.NewScanner(heap)
	rows := 0
	for {
		rid, record, err := scanner.Next()
		if err != nil {
			if errors.Is(err, heapfile.ErrEndOfFile) {
				idx.infow("bulk build complete", "rows", rows)
				return nil
			}
			return err
		}
		key, err := projectKey(record, idx.attrByteOffset)
		if err != nil {
			return err
		}
		if err := idx.Insert(key, rid); err != nil {
			return err
		}
		rows++
		if rows%buildProgressInterval == 0 {
			idx.infow("bulk build progress", "rows", rows)
		}
	}
}

func projectKey(record []byte, offset int32) (int32, error) {
	if offset < 0 || int(offset)+4 > len(record) {
		return 0, fmt.Errorf("attribute offset %d out of range for %d-byte record", offset, len(record))
	}
	return int32(binary.LittleEndian.Uint32(record[offset : offset+4])), nil
}

func (idx *Index) loadMeta() error {
	data, err := idx.pool.Read(idx.pages, metaPageNo)
	if err != nil {
		return fmt.Errorf("read meta page: %w", err)
	}
	m, err := decodeMeta(data)
	if err != nil {
		idx.pool.Unpin(idx.pages, metaPageNo, false)
		return err
	}
	idx.pool.Unpin(idx.pages, metaPageNo, false)

	if m.RelationName != idx.relationName || m.AttrByteOffset != idx.attrByteOffset || m.AttrType != idx.attrType {
		return fmt.Errorf("open index %s: %w", FileName(idx.relationName, idx.attrByteOffset), ErrBadIndexInfo)
	}

	idx.rootPageNo = m.RootPageNo
	idx.rootIsLeaf = m.RootIsLeaf
	return nil
}

func (idx *Index) writeMeta(buf []byte, rootIsLeaf bool) error {
	m := metaInfo{
		RelationName:   idx.relationName,
		AttrByteOffset: idx.attrByteOffset,
		AttrType:       idx.attrType,
		RootPageNo:     idx.rootPageNo,
		RootIsLeaf:     rootIsLeaf,
	}
	copy(buf, encodeMeta(m))
	return nil
}

// Close flushes and closes the underlying file. The buffer pool is not
// closed — it may be shared by other indexes.
func (idx *Index) Close() error {
	if err := idx.pool.FlushFile(idx.pages); err != nil {
		return err
	}
	return idx.pages.Close()
}
