// Command heapidx builds or opens a B+ tree index over a heap file and
// runs a sample range scan against it.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"heapidx/src/btreeindex"
	"heapidx/src/buffermgr"
	"heapidx/src/logging"
	"heapidx/src/settings"
	"heapidx/src/storage/heapfile"
	"heapidx/src/storage/pagefile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "heapidx:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := settings.Default()

	dataDir := flag.String("data-dir", cfg.DataDir, "directory holding heap and index files")
	pageSize := flag.Int("page-size", cfg.PageSize, "page size the heap and index files are created and read with")
	frames := flag.Int("frames", cfg.FrameCount, "buffer pool frame count")
	relation := flag.String("relation", "demo", "relation name the index is built over")
	offset := flag.Int("attr-offset", 0, "byte offset of the indexed int32 attribute within a heap record")
	recordSize := flag.Int("record-size", 4, "heap record size in bytes")
	seed := flag.Int("seed", 0, "number of sequential records to seed into a freshly created heap file")
	lo := flag.Int("lo", 0, "inclusive lower bound of the sample scan")
	hi := flag.Int("hi", 9, "inclusive upper bound of the sample scan")
	debug := flag.Bool("debug", cfg.Debug, "enable development logging")
	flag.Parse()

	cfg = cfg.Merge(settings.Settings{
		DataDir:    *dataDir,
		PageSize:   *pageSize,
		FrameCount: *frames,
		Debug:      *debug,
	})

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	heapPath := filepath.Join(cfg.DataDir, *relation+".heap")
	_, statErr := os.Stat(heapPath)
	heapExisted := statErr == nil

	heapPages, err := pagefile.Open(heapPath, cfg.PageSize, true, logger)
	if err != nil {
		return fmt.Errorf("open heap file: %w", err)
	}
	defer heapPages.Close()

	heap, err := heapfile.Open(heapPages, *recordSize, logger)
	if err != nil {
		return fmt.Errorf("open heap: %w", err)
	}

	if !heapExisted && *seed > 0 {
		if err := seedHeap(heap, *seed, *recordSize); err != nil {
			return fmt.Errorf("seed heap: %w", err)
		}
	}

	pool := buffermgr.NewPool(cfg.FrameCount, cfg.PageSize, logger)

	idx, fileName, err := btreeindex.Open(cfg.DataDir, *relation, int32(*offset), btreeindex.AttrTypeInteger, cfg.PageSize, heap, pool, logger)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	logger.Infow("index ready", "file", fileName)

	if err := idx.StartScan(int32(*lo), btreeindex.OpGTE, int32(*hi), btreeindex.OpLTE); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	count := 0
	for {
		rid, err := idx.ScanNext()
		if err != nil {
			break
		}
		fmt.Printf("page=%d slot=%d\n", rid.PageNo, rid.SlotNo)
		count++
	}
	logger.Infow("scan complete", "matched", count)

	if err := idx.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return pool.Close()
}

func seedHeap(heap *heapfile.HeapFile, n, recordSize int) error {
	record := make([]byte, recordSize)
	for i := 0; i < n; i++ {
		record[0] = byte(i)
		record[1] = byte(i >> 8)
		record[2] = byte(i >> 16)
		record[3] = byte(i >> 24)
		if _, err := heap.Insert(record); err != nil {
			return err
		}
	}
	return nil
}
