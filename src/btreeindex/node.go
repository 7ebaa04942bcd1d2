package btreeindex

import (
	"encoding/binary"

	"heapidx/src/storage/pagefile"
)

const (
	leafHeaderSize    = 8 // num int32 + right_sib uint32
	leafEntrySize     = 12 // key int32 + rid.PageNo uint32 + rid.SlotNo uint32
	nonLeafHeaderSize = 4  // level int32
	nonLeafEntrySize  = 4  // one key or one child, both uint32-width
)

// leafCapacity returns L, the number of (key, rid) slots a leaf page of
// pageSize bytes holds.
func leafCapacity(pageSize int) int {
	return (pageSize - leafHeaderSize) / leafEntrySize
}

// nonLeafCapacity returns M, the number of keys a non-leaf page of pageSize
// bytes holds (it holds M+1 children).
func nonLeafCapacity(pageSize int) int {
	return (pageSize - nonLeafHeaderSize - nonLeafEntrySize) / (2 * nonLeafEntrySize)
}

// leafNode is the decoded, in-memory form of a LeafNodeInt page.
type leafNode struct {
	capacity int
	num      int
	keys     []int32
	rids     []RecordId
	rightSib pagefile.PageId
}

func newLeafNode(capacity int) *leafNode {
	return &leafNode{
		capacity: capacity,
		keys:     make([]int32, capacity),
		rids:     make([]RecordId, capacity),
	}
}

func decodeLeaf(buf []byte, capacity int) *leafNode {
	n := newLeafNode(capacity)
	n.num = int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	n.rightSib = pagefile.PageId(binary.LittleEndian.Uint32(buf[4:8]))
	off := leafHeaderSize
	for i := 0; i < capacity; i++ {
		n.keys[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		pageNo := pagefile.PageId(binary.LittleEndian.Uint32(buf[off+4:]))
		slotNo := binary.LittleEndian.Uint32(buf[off+8:])
		n.rids[i] = RecordId{PageNo: pageNo, SlotNo: uint16(slotNo)}
		off += leafEntrySize
	}
	return n
}

func (n *leafNode) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(n.num)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n.rightSib))
	off := leafHeaderSize
	for i := 0; i < n.capacity; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(n.keys[i]))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(n.rids[i].PageNo))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(n.rids[i].SlotNo))
		off += leafEntrySize
	}
}

// empty reports whether slot i holds no entry.
func (n *leafNode) empty(i int) bool { return n.rids[i].PageNo == 0 }

func (n *leafNode) clear(i int) {
	n.keys[i] = 0
	n.rids[i] = RecordId{}
}

// nonLeafNode is the decoded, in-memory form of a NonLeafNodeInt page.
type nonLeafNode struct {
	capacity int // M
	level    int32
	keys     []int32
	children []pagefile.PageId // length capacity+1
}

func newNonLeafNode(capacity int) *nonLeafNode {
	return &nonLeafNode{
		capacity: capacity,
		keys:     make([]int32, capacity),
		children: make([]pagefile.PageId, capacity+1),
	}
}

func decodeNonLeaf(buf []byte, capacity int) *nonLeafNode {
	n := newNonLeafNode(capacity)
	n.level = int32(binary.LittleEndian.Uint32(buf[0:4]))
	off := nonLeafHeaderSize
	for i := 0; i < capacity; i++ {
		n.keys[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += nonLeafEntrySize
	}
	for i := 0; i < capacity+1; i++ {
		n.children[i] = pagefile.PageId(binary.LittleEndian.Uint32(buf[off:]))
		off += nonLeafEntrySize
	}
	return n
}

func (n *nonLeafNode) encodeInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n.level))
	off := nonLeafHeaderSize
	for i := 0; i < n.capacity; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(n.keys[i]))
		off += nonLeafEntrySize
	}
	for i := 0; i < n.capacity+1; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(n.children[i]))
		off += nonLeafEntrySize
	}
}

// numChildren returns p, the count of occupied children[0..p).
func (n *nonLeafNode) numChildren() int {
	p := 0
	for p < len(n.children) && n.children[p] != 0 {
		p++
	}
	return p
}
