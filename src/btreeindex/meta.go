package btreeindex

import (
	"encoding/binary"
	"fmt"
	"strings"

	"heapidx/src/storage/pagefile"
)

const relationNameSize = 32

// metaInfo is the fixed layout of an index file's first page: the relation
// it was built over, the byte offset and declared type of the key
// attribute within a heap record, and the current root page number.
type metaInfo struct {
	RelationName   string
	AttrByteOffset int32
	AttrType       AttrType
	RootPageNo     pagefile.PageId

	// RootIsLeaf resolves the one piece of tree shape the meta page must
	// carry explicitly: whether the current root is itself a leaf (true
	// until the first root split, per the node-kind-is-contextual design
	// — every other page's kind is known from its parent's level field).
	RootIsLeaf bool
}

func metaSize() int { return relationNameSize + 4 + 4 + 4 + 4 }

func encodeMeta(m metaInfo) []byte {
	buf := make([]byte, metaSize())
	copy(buf[:relationNameSize], m.RelationName)
	binary.LittleEndian.PutUint32(buf[relationNameSize:], uint32(m.AttrByteOffset))
	binary.LittleEndian.PutUint32(buf[relationNameSize+4:], uint32(m.AttrType))
	binary.LittleEndian.PutUint32(buf[relationNameSize+8:], uint32(m.RootPageNo))
	rootIsLeaf := uint32(0)
	if m.RootIsLeaf {
		rootIsLeaf = 1
	}
	binary.LittleEndian.PutUint32(buf[relationNameSize+12:], rootIsLeaf)
	return buf
}

func decodeMeta(buf []byte) (metaInfo, error) {
	if len(buf) < metaSize() {
		return metaInfo{}, fmt.Errorf("meta page is %d bytes, want at least %d", len(buf), metaSize())
	}
	name := string(buf[:relationNameSize])
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return metaInfo{
		RelationName:   name,
		AttrByteOffset: int32(binary.LittleEndian.Uint32(buf[relationNameSize:])),
		AttrType:       AttrType(binary.LittleEndian.Uint32(buf[relationNameSize+4:])),
		RootPageNo:     pagefile.PageId(binary.LittleEndian.Uint32(buf[relationNameSize+8:])),
		RootIsLeaf:     binary.LittleEndian.Uint32(buf[relationNameSize+12:]) == 1,
	}, nil
}
