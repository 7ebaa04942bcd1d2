package btreeindex

import (
	"fmt"

	"heapidx/src/storage/pagefile"
)

// Insert adds (key, rid) to the tree, descending from the root and
// propagating any split back up. Every page it pins is unpinned on every
// return path, dirty iff it was actually mutated.
func (idx *Index) Insert(key int32, rid RecordId) error {
	idx.debugw("insert", "key", key, "rid", rid)
	splitPageNo, splitKey, split, err := idx.insertInto(idx.rootPageNo, idx.rootIsLeaf, key, rid)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}
	return idx.growRoot(splitPageNo, splitKey)
}

// growRoot allocates a new non-leaf root over the current root and the page
// produced by its split.
func (idx *Index) growRoot(splitPageNo pagefile.PageId, splitKey int32) error {
	newRootNo, newRootData, err := idx.pool.Alloc(idx.pages)
	if err != nil {
		return fmt.Errorf("allocate new root: %w", err)
	}

	root := newNonLeafNode(idx.nonLeafCap)
	root.keys[0] = splitKey
	root.children[0] = idx.rootPageNo
	root.children[1] = splitPageNo
	if idx.rootIsLeaf {
		root.level = 1
	} else {
		root.level = 0
	}
	root.encodeInto(newRootData)
	if err := idx.pool.Unpin(idx.pages, newRootNo, true); err != nil {
		return err
	}

	idx.rootPageNo = newRootNo
	idx.rootIsLeaf = false
	idx.infow("root grew", "new_root", newRootNo, "split_key", splitKey, "level", root.level)

	metaData, err := idx.pool.Read(idx.pages, metaPageNo)
	if err != nil {
		return fmt.Errorf("update meta root: %w", err)
	}
	if err := idx.writeMeta(metaData, false); err != nil {
		idx.pool.Unpin(idx.pages, metaPageNo, false)
		return err
	}
	return idx.pool.Unpin(idx.pages, metaPageNo, true)
}

// insertInto recursively descends to the leaf for key, inserting along the
// way. isLeaf tells the callee whether pageNo is itself a leaf, since that
// can't be recovered from the page alone (non-leaf pages carry their own
// level, but nothing names the very first page's kind except the caller).
func (idx *Index) insertInto(pageNo pagefile.PageId, isLeaf bool, key int32, rid RecordId) (pagefile.PageId, int32, bool, error) {
	data, err := idx.pool.Read(idx.pages, pageNo)
	if err != nil {
		return 0, 0, false, fmt.Errorf("insert: read page %d: %w", pageNo, err)
	}

	if isLeaf {
		leaf := decodeLeaf(data, idx.leafCap)
		splitPageNo, splitKey, split, err := idx.insertIntoLeaf(leaf, key, rid)
		if err != nil {
			idx.pool.Unpin(idx.pages, pageNo, false)
			return 0, 0, false, err
		}
		leaf.encodeInto(data)
		if err := idx.pool.Unpin(idx.pages, pageNo, true); err != nil {
			return 0, 0, false, err
		}
		return splitPageNo, splitKey, split, nil
	}

	node := decodeNonLeaf(data, idx.nonLeafCap)
	childIdx := findChildIndex(node, key)
	childPageNo := node.children[childIdx]
	childIsLeaf := node.level == 1

	childSplitPageNo, childSplitKey, childSplit, err := idx.insertInto(childPageNo, childIsLeaf, key, rid)
	if err != nil {
		idx.pool.Unpin(idx.pages, pageNo, false)
		return 0, 0, false, err
	}
	if !childSplit {
		if err := idx.pool.Unpin(idx.pages, pageNo, false); err != nil {
			return 0, 0, false, err
		}
		return 0, 0, false, nil
	}

	splitPageNo, splitKey, split, err := idx.insertIntoNonLeaf(node, childIdx, childSplitPageNo, childSplitKey)
	if err != nil {
		idx.pool.Unpin(idx.pages, pageNo, false)
		return 0, 0, false, err
	}
	node.encodeInto(data)
	if err := idx.pool.Unpin(idx.pages, pageNo, true); err != nil {
		return 0, 0, false, err
	}
	return splitPageNo, splitKey, split, nil
}

// findChildIndex finds the largest occupied child index, then backs off
// while the preceding key is >= key — descent follows children[i].
func findChildIndex(node *nonLeafNode, key int32) int {
	i := node.numChildren() - 1
	for i > 0 && node.keys[i-1] >= key {
		i--
	}
	return i
}

// insertSortedLeaf inserts (key, rid) into n's occupied prefix in sorted
// order, shifting entries right. Equal keys are left in place (shifted
// right of them), so repeated inserts of the same key stay in insertion
// order within the leaf.
func insertSortedLeaf(n *leafNode, key int32, rid RecordId) {
	i := n.num
	for i > 0 && n.keys[i-1] > key {
		n.keys[i] = n.keys[i-1]
		n.rids[i] = n.rids[i-1]
		i--
	}
	n.keys[i] = key
	n.rids[i] = rid
	n.num++
}

// insertIntoLeaf inserts (key, rid) into leaf, splitting it if full.
func (idx *Index) insertIntoLeaf(leaf *leafNode, key int32, rid RecordId) (pagefile.PageId, int32, bool, error) {
	if leaf.num < leaf.capacity {
		insertSortedLeaf(leaf, key, rid)
		return 0, 0, false, nil
	}

	L := leaf.capacity
	mid := L / 2
	if L%2 == 1 && mid > 0 && key > leaf.keys[mid-1] {
		mid++
	}
	if mid < 1 {
		mid = 1
	}
	pivotKey := leaf.keys[mid-1]

	newPageNo, newData, err := idx.pool.Alloc(idx.pages)
	if err != nil {
		return 0, 0, false, fmt.Errorf("split leaf: allocate sibling: %w", err)
	}

	newLeaf := newLeafNode(leaf.capacity)
	newCount := L - mid
	for i := 0; i < newCount; i++ {
		newLeaf.keys[i] = leaf.keys[mid+i]
		newLeaf.rids[i] = leaf.rids[mid+i]
	}
	newLeaf.num = newCount
	for i := mid; i < L; i++ {
		leaf.clear(i)
	}
	leaf.num = mid

	newLeaf.rightSib = leaf.rightSib
	leaf.rightSib = newPageNo

	if key > pivotKey {
		insertSortedLeaf(newLeaf, key, rid)
	} else {
		insertSortedLeaf(leaf, key, rid)
	}

	newLeaf.encodeInto(newData)
	if err := idx.pool.Unpin(idx.pages, newPageNo, true); err != nil {
		return 0, 0, false, err
	}

	return newPageNo, newLeaf.keys[0], true, nil
}

// insertIntoNonLeaf inserts the (newChildPageNo, newKey) pair produced by a
// child split at childIdx, splitting node itself if it has no free slot.
func (idx *Index) insertIntoNonLeaf(node *nonLeafNode, childIdx int, newChildPageNo pagefile.PageId, newKey int32) (pagefile.PageId, int32, bool, error) {
	p := node.numChildren()
	if p <= node.capacity {
		for i := p - 1; i > childIdx; i-- {
			node.keys[i] = node.keys[i-1]
		}
		node.keys[childIdx] = newKey
		for i := p; i > childIdx+1; i-- {
			node.children[i] = node.children[i-1]
		}
		node.children[childIdx+1] = newChildPageNo
		return 0, 0, false, nil
	}

	M := node.capacity
	mid := M / 2
	pushUpIndex := mid
	if M%2 == 0 {
		if newKey < node.keys[mid] {
			pushUpIndex = mid - 1
		}
	}

	// Build the virtual M+1 key / M+2 child arrays with the incoming
	// entry already inserted, so nothing is lost regardless of where
	// childIdx falls relative to pushUpIndex.
	vKeys := make([]int32, M+1)
	copy(vKeys[:childIdx], node.keys[:childIdx])
	vKeys[childIdx] = newKey
	copy(vKeys[childIdx+1:], node.keys[childIdx:M])

	vChildren := make([]pagefile.PageId, M+2)
	copy(vChildren[:childIdx+1], node.children[:childIdx+1])
	vChildren[childIdx+1] = newChildPageNo
	copy(vChildren[childIdx+2:], node.children[childIdx+1:M+1])

	virtualPushUp := pushUpIndex
	if childIdx <= pushUpIndex {
		virtualPushUp++
	}
	pushUpKey := vKeys[virtualPushUp]

	newPageNo, newData, err := idx.pool.Alloc(idx.pages)
	if err != nil {
		return 0, 0, false, fmt.Errorf("split non-leaf: allocate sibling: %w", err)
	}
	newNode := newNonLeafNode(node.capacity)
	newNode.level = node.level

	rightKeyCount := len(vKeys) - (virtualPushUp + 1)
	for i := 0; i < rightKeyCount; i++ {
		newNode.keys[i] = vKeys[virtualPushUp+1+i]
	}
	rightChildCount := len(vChildren) - (virtualPushUp + 1)
	for i := 0; i < rightChildCount; i++ {
		newNode.children[i] = vChildren[virtualPushUp+1+i]
	}
	newNode.encodeInto(newData)
	if err := idx.pool.Unpin(idx.pages, newPageNo, true); err != nil {
		return 0, 0, false, err
	}

	for i := range node.keys {
		node.keys[i] = 0
	}
	for i := range node.children {
		node.children[i] = 0
	}
	for i := 0; i < virtualPushUp; i++ {
		node.keys[i] = vKeys[i]
	}
	for i := 0; i < virtualPushUp+1; i++ {
		node.children[i] = vChildren[i]
	}

	return newPageNo, pushUpKey, true, nil
}
