package index

import (
	"math/bits"

	"github.com/kulaginds/xz/vli"
)

// node is a node of an append-only AVL tree. The bases are the offsets at
// which the item starts: in the file for Streams, in the Stream for groups.
type node[T any] struct {
	uncompressedBase vli.VLI
	compressedBase   vli.VLI

	// parent is only followed to rebalance and to walk the tree in order.
	parent *node[T]
	left   *node[T]
	right  *node[T]

	item T
}

type tree[T any] struct {
	root *node[T]

	// Items are only appended, so leftmost never changes after the first
	// append and rightmost is where the next item goes.
	leftmost  *node[T]
	rightmost *node[T]

	count uint32
}

// append adds n after the rightmost node. The tree is kept balanced with at
// most one rotation per append.
func (t *tree[T]) append(n *node[T]) {
	n.parent = t.rightmost
	n.left = nil
	n.right = nil

	t.count++

	if t.root == nil {
		t.root = n
		t.leftmost = n
		t.rightmost = n

		return
	}

	t.rightmost.right = n
	t.rightmost = n

	// The tree needs a rotation whenever count is not a power of two. The
	// node to rotate is ctz(count)+2 levels above the new node.
	if t.count&(t.count-1) == 0 {
		return
	}

	for up := bits.TrailingZeros32(t.count) + 2; up > 0; up-- {
		n = n.parent
	}

	pivot := n.right

	if n.parent == nil {
		t.root = pivot
	} else {
		n.parent.right = pivot
	}

	pivot.parent = n.parent

	n.right = pivot.left
	if n.right != nil {
		n.right.parent = n
	}

	pivot.left = n
	n.parent = pivot
}

// next returns the in-order successor of n, or nil.
func (n *node[T]) next() *node[T] {
	if n.right != nil {
		n = n.right
		for n.left != nil {
			n = n.left
		}

		return n
	}

	for n.parent != nil && n.parent.right == n {
		n = n.parent
	}

	return n.parent
}

// locate returns the rightmost node whose uncompressed base is at most
// target.
func (t *tree[T]) locate(target vli.VLI) *node[T] {
	var result *node[T]

	n := t.root
	for n != nil {
		if n.uncompressedBase > target {
			n = n.left
		} else {
			result = n
			n = n.right
		}
	}

	return result
}
