// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package rbtree implements an intrusive red-black tree which keeps a
// cached pointer to its leftmost (smallest) node.
//
// Nodes are owned by the caller and are usually embedded in the values
// they order, so that linking and unlinking never allocates and removal
// does not need a lookup.
package rbtree

// Node is a tree node. The zero value is an unlinked node.
type Node[T any] struct {
	parent, left, right *Node[T]
	red                 bool
	tree                *Tree[T]

	Value T
}

// Linked returns whether the node is currently part of a tree.
func (n *Node[T]) Linked() bool {
	return n.tree != nil
}

// Next returns the in-order successor of n or nil if n is the last node.
func (n *Node[T]) Next() *Node[T] {
	if n.tree == nil {
		return nil
	}
	if n.right != nil {
		return minimum(n.right)
	}
	p := n.parent
	for p != nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

// Tree is a red-black tree ordered by a less function. Nodes comparing
// equal keep their insertion order: a new node is placed after all the
// nodes it is equal to.
//
// Tree is not safe for concurrent use.
type Tree[T any] struct {
	root     *Node[T]
	leftmost *Node[T]
	count    int
	less     func(a, b T) bool
}

// New returns an empty tree ordered by less.
func New[T any](less func(a, b T) bool) *Tree[T] {
	return &Tree[T]{less: less}
}

// Len returns the number of linked nodes.
func (t *Tree[T]) Len() int {
	return t.count
}

// First returns the leftmost node, or nil if the tree is empty. It does
// not walk the tree.
func (t *Tree[T]) First() *Node[T] {
	return t.leftmost
}

// Each calls f with the values in order until f returns false.
func (t *Tree[T]) Each(f func(v T) bool) {
	for n := t.leftmost; n != nil; n = n.Next() {
		if !f(n.Value) {
			return
		}
	}
}

// Insert links n into the tree. It panics if n is already linked.
func (t *Tree[T]) Insert(n *Node[T]) {
	if n.tree != nil {
		panic("rbtree: cannot insert a node which is already linked")
	}

	var parent *Node[T]
	link := &t.root
	leftmost := true
	for *link != nil {
		parent = *link
		if t.less(n.Value, parent.Value) {
			link = &parent.left
		} else {
			link = &parent.right
			leftmost = false
		}
	}

	n.parent = parent
	n.left, n.right = nil, nil
	n.red = true
	n.tree = t
	*link = n

	if leftmost {
		t.leftmost = n
	}
	t.count++
	t.insertFixup(n)
}

// Remove unlinks n from the tree. It panics if n is not linked into t.
func (t *Tree[T]) Remove(z *Node[T]) {
	if z.tree != t {
		panic("rbtree: cannot remove a node which is not in this tree")
	}
	if t.leftmost == z {
		t.leftmost = z.Next()
	}

	var x, xParent *Node[T]
	removedRed := z.red
	switch {
	case z.left == nil:
		x = z.right
		xParent = z.parent
		t.transplant(z, z.right)
	case z.right == nil:
		x = z.left
		xParent = z.parent
		t.transplant(z, z.left)
	default:
		y := minimum(z.right)
		removedRed = y.red
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.red = z.red
	}

	z.parent, z.left, z.right = nil, nil, nil
	z.red = false
	z.tree = nil
	t.count--

	if !removedRed {
		t.deleteFixup(x, xParent)
	}
}

func minimum[T any](n *Node[T]) *Node[T] {
	for n.left != nil {
		n = n.left
	}
	return n
}

func isRed[T any](n *Node[T]) bool {
	return n != nil && n.red
}

func (t *Tree[T]) replaceChild(parent, old, new *Node[T]) {
	switch {
	case parent == nil:
		t.root = new
	case parent.left == old:
		parent.left = new
	default:
		parent.right = new
	}
}

// transplant puts v in the place of u; u's children are left alone.
func (t *Tree[T]) transplant(u, v *Node[T]) {
	t.replaceChild(u.parent, u, v)
	if v != nil {
		v.parent = u.parent
	}
}

func (t *Tree[T]) rotateLeft(x *Node[T]) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	t.replaceChild(x.parent, x, y)
	y.left = x
	x.parent = y
}

func (t *Tree[T]) rotateRight(x *Node[T]) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	t.replaceChild(x.parent, x, y)
	y.right = x
	x.parent = y
}

func (t *Tree[T]) insertFixup(z *Node[T]) {
	for isRed(z.parent) {
		p := z.parent
		// a red parent is never the root
		g := p.parent
		if p == g.left {
			if u := g.right; isRed(u) {
				p.red, u.red, g.red = false, false, true
				z = g
				continue
			}
			if z == p.right {
				z = p
				t.rotateLeft(z)
				p = z.parent
			}
			p.red = false
			g.red = true
			t.rotateRight(g)
		} else {
			if u := g.left; isRed(u) {
				p.red, u.red, g.red = false, false, true
				z = g
				continue
			}
			if z == p.left {
				z = p
				t.rotateRight(z)
				p = z.parent
			}
			p.red = false
			g.red = true
			t.rotateLeft(g)
		}
	}
	t.root.red = false
}

// deleteFixup restores the red-black properties after a black node was
// removed. x may be nil, hence parent is tracked separately.
func (t *Tree[T]) deleteFixup(x, parent *Node[T]) {
	for x != t.root && !isRed(x) {
		if x == parent.left {
			w := parent.right
			if isRed(w) {
				w.red = false
				parent.red = true
				t.rotateLeft(parent)
				w = parent.right
			}
			if !isRed(w.left) && !isRed(w.right) {
				w.red = true
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.right) {
				w.left.red = false
				w.red = true
				t.rotateRight(w)
				w = parent.right
			}
			w.red = parent.red
			parent.red = false
			w.right.red = false
			t.rotateLeft(parent)
		} else {
			w := parent.left
			if isRed(w) {
				w.red = false
				parent.red = true
				t.rotateRight(parent)
				w = parent.left
			}
			if !isRed(w.left) && !isRed(w.right) {
				w.red = true
				x = parent
				parent = x.parent
				continue
			}
			if !isRed(w.left) {
				w.right.red = false
				w.red = true
				t.rotateLeft(w)
				w = parent.left
			}
			w.red = parent.red
			parent.red = false
			w.left.red = false
			t.rotateRight(parent)
		}
		x = t.root
		parent = nil
	}
	if x != nil {
		x.red = false
	}
}
