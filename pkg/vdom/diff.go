package vdom

// Diff compares two node trees and returns the patches needed to transform
// prev into next. Matched nodes in next inherit the NID of their prev
// counterpart; inserted or replacing subtrees are assigned fresh NIDs from
// alloc before they appear in a patch.
func Diff(prev, next *Node, alloc *Allocator) []Patch {
	var patches []Patch
	diffNodes(prev, next, 0, 0, alloc, &patches)
	return patches
}

func diffNodes(prev, next *Node, parent uint64, index int, alloc *Allocator, patches *[]Patch) {
	if prev == nil && next == nil {
		return
	}

	if prev == nil {
		alloc.AssignIDs(next)
		*patches = append(*patches, Patch{
			Op:     OpInsertNode,
			Parent: parent,
			Index:  index,
			Node:   next,
		})
		return
	}

	if next == nil {
		*patches = append(*patches, Patch{Op: OpRemoveNode, NID: prev.NID})
		return
	}

	// A kind or tag change replaces the whole subtree.
	if prev.Kind != next.Kind || (prev.Kind == KindElement && prev.Tag != next.Tag) {
		alloc.AssignIDs(next)
		*patches = append(*patches, Patch{
			Op:   OpReplaceNode,
			NID:  prev.NID,
			Node: next,
		})
		return
	}

	next.NID = prev.NID

	switch prev.Kind {
	case KindText:
		if prev.Text != next.Text {
			*patches = append(*patches, Patch{
				Op:    OpSetText,
				NID:   prev.NID,
				Value: next.Text,
			})
		}
	case KindElement:
		diffAttrs(prev, next, patches)
		diffChildren(prev, next, prev.NID, alloc, patches)
	case KindFragment:
		diffChildren(prev, next, parent, alloc, patches)
	}
}

// diffAttrs emits set/remove patches for changed attributes.
func diffAttrs(prev, next *Node, patches *[]Patch) {
	for key, prevVal := range prev.Attrs {
		nextVal, exists := next.Attrs[key]
		if !exists {
			*patches = append(*patches, Patch{
				Op:  OpRemoveAttr,
				NID: prev.NID,
				Key: key,
			})
		} else if prevVal != nextVal {
			*patches = append(*patches, Patch{
				Op:    OpSetAttr,
				NID:   prev.NID,
				Key:   key,
				Value: nextVal,
			})
		}
	}
	for key, nextVal := range next.Attrs {
		if _, exists := prev.Attrs[key]; !exists {
			*patches = append(*patches, Patch{
				Op:    OpSetAttr,
				NID:   prev.NID,
				Key:   key,
				Value: nextVal,
			})
		}
	}
}

// diffChildren reconciles child lists, keyed when any child carries a key.
func diffChildren(prev, next *Node, parent uint64, alloc *Allocator, patches *[]Patch) {
	if hasKeys(prev.Children) || hasKeys(next.Children) {
		diffKeyed(prev.Children, next.Children, parent, alloc, patches)
		return
	}
	diffPositional(prev.Children, next.Children, parent, alloc, patches)
}

// diffPositional matches children by index.
func diffPositional(prev, next []*Node, parent uint64, alloc *Allocator, patches *[]Patch) {
	max := len(prev)
	if len(next) > max {
		max = len(next)
	}

	for i := 0; i < max; i++ {
		var prevChild, nextChild *Node
		if i < len(prev) {
			prevChild = prev[i]
		}
		if i < len(next) {
			nextChild = next[i]
		}
		diffNodes(prevChild, nextChild, parent, i, alloc, patches)
	}
}

// diffKeyed matches children by key, emitting moves for reordered nodes.
func diffKeyed(prev, next []*Node, parent uint64, alloc *Allocator, patches *[]Patch) {
	prevByKey := make(map[string]int, len(prev))
	for i, child := range prev {
		if child.Key != "" {
			prevByKey[child.Key] = i
		}
	}

	matched := make(map[int]bool, len(prev))

	for nextIdx, nextChild := range next {
		prevIdx, ok := -1, false
		if nextChild.Key != "" {
			prevIdx, ok = lookupKey(prevByKey, nextChild.Key)
		}

		if !ok {
			alloc.AssignIDs(nextChild)
			*patches = append(*patches, Patch{
				Op:     OpInsertNode,
				Parent: parent,
				Index:  nextIdx,
				Node:   nextChild,
			})
			continue
		}

		matched[prevIdx] = true
		prevChild := prev[prevIdx]
		if prevIdx != nextIdx {
			*patches = append(*patches, Patch{
				Op:     OpMoveNode,
				NID:    prevChild.NID,
				Parent: parent,
				Index:  nextIdx,
			})
		}
		diffNodes(prevChild, nextChild, parent, nextIdx, alloc, patches)
	}

	for i, prevChild := range prev {
		if !matched[i] {
			*patches = append(*patches, Patch{Op: OpRemoveNode, NID: prevChild.NID})
		}
	}
}

func lookupKey(index map[string]int, key string) (int, bool) {
	i, ok := index[key]
	return i, ok
}

func hasKeys(children []*Node) bool {
	for _, child := range children {
		if child.Key != "" {
			return true
		}
	}
	return false
}
