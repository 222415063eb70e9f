package vdom

// Op is the type of patch operation.
type Op uint8

const (
	OpSetText     Op = 0x01 // update text content
	OpSetAttr     Op = 0x02 // set or update an attribute
	OpRemoveAttr  Op = 0x03 // remove an attribute
	OpInsertNode  Op = 0x04 // insert a new subtree
	OpRemoveNode  Op = 0x05 // remove a subtree
	OpMoveNode    Op = 0x06 // move a node to a new position
	OpReplaceNode Op = 0x07 // replace a subtree entirely
)

// String returns the string representation of the Op.
func (op Op) String() string {
	switch op {
	case OpSetText:
		return "SetText"
	case OpSetAttr:
		return "SetAttr"
	case OpRemoveAttr:
		return "RemoveAttr"
	case OpInsertNode:
		return "InsertNode"
	case OpRemoveNode:
		return "RemoveNode"
	case OpMoveNode:
		return "MoveNode"
	case OpReplaceNode:
		return "ReplaceNode"
	default:
		return "Unknown"
	}
}

// Patch is a single backend operation.
type Patch struct {
	Op     Op     `json:"op"`
	NID    uint64 `json:"nid,omitempty"`    // target node
	Parent uint64 `json:"parent,omitempty"` // parent for inserts/moves; zero = tree root
	Index  int    `json:"index,omitempty"`  // child position for inserts/moves
	Key    string `json:"key,omitempty"`    // attribute key
	Value  string `json:"value,omitempty"`  // text or attribute value
	Node   *Node  `json:"node,omitempty"`   // subtree for insert/replace
}
