// Package mutation defines the value types that flow out of the live
// document: mutation records describing single edits, and snapshots holding
// the complete serialized page.
package mutation

// Op is the type of live-document mutation.
type Op string

const (
	OpInsert   Op = "insert"    // element inserted (includes serialised subtree HTML)
	OpRemove   Op = "remove"    // element removed
	OpText     Op = "text"      // text content replaced
	OpAttr     Op = "attr"      // attribute set
	OpAttrDel  Op = "attr_del"  // attribute removed
	OpMove     Op = "move"      // element moved to another position
	OpDocReset Op = "doc_reset" // whole document replaced
)

// Record is a single live-document mutation. Path is the element path
// (element.Path.String form) of the affected node at the time of the edit.
type Record struct {
	Op       Op     `json:"op"`
	Path     string `json:"path"`
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"`      // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`     // new value
	OldValue string `json:"old_value,omitempty"` // previous value
	HTML     string `json:"html,omitempty"`      // serialised subtree for insert
}

// Structural reports whether the record changed the shape of the tree, and
// therefore may have invalidated element paths computed before it.
func (r Record) Structural() bool {
	switch r.Op {
	case OpInsert, OpRemove, OpMove, OpDocReset:
		return true
	}
	return false
}
