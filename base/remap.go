package base

// Remap relates identities from a previously saved graph to the objects
// recreated for them during a load. A fresh table is built per load
// operation; it is not a process-wide registry, so it can be dropped as soon
// as the caller has finished resolving references.
type Remap struct {
	objs map[int64]any
}

// NewRemap returns an empty remap table.
func NewRemap() *Remap {
	return &Remap{objs: make(map[int64]any)}
}

// Record associates a previous identity with the object recreated for it.
func (r *Remap) Record(prevID int64, obj any) {
	r.objs[prevID] = obj
}

// Lookup resolves a previous identity to its recreated object.
func (r *Remap) Lookup(prevID int64) (any, bool) {
	obj, ok := r.objs[prevID]
	return obj, ok
}

// Len reports how many objects have been recorded.
func (r *Remap) Len() int {
	return len(r.objs)
}
