package board

// Location addresses a slot in a list.
type Location struct {
	ListID string `json:"list_id"`
	Index  int    `json:"index"`
}

// DropResult is what the drag-and-drop boundary reports when a drag ends.
// Destination is nil when the card was dropped outside any list.
type DropResult struct {
	Source      Location  `json:"source"`
	Destination *Location `json:"destination,omitempty"`
}

// Move converts the drop into a MoveCard command. It reports false when the
// drop must not produce a command: no destination, or the card went back to
// where it started.
func (d DropResult) Move() (MoveCard, bool) {
	if d.Destination == nil {
		return MoveCard{}, false
	}
	m := MoveCard{
		FromListID: d.Source.ListID,
		ToListID:   d.Destination.ListID,
		FromIndex:  d.Source.Index,
		ToIndex:    d.Destination.Index,
	}
	if IsNoopMove(m.FromListID, m.ToListID, m.FromIndex, m.ToIndex) {
		return MoveCard{}, false
	}
	return m, true
}
