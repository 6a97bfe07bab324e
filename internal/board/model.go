// Package board holds the in-memory Kanban board: its data model, the
// reorder/move algorithm, the reducer and the state store built on it.
package board

type Card struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type List struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Cards []Card `json:"cards"`
}

// Board is the ordered sequence of lists. Card order inside a list is the
// slice order; there is no separate rank field.
type Board []List

// CardPatch carries the card fields an edit may change. Nil fields are left
// untouched.
type CardPatch struct {
	Title *string `json:"title,omitempty"`
}

// Apply merges the patch into c and returns the result.
func (p CardPatch) Apply(c Card) Card {
	if p.Title != nil {
		c.Title = *p.Title
	}
	return c
}

// ListIndex returns the position of the list with the given id, or -1.
func (b Board) ListIndex(listID string) int {
	for i, l := range b {
		if l.ID == listID {
			return i
		}
	}
	return -1
}

// CardIndex returns the position of the card with the given id, or -1.
func (l List) CardIndex(cardID string) int {
	for i, c := range l.Cards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// Find returns the list and card position of cardID, or (-1, -1).
func (b Board) Find(cardID string) (int, int) {
	for i, l := range b {
		if j := l.CardIndex(cardID); j >= 0 {
			return i, j
		}
	}
	return -1, -1
}

// CardCount returns the number of cards across all lists.
func (b Board) CardCount() int {
	n := 0
	for _, l := range b {
		n += len(l.Cards)
	}
	return n
}

// withList returns a copy of b where list i is replaced. Other lists share
// their card slices with b.
func (b Board) withList(i int, l List) Board {
	out := make(Board, len(b))
	copy(out, b)
	out[i] = l
	return out
}
