// Package remote defines the remote persistence boundary and the sync adapter
// that turns backend records into board values.
package remote

import (
	"context"
	"errors"
	"sort"
)

// ErrNotFound is returned by a Backend when the addressed record is absent.
var ErrNotFound = errors.New("not found")

type ListRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type CardRecord struct {
	ID       string `json:"id"`
	ListID   string `json:"list_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// Backend is the remote store. Create operations return (nil, nil) when the
// write is refused (unknown list, empty title); a non-nil error always means
// the call itself failed.
type Backend interface {
	// Lists returns every list.
	Lists(ctx context.Context) ([]ListRecord, error)

	// Cards returns every card of every list.
	Cards(ctx context.Context) ([]CardRecord, error)

	// CreateList creates a list at the given board position.
	CreateList(ctx context.Context, title string, position int) (*ListRecord, error)

	// CreateCard appends a card to the end of a list and assigns its id.
	CreateCard(ctx context.Context, listID, title string) (*CardRecord, error)

	// UpdateCard changes a card's title.
	UpdateCard(ctx context.Context, cardID, title string) error

	// MoveCard puts a card at position inside listID.
	MoveCard(ctx context.Context, cardID, listID string, position int) error

	// DeleteCard removes a card.
	DeleteCard(ctx context.Context, cardID string) error
}

// SortCards orders cards by list position. Ties keep their input order.
func SortCards(cards []CardRecord) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Position < cards[j].Position
	})
}

// SortLists orders lists by position.
func SortLists(lists []ListRecord) {
	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].Position < lists[j].Position
	})
}

// NextPosition returns the position after the last card of listID.
func NextPosition(cards []CardRecord, listID string) int {
	maxPos := -1
	for _, c := range cards {
		if c.ListID == listID && c.Position > maxPos {
			maxPos = c.Position
		}
	}
	return maxPos + 1
}

// Reposition moves cardID to position inside listID and renumbers the
// positions of the source and destination lists densely. The position is
// clamped to the destination list. It returns the updated records of the
// lists it touched; cards is left untouched.
func Reposition(cards []CardRecord, cardID, listID string, position int) ([]CardRecord, error) {
	var moving *CardRecord
	for i := range cards {
		if cards[i].ID == cardID {
			c := cards[i]
			moving = &c
			break
		}
	}
	if moving == nil {
		return nil, ErrNotFound
	}
	from := moving.ListID

	// Other cards in the target list, excluding the moving one.
	others := make([]CardRecord, 0, len(cards))
	var source []CardRecord
	for _, c := range cards {
		if c.ID == cardID {
			continue
		}
		if c.ListID == listID {
			others = append(others, c)
		} else if c.ListID == from {
			source = append(source, c)
		}
	}
	SortCards(others)
	SortCards(source)

	if position < 0 {
		position = 0
	}
	if position > len(others) {
		position = len(others)
	}

	moving.ListID = listID
	order := make([]CardRecord, 0, len(others)+1)
	order = append(order, others[:position]...)
	order = append(order, *moving)
	order = append(order, others[position:]...)

	changed := make([]CardRecord, 0, len(order)+len(source))
	for i, c := range order {
		c.Position = i
		changed = append(changed, c)
	}
	if from != listID {
		for i, c := range source {
			c.Position = i
			changed = append(changed, c)
		}
	}
	return changed, nil
}
