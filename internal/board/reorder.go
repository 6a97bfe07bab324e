package board

import (
	"errors"
	"fmt"
)

var (
	ErrListNotFound    = errors.New("list not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateCard   = errors.New("duplicate card id")
)

// Reorder moves the card at from to position to inside the same list. to is
// an index into the list with the card already removed.
func Reorder(l List, from, to int) (List, error) {
	n := len(l.Cards)
	if from < 0 || from >= n {
		return l, fmt.Errorf("reorder %s from %d: %w", l.ID, from, ErrIndexOutOfRange)
	}
	if to < 0 || to > n-1 {
		return l, fmt.Errorf("reorder %s to %d: %w", l.ID, to, ErrIndexOutOfRange)
	}
	if from == to {
		return l, nil
	}
	moved := l.Cards[from]
	cards := make([]Card, 0, n)
	cards = append(cards, l.Cards[:from]...)
	cards = append(cards, l.Cards[from+1:]...)
	cards = insertAt(cards, to, moved)
	l.Cards = cards
	return l, nil
}

// Move relocates the card at fromIndex of fromListID to toIndex of toListID.
// Within one list it behaves like Reorder. Across lists toIndex addresses the
// destination list as it stood before the move. On error b is returned as is.
func Move(b Board, fromListID, toListID string, fromIndex, toIndex int) (Board, error) {
	src := b.ListIndex(fromListID)
	if src < 0 {
		return b, fmt.Errorf("move from %s: %w", fromListID, ErrListNotFound)
	}
	if fromListID == toListID {
		l, err := Reorder(b[src], fromIndex, toIndex)
		if err != nil {
			return b, err
		}
		if fromIndex == toIndex {
			return b, nil
		}
		return b.withList(src, l), nil
	}

	dst := b.ListIndex(toListID)
	if dst < 0 {
		return b, fmt.Errorf("move to %s: %w", toListID, ErrListNotFound)
	}
	from, to := b[src], b[dst]
	if fromIndex < 0 || fromIndex >= len(from.Cards) {
		return b, fmt.Errorf("move from %s[%d]: %w", fromListID, fromIndex, ErrIndexOutOfRange)
	}
	if toIndex < 0 || toIndex > len(to.Cards) {
		return b, fmt.Errorf("move to %s[%d]: %w", toListID, toIndex, ErrIndexOutOfRange)
	}

	card := from.Cards[fromIndex]
	srcCards := make([]Card, 0, len(from.Cards)-1)
	srcCards = append(srcCards, from.Cards[:fromIndex]...)
	from.Cards = append(srcCards, from.Cards[fromIndex+1:]...)

	dstCards := make([]Card, 0, len(to.Cards)+1)
	to.Cards = insertAt(append(dstCards, to.Cards...), toIndex, card)

	out := make(Board, len(b))
	copy(out, b)
	out[src] = from
	out[dst] = to
	return out, nil
}

// IsNoopMove reports whether a move leaves the board untouched.
func IsNoopMove(fromListID, toListID string, fromIndex, toIndex int) bool {
	return fromListID == toListID && fromIndex == toIndex
}

// insertAt inserts c at i. cards must be owned by the caller.
func insertAt(cards []Card, i int, c Card) []Card {
	cards = append(cards, Card{})
	copy(cards[i+1:], cards[i:])
	cards[i] = c
	return cards
}
