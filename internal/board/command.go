package board

import "fmt"

// Command is a board mutation intent. Every command is applied by Apply as a
// single transition.
type Command interface {
	command()
}

// LoadBoard replaces the board unconditionally.
type LoadBoard struct {
	Board Board
}

// CreateCard appends an optimistic card to a list.
type CreateCard struct {
	ListID string
	Card   Card
}

type EditCard struct {
	ListID string
	CardID string
	Patch  CardPatch
}

type DeleteCard struct {
	ListID string
	CardID string
}

type MoveCard struct {
	FromListID string
	ToListID   string
	FromIndex  int
	ToIndex    int
}

// ConfirmCard swaps the optimistic card TempID for the persisted Card. ListID
// is where the card was created; the card is found wherever it lives now.
type ConfirmCard struct {
	TempID string
	Card   Card
	ListID string
}

// RollbackCard drops the optimistic card TempID after a failed create.
type RollbackCard struct {
	TempID string
	ListID string
}

// DeleteConfirmed removes CardID from whichever list holds it and settles the
// pending delete.
type DeleteConfirmed struct {
	CardID string
}

// DeleteFailed settles a pending delete without touching the board.
type DeleteFailed struct {
	CardID string
}

func (LoadBoard) command()       {}
func (CreateCard) command()      {}
func (EditCard) command()        {}
func (DeleteCard) command()      {}
func (MoveCard) command()        {}
func (ConfirmCard) command()     {}
func (RollbackCard) command()    {}
func (DeleteConfirmed) command() {}
func (DeleteFailed) command()    {}

// Apply is the board reducer. It never modifies b: the result is a new board
// that shares untouched lists with b. When the command references a missing
// list, card or index, b is returned unchanged together with an error.
func Apply(b Board, cmd Command) (Board, error) {
	return apply(b, cmd, b.locate)
}

// locator resolves the list currently holding a card.
type locator func(cardID string) (listID string, ok bool)

func (b Board) locate(cardID string) (string, bool) {
	i, _ := b.Find(cardID)
	if i < 0 {
		return "", false
	}
	return b[i].ID, true
}

func apply(b Board, cmd Command, locate locator) (Board, error) {
	switch c := cmd.(type) {
	case LoadBoard:
		return c.Board, nil

	case CreateCard:
		i := b.ListIndex(c.ListID)
		if i < 0 {
			return b, fmt.Errorf("create card in %s: %w", c.ListID, ErrListNotFound)
		}
		if _, ok := locate(c.Card.ID); ok {
			return b, fmt.Errorf("create card %s: %w", c.Card.ID, ErrDuplicateCard)
		}
		l := b[i]
		cards := make([]Card, 0, len(l.Cards)+1)
		l.Cards = append(append(cards, l.Cards...), c.Card)
		return b.withList(i, l), nil

	case EditCard:
		return updateCard(b, c.ListID, c.CardID, func(cards []Card, j int) []Card {
			cards[j] = c.Patch.Apply(cards[j])
			return cards
		})

	case DeleteCard:
		return updateCard(b, c.ListID, c.CardID, removeAt)

	case MoveCard:
		return Move(b, c.FromListID, c.ToListID, c.FromIndex, c.ToIndex)

	case ConfirmCard:
		listID, ok := locate(c.TempID)
		if !ok {
			return b, fmt.Errorf("confirm card %s: %w", c.TempID, ErrCardNotFound)
		}
		if c.Card.ID != c.TempID {
			if _, dup := locate(c.Card.ID); dup {
				// Already on the board, e.g. from a reload. Keep the id unique.
				return updateCard(b, listID, c.TempID, removeAt)
			}
		}
		return updateCard(b, listID, c.TempID, func(cards []Card, j int) []Card {
			cards[j] = c.Card
			return cards
		})

	case RollbackCard:
		listID, ok := locate(c.TempID)
		if !ok {
			return b, fmt.Errorf("rollback card %s: %w", c.TempID, ErrCardNotFound)
		}
		return updateCard(b, listID, c.TempID, removeAt)

	case DeleteConfirmed:
		listID, ok := locate(c.CardID)
		if !ok {
			return b, nil
		}
		return updateCard(b, listID, c.CardID, removeAt)

	case DeleteFailed:
		return b, nil
	}
	return b, fmt.Errorf("unknown command %T", cmd)
}

func removeAt(cards []Card, j int) []Card {
	return append(cards[:j], cards[j+1:]...)
}

// updateCard copies the card slice of listID and hands it to fn along with
// the position of cardID.
func updateCard(b Board, listID, cardID string, fn func(cards []Card, j int) []Card) (Board, error) {
	i := b.ListIndex(listID)
	if i < 0 {
		return b, fmt.Errorf("list %s: %w", listID, ErrListNotFound)
	}
	l := b[i]
	j := l.CardIndex(cardID)
	if j < 0 {
		return b, fmt.Errorf("card %s in %s: %w", cardID, listID, ErrCardNotFound)
	}
	cards := make([]Card, len(l.Cards))
	copy(cards, l.Cards)
	l.Cards = fn(cards, j)
	return b.withList(i, l), nil
}
