// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gmllt/kboard/internal/remote"
)

// Operation names accepted by Hold and reported by Calls.
const (
	OpLists      = "lists"
	OpCards      = "cards"
	OpCreateList = "create_list"
	OpCreateCard = "create_card"
	OpUpdateCard = "update_card"
	OpMoveCard   = "move_card"
	OpDeleteCard = "delete_card"
)

// FakeBackend is an in-memory implementation of remote.Backend for testing.
type FakeBackend struct {
	mu     sync.Mutex
	lists  []remote.ListRecord
	cards  []remote.CardRecord
	nextID int
	calls  []string
	holds  map[string]chan struct{}

	// Error injection for testing
	ListsErr      error
	CardsErr      error
	CreateListErr error
	CreateCardErr error
	UpdateCardErr error
	MoveCardErr   error
	DeleteCardErr error

	// RejectCreateCard makes CreateCard refuse every write.
	RejectCreateCard bool
	// RejectLists holds list titles CreateList refuses.
	RejectLists map[string]bool
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		holds:       make(map[string]chan struct{}),
		RejectLists: make(map[string]bool),
	}
}

// AddList adds a list to the fake backend.
func (f *FakeBackend) AddList(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, remote.ListRecord{ID: id, Title: title, Position: len(f.lists)})
}

// AddCard appends a card to a list.
func (f *FakeBackend) AddCard(listID, cardID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = append(f.cards, remote.CardRecord{
		ID:       cardID,
		ListID:   listID,
		Title:    title,
		Position: remote.NextPosition(f.cards, listID),
	})
}

// Card returns the stored card with the given id.
func (f *FakeBackend) Card(cardID string) (remote.CardRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.ID == cardID {
			return c, true
		}
	}
	return remote.CardRecord{}, false
}

// CardCount returns the number of stored cards.
func (f *FakeBackend) CardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cards)
}

// Calls returns the operations invoked so far, in order.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (f *FakeBackend) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// Hold blocks every subsequent call to op until release is called.
func (f *FakeBackend) Hold(op string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[op] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.holds[op] == ch {
				delete(f.holds, op)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *FakeBackend) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	ch := f.holds[op]
	f.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lists implements remote.Backend.
func (f *FakeBackend) Lists(ctx context.Context) ([]remote.ListRecord, error) {
	if err := f.enter(ctx, OpLists); err != nil {
		return nil, err
	}
	if f.ListsErr != nil {
		return nil, f.ListsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.ListRecord, len(f.lists))
	copy(out, f.lists)
	return out, nil
}

// Cards implements remote.Backend.
func (f *FakeBackend) Cards(ctx context.Context) ([]remote.CardRecord, error) {
	if err := f.enter(ctx, OpCards); err != nil {
		return nil, err
	}
	if f.CardsErr != nil {
		return nil, f.CardsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.CardRecord, len(f.cards))
	copy(out, f.cards)
	return out, nil
}

// CreateList implements remote.Backend.
func (f *FakeBackend) CreateList(ctx context.Context, title string, position int) (*remote.ListRecord, error) {
	if err := f.enter(ctx, OpCreateList); err != nil {
		return nil, err
	}
	if f.CreateListErr != nil {
		return nil, f.CreateListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(title) == "" || f.RejectLists[title] {
		return nil, nil
	}
	f.nextID++
	rec := remote.ListRecord{ID: fmt.Sprintf("list-%d", f.nextID), Title: title, Position: position}
	f.lists = append(f.lists, rec)
	return &rec, nil
}

// CreateCard implements remote.Backend.
func (f *FakeBackend) CreateCard(ctx context.Context, listID, title string) (*remote.CardRecord, error) {
	if err := f.enter(ctx, OpCreateCard); err != nil {
		return nil, err
	}
	if f.CreateCardErr != nil {
		return nil, f.CreateCardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectCreateCard || strings.TrimSpace(title) == "" || !f.hasList(listID) {
		return nil, nil
	}
	f.nextID++
	rec := remote.CardRecord{
		ID:       fmt.Sprintf("card-%d", f.nextID),
		ListID:   listID,
		Title:    title,
		Position: remote.NextPosition(f.cards, listID),
	}
	f.cards = append(f.cards, rec)
	return &rec, nil
}

// UpdateCard implements remote.Backend.
func (f *FakeBackend) UpdateCard(ctx context.Context, cardID, title string) error {
	if err := f.enter(ctx, OpUpdateCard); err != nil {
		return err
	}
	if f.UpdateCardErr != nil {
		return f.UpdateCardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cards {
		if f.cards[i].ID == cardID {
			f.cards[i].Title = title
			return nil
		}
	}
	return remote.ErrNotFound
}

// MoveCard implements remote.Backend.
func (f *FakeBackend) MoveCard(ctx context.Context, cardID, listID string, position int) error {
	if err := f.enter(ctx, OpMoveCard); err != nil {
		return err
	}
	if f.MoveCardErr != nil {
		return f.MoveCardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasList(listID) {
		return remote.ErrNotFound
	}
	changed, err := remote.Reposition(f.cards, cardID, listID, position)
	if err != nil {
		return err
	}
	byID := make(map[string]remote.CardRecord, len(changed))
	for _, c := range changed {
		byID[c.ID] = c
	}
	for i, c := range f.cards {
		if u, ok := byID[c.ID]; ok {
			f.cards[i] = u
		}
	}
	return nil
}

// DeleteCard implements remote.Backend.
func (f *FakeBackend) DeleteCard(ctx context.Context, cardID string) error {
	if err := f.enter(ctx, OpDeleteCard); err != nil {
		return err
	}
	if f.DeleteCardErr != nil {
		return f.DeleteCardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.cards {
		if c.ID == cardID {
			f.cards = append(f.cards[:i], f.cards[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (f *FakeBackend) hasList(listID string) bool {
	for _, l := range f.lists {
		if l.ID == listID {
			return true
		}
	}
	return false
}
