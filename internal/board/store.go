package board

import (
	"sync"
)

// Store owns the canonical board snapshot and the pending map. Every
// transition replaces the snapshot with a new value; published snapshots are
// never modified, so readers may keep them.
type Store struct {
	mu      sync.RWMutex
	board   Board
	pending map[string]bool
	// index maps a card id to the id of the list holding it.
	index map[string]string

	subMu     sync.Mutex
	subs      map[int]func(Board)
	nextSubID int
}

func NewStore() *Store {
	return &Store{
		board:   Board{},
		pending: make(map[string]bool),
		index:   make(map[string]string),
		subs:    make(map[int]func(Board)),
	}
}

// Board returns the current snapshot.
func (s *Store) Board() Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// Pending reports whether a create or delete is in flight for cardID.
func (s *Store) Pending(cardID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[cardID]
}

// PendingMap returns a copy of the pending map.
func (s *Store) PendingMap() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.pending))
	for id, v := range s.pending {
		out[id] = v
	}
	return out
}

// Locate returns the id of the list holding cardID.
func (s *Store) Locate(cardID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listID, ok := s.index[cardID]
	return listID, ok
}

// Dispatch applies cmd atomically and returns the resulting snapshot. On a
// contract violation the board is left as it was and the error is returned.
// Settlement commands clear the pending flag even then: the operation is
// over whether or not its card is still on the board.
func (s *Store) Dispatch(cmd Command) (Board, error) {
	s.mu.Lock()
	prev := s.board
	next, err := apply(prev, cmd, s.locate)
	if err != nil {
		if settles(cmd) {
			s.trackPending(cmd)
		}
		s.mu.Unlock()
		return prev, err
	}
	s.board = next
	s.reindex(prev, next, cmd)
	s.trackPending(cmd)
	s.mu.Unlock()

	if !sameBoard(prev, next) {
		s.notify(next)
	}
	return next, nil
}

// Subscribe registers fn to be called with every new snapshot. fn runs
// outside the store lock on the dispatching goroutine.
func (s *Store) Subscribe(fn func(Board)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(b Board) {
	s.subMu.Lock()
	fns := make([]func(Board), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(b)
	}
}

func (s *Store) locate(cardID string) (string, bool) {
	listID, ok := s.index[cardID]
	return listID, ok
}

// reindex refreshes the card index for lists whose card slice changed.
// Untouched lists keep sharing their slice with prev, which makes the check
// cheap.
func (s *Store) reindex(prev, next Board, cmd Command) {
	if _, ok := cmd.(LoadBoard); ok {
		s.index = make(map[string]string, next.CardCount())
		for _, l := range next {
			for _, c := range l.Cards {
				s.index[c.ID] = l.ID
			}
		}
		return
	}
	for i, l := range next {
		if i < len(prev) && sameCards(prev[i].Cards, l.Cards) {
			continue
		}
		if i < len(prev) {
			for _, c := range prev[i].Cards {
				if s.index[c.ID] == prev[i].ID {
					delete(s.index, c.ID)
				}
			}
		}
	}
	for i, l := range next {
		if i < len(prev) && sameCards(prev[i].Cards, l.Cards) {
			continue
		}
		for _, c := range l.Cards {
			s.index[c.ID] = l.ID
		}
	}
}

func (s *Store) trackPending(cmd Command) {
	switch c := cmd.(type) {
	case LoadBoard:
		// A loaded board replaces every card; flags of cards it dropped can
		// never settle.
		for id := range s.pending {
			if _, ok := s.index[id]; !ok {
				delete(s.pending, id)
			}
		}
	case CreateCard:
		s.pending[c.Card.ID] = true
	case DeleteCard:
		s.pending[c.CardID] = true
	case ConfirmCard:
		delete(s.pending, c.TempID)
	case RollbackCard:
		delete(s.pending, c.TempID)
	case DeleteConfirmed:
		delete(s.pending, c.CardID)
	case DeleteFailed:
		delete(s.pending, c.CardID)
	}
}

func settles(cmd Command) bool {
	switch cmd.(type) {
	case ConfirmCard, RollbackCard, DeleteConfirmed, DeleteFailed:
		return true
	}
	return false
}

func sameCards(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func sameBoard(a, b Board) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
