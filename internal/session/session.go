// Package session drives a board store against a remote adapter: it applies
// user commands optimistically, persists them in the background and
// reconciles the outcome back into the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/board"
)

var (
	// ErrCardPending is returned for edits, moves and deletes of a card
	// whose create or delete is still in flight.
	ErrCardPending = errors.New("card has a pending operation")
	ErrClosed      = errors.New("session closed")
)

// Remote is the persistence side of a session. remote.Adapter implements it.
type Remote interface {
	CreateCard(ctx context.Context, card board.Card, listID string) (*board.Card, error)
	DeleteCard(ctx context.Context, cardID string) error
	UpdateCard(ctx context.Context, cardID string, patch board.CardPatch) error
	MoveCard(ctx context.Context, cardID, toListID string, toIndex int) error
	LoadBoard(ctx context.Context) (board.Board, error)
	InitializeBoard(ctx context.Context) (board.Board, error)
}

// Session owns one board store for the lifetime of a board view. Create it
// when the view mounts and Close it when the view goes away.
type Session struct {
	store  *board.Store
	remote Remote
	newID  func() string
	logger *zap.Logger

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	loading  bool
	closed   bool

	hookMu     sync.Mutex
	hooks      map[int]func(CreateOutcome)
	nextHookID int
}

// CreateOutcome reports how a background create settled. Card is nil when
// the create was rolled back; Err is set when the call itself failed, and a
// nil Card with a nil Err means the remote store refused the card.
type CreateOutcome struct {
	TempID string
	ListID string
	Card   *board.Card
	Err    error
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithIDGenerator sets the generator for temporary card ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithStore makes the session drive an existing store.
func WithStore(store *board.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

func New(remote Remote, opts ...Option) *Session {
	s := &Session{
		remote: remote,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
		hooks:  make(map[int]func(CreateOutcome)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = board.NewStore()
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Store returns the store the session drives.
func (s *Session) Store() *board.Store {
	return s.store
}

// Board returns the current board snapshot.
func (s *Session) Board() board.Board {
	return s.store.Board()
}

// Activate loads the board from the remote store, provisioning the default
// lists when it has none. Operations still in flight are awaited first, and
// new commands wait until the loaded board is in place, so a load never
// discards an optimistic update.
func (s *Session) Activate(ctx context.Context) error {
	if err := s.beginLoad(); err != nil {
		return err
	}
	defer s.endLoad()

	b, err := s.remote.LoadBoard(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if len(b) == 0 {
		s.logger.Info("Board is empty, provisioning default lists")
		b, err = s.remote.InitializeBoard(ctx)
		if err != nil {
			return fmt.Errorf("activate: %w", err)
		}
	}
	if _, err := s.store.Dispatch(board.LoadBoard{Board: b}); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	s.logger.Debug("Board loaded", zap.Int("lists", len(b)), zap.Int("cards", b.CardCount()))
	return nil
}

// OnCreateSettled registers fn to be called once for every create when its
// outcome is reconciled into the store. fn runs on the persisting goroutine
// before Wait returns.
func (s *Session) OnCreateSettled(fn func(CreateOutcome)) (unsubscribe func()) {
	s.hookMu.Lock()
	id := s.nextHookID
	s.nextHookID++
	s.hooks[id] = fn
	s.hookMu.Unlock()

	return func() {
		s.hookMu.Lock()
		delete(s.hooks, id)
		s.hookMu.Unlock()
	}
}

// CreateCard adds a card to listID immediately under a temporary id and
// persists it in the background. The card is swapped for the persisted one
// when the remote store accepts it and removed when it does not.
func (s *Session) CreateCard(ctx context.Context, listID, title string) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}
	card := board.Card{ID: s.newID(), Title: title}
	if _, err := s.store.Dispatch(board.CreateCard{ListID: listID, Card: card}); err != nil {
		s.done()
		return "", err
	}

	s.persist(ctx, func(ctx context.Context) {
		saved, err := s.remote.CreateCard(ctx, card, listID)
		switch {
		case err != nil:
			s.logger.Warn("Card create failed, rolling back",
				zap.String("card", card.ID), zap.String("list", listID), zap.Error(err))
			s.dispatch(board.RollbackCard{TempID: card.ID, ListID: listID})
		case saved == nil:
			s.logger.Warn("Card create rejected, rolling back",
				zap.String("card", card.ID), zap.String("list", listID))
			s.dispatch(board.RollbackCard{TempID: card.ID, ListID: listID})
		default:
			s.logger.Debug("Card confirmed",
				zap.String("temp_id", card.ID), zap.String("card", saved.ID))
			s.dispatch(board.ConfirmCard{TempID: card.ID, Card: *saved, ListID: listID})
		}
		s.createSettled(CreateOutcome{TempID: card.ID, ListID: listID, Card: saved, Err: err})
	})
	return card.ID, nil
}

// EditCard applies patch locally and persists it. A failed update is not
// rolled back. Cards with a create or delete in flight are refused with
// ErrCardPending.
func (s *Session) EditCard(ctx context.Context, listID, cardID string, patch board.CardPatch) error {
	if err := s.begin(); err != nil {
		return err
	}
	if s.store.Pending(cardID) {
		s.done()
		return fmt.Errorf("edit card %s: %w", cardID, ErrCardPending)
	}
	if _, err := s.store.Dispatch(board.EditCard{ListID: listID, CardID: cardID, Patch: patch}); err != nil {
		s.done()
		return err
	}

	s.persist(ctx, func(ctx context.Context) {
		if err := s.remote.UpdateCard(ctx, cardID, patch); err != nil {
			s.logger.Warn("Card update failed", zap.String("card", cardID), zap.Error(err))
		}
	})
	return nil
}

// DeleteCard removes the card locally and persists the deletion. A failed
// delete only clears the pending flag; the card stays removed locally.
func (s *Session) DeleteCard(ctx context.Context, listID, cardID string) error {
	if err := s.begin(); err != nil {
		return err
	}
	if s.store.Pending(cardID) {
		s.done()
		return fmt.Errorf("delete card %s: %w", cardID, ErrCardPending)
	}
	if _, err := s.store.Dispatch(board.DeleteCard{ListID: listID, CardID: cardID}); err != nil {
		s.done()
		return err
	}

	s.persist(ctx, func(ctx context.Context) {
		if err := s.remote.DeleteCard(ctx, cardID); err != nil {
			s.logger.Warn("Card delete failed", zap.String("card", cardID), zap.Error(err))
			s.dispatch(board.DeleteFailed{CardID: cardID})
			return
		}
		s.dispatch(board.DeleteConfirmed{CardID: cardID})
	})
	return nil
}

// MoveCard repositions a card locally and persists the new position. A
// failed move is not rolled back. Cards with a create or delete in flight
// are refused with ErrCardPending.
func (s *Session) MoveCard(ctx context.Context, fromListID, toListID string, fromIndex, toIndex int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if board.IsNoopMove(fromListID, toListID, fromIndex, toIndex) {
		return nil
	}
	if err := s.begin(); err != nil {
		return err
	}
	if id, ok := cardAt(s.store.Board(), fromListID, fromIndex); ok && s.store.Pending(id) {
		s.done()
		return fmt.Errorf("move card %s: %w", id, ErrCardPending)
	}
	next, err := s.store.Dispatch(board.MoveCard{
		FromListID: fromListID,
		ToListID:   toListID,
		FromIndex:  fromIndex,
		ToIndex:    toIndex,
	})
	if err != nil {
		s.done()
		return err
	}

	cardID := next[next.ListIndex(toListID)].Cards[toIndex].ID
	s.persist(ctx, func(ctx context.Context) {
		if err := s.remote.MoveCard(ctx, cardID, toListID, toIndex); err != nil {
			s.logger.Warn("Card move failed",
				zap.String("card", cardID), zap.String("list", toListID), zap.Error(err))
		}
	})
	return nil
}

// Drop handles the end of a drag. Drops outside any list, or back onto the
// starting slot, issue no command.
func (s *Session) Drop(ctx context.Context, d board.DropResult) error {
	m, ok := d.Move()
	if !ok {
		return nil
	}
	return s.MoveCard(ctx, m.FromListID, m.ToListID, m.FromIndex, m.ToIndex)
}

// Wait blocks until every in-flight persistence call has been reconciled.
func (s *Session) Wait() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Close rejects further commands and waits for in-flight calls. In-flight
// calls are never cancelled.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.idle.Broadcast()
	s.mu.Unlock()
	s.Wait()
	return nil
}

// begin registers a command that may leave a call in flight. It blocks while
// a board load is in progress. Every begin is matched by exactly one done.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.loading && !s.closed {
		s.idle.Wait()
	}
	if s.closed {
		return ErrClosed
	}
	s.inflight++
	return nil
}

func (s *Session) done() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// beginLoad closes the gate for new commands and waits for in-flight ones
// to settle. Loads run one at a time.
func (s *Session) beginLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.loading && !s.closed {
		s.idle.Wait()
	}
	if s.closed {
		return ErrClosed
	}
	s.loading = true
	for s.inflight > 0 {
		s.idle.Wait()
	}
	return nil
}

func (s *Session) endLoad() {
	s.mu.Lock()
	s.loading = false
	s.idle.Broadcast()
	s.mu.Unlock()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// persist runs fn in the background and ends the command's begin once fn
// returns. The call outlives the caller's context: once dispatched it always
// runs to completion.
func (s *Session) persist(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		defer s.done()
		fn(context.WithoutCancel(ctx))
	}()
}

func (s *Session) createSettled(o CreateOutcome) {
	s.hookMu.Lock()
	fns := make([]func(CreateOutcome), 0, len(s.hooks))
	for _, fn := range s.hooks {
		fns = append(fns, fn)
	}
	s.hookMu.Unlock()

	for _, fn := range fns {
		fn(o)
	}
}

func cardAt(b board.Board, listID string, index int) (string, bool) {
	i := b.ListIndex(listID)
	if i < 0 || index < 0 || index >= len(b[i].Cards) {
		return "", false
	}
	return b[i].Cards[index].ID, true
}

// dispatch applies a reconciliation command. A failure here means the card
// vanished meanwhile, which is expected and only logged.
func (s *Session) dispatch(cmd board.Command) {
	if _, err := s.store.Dispatch(cmd); err != nil {
		s.logger.Debug("Reconciliation skipped", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Error(err))
	}
}
