package remote

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gmllt/kboard/internal/board"
)

// DefaultLists are the lists provisioned for a board that has none.
var DefaultLists = []string{"To Do", "In Progress", "Done"}

// Adapter persists board mutations through a Backend and converts its
// records into board values. Calls are never retried.
type Adapter struct {
	backend      Backend
	defaultLists []string
	logger       *zap.Logger
}

type Option func(*Adapter)

// WithDefaultLists overrides the titles used by InitializeBoard.
func WithDefaultLists(titles []string) Option {
	return func(a *Adapter) {
		if len(titles) > 0 {
			a.defaultLists = titles
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

func NewAdapter(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend:      backend,
		defaultLists: DefaultLists,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateCard persists card in listID. The returned card carries the id the
// backend assigned. A nil card with a nil error means the backend refused
// the write.
func (a *Adapter) CreateCard(ctx context.Context, card board.Card, listID string) (*board.Card, error) {
	rec, err := a.backend.CreateCard(ctx, listID, card.Title)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return &board.Card{ID: rec.ID, Title: rec.Title}, nil
}

func (a *Adapter) DeleteCard(ctx context.Context, cardID string) error {
	if err := a.backend.DeleteCard(ctx, cardID); err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	return nil
}

// UpdateCard persists the fields set in patch.
func (a *Adapter) UpdateCard(ctx context.Context, cardID string, patch board.CardPatch) error {
	if patch.Title == nil {
		return nil
	}
	if err := a.backend.UpdateCard(ctx, cardID, *patch.Title); err != nil {
		return fmt.Errorf("update card %s: %w", cardID, err)
	}
	return nil
}

func (a *Adapter) MoveCard(ctx context.Context, cardID, toListID string, toIndex int) error {
	if err := a.backend.MoveCard(ctx, cardID, toListID, toIndex); err != nil {
		return fmt.Errorf("move card %s: %w", cardID, err)
	}
	return nil
}

// LoadBoard fetches lists and cards in parallel and attaches every card to
// its list. Cards pointing at an unknown list are dropped.
func (a *Adapter) LoadBoard(ctx context.Context) (board.Board, error) {
	var (
		lists []ListRecord
		cards []CardRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lists, err = a.backend.Lists(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = a.backend.Cards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}

	SortLists(lists)
	SortCards(cards)

	b := make(board.Board, 0, len(lists))
	pos := make(map[string]int, len(lists))
	for _, l := range lists {
		pos[l.ID] = len(b)
		b = append(b, board.List{ID: l.ID, Title: l.Title, Cards: []board.Card{}})
	}
	for _, c := range cards {
		i, ok := pos[c.ListID]
		if !ok {
			a.logger.Warn("Dropping card with unknown list",
				zap.String("card", c.ID), zap.String("list", c.ListID))
			continue
		}
		b[i].Cards = append(b[i].Cards, board.Card{ID: c.ID, Title: c.Title})
	}
	return b, nil
}

// InitializeBoard creates the default lists in parallel. The result keeps the
// configured order; lists the backend refused are left out.
func (a *Adapter) InitializeBoard(ctx context.Context) (board.Board, error) {
	created := make([]*ListRecord, len(a.defaultLists))
	g, gctx := errgroup.WithContext(ctx)
	for i, title := range a.defaultLists {
		i, title := i, title
		g.Go(func() error {
			rec, err := a.backend.CreateList(gctx, title, i)
			if err != nil {
				return fmt.Errorf("create list %q: %w", title, err)
			}
			created[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("initialize board: %w", err)
	}

	b := make(board.Board, 0, len(created))
	for _, rec := range created {
		if rec == nil {
			continue
		}
		b = append(b, board.List{ID: rec.ID, Title: rec.Title, Cards: []board.Card{}})
	}
	a.logger.Info("Board initialized", zap.Int("lists", len(b)))
	return b, nil
}
