// Package docstore implements the remote backend as a single JSON document
// holding every list and card, read and rewritten as a whole on each change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/remote"
)

// Document is the stored form of a board.
type Document struct {
	Lists []remote.ListRecord `json:"lists"`
	Cards []remote.CardRecord `json:"cards"`
}

// Store is a remote.Backend over a Blob. Writes are serialized so concurrent
// read-modify-write cycles from one process do not lose updates.
type Store struct {
	blob   Blob
	logger *zap.Logger
	newID  func() string
	mu     sync.Mutex
}

func New(blob Blob, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{blob: blob, logger: logger, newID: uuid.NewString}
}

func (s *Store) load(ctx context.Context) (*Document, error) {
	data, err := s.blob.Get(ctx)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Debug("Board document not found, starting empty")
		return &Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding board json: %w", err)
	}
	return &doc, nil
}

func (s *Store) save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding board json: %w", err)
	}
	return s.blob.Put(ctx, data)
}

// update runs fn on the current document and saves it when fn reports a
// change.
func (s *Store) update(ctx context.Context, fn func(doc *Document) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.save(ctx, doc)
}

func (s *Store) Lists(ctx context.Context) ([]remote.ListRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Lists, nil
}

func (s *Store) Cards(ctx context.Context) ([]remote.CardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Cards, nil
}

func (s *Store) CreateList(ctx context.Context, title string, position int) (*remote.ListRecord, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	rec := remote.ListRecord{ID: s.newID(), Title: title, Position: position}
	err := s.update(ctx, func(doc *Document) (bool, error) {
		doc.Lists = append(doc.Lists, rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("List created", zap.String("list", rec.ID), zap.String("title", title))
	return &rec, nil
}

func (s *Store) CreateCard(ctx context.Context, listID, title string) (*remote.CardRecord, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	var created *remote.CardRecord
	err := s.update(ctx, func(doc *Document) (bool, error) {
		if !hasList(doc, listID) {
			return false, nil
		}
		rec := remote.CardRecord{
			ID:       s.newID(),
			ListID:   listID,
			Title:    title,
			Position: remote.NextPosition(doc.Cards, listID),
		}
		doc.Cards = append(doc.Cards, rec)
		created = &rec
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		s.logger.Info("Card create rejected", zap.String("list", listID))
		return nil, nil
	}
	s.logger.Info("Card created", zap.String("card", created.ID), zap.String("list", listID))
	return created, nil
}

func (s *Store) UpdateCard(ctx context.Context, cardID, title string) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		for i := range doc.Cards {
			if doc.Cards[i].ID == cardID {
				doc.Cards[i].Title = title
				return true, nil
			}
		}
		return false, remote.ErrNotFound
	})
}

func (s *Store) MoveCard(ctx context.Context, cardID, listID string, position int) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		if !hasList(doc, listID) {
			return false, remote.ErrNotFound
		}
		changed, err := remote.Reposition(doc.Cards, cardID, listID, position)
		if err != nil {
			return false, err
		}
		byID := make(map[string]remote.CardRecord, len(changed))
		for _, c := range changed {
			byID[c.ID] = c
		}
		for i, c := range doc.Cards {
			if u, ok := byID[c.ID]; ok {
				doc.Cards[i] = u
			}
		}
		return true, nil
	})
}

func (s *Store) DeleteCard(ctx context.Context, cardID string) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		kept := doc.Cards[:0]
		for _, c := range doc.Cards {
			if c.ID != cardID {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(doc.Cards) {
			return false, remote.ErrNotFound
		}
		doc.Cards = kept
		return true, nil
	})
}

func hasList(doc *Document, listID string) bool {
	for _, l := range doc.Lists {
		if l.ID == listID {
			return true
		}
	}
	return false
}
