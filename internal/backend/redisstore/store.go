// Package redisstore implements the remote backend on Redis. Lists and cards
// are stored as JSON values in two hashes under an instance namespace:
//
//	{namespace}:lists  list id -> ListRecord
//	{namespace}:cards  card id -> CardRecord
//
// Writes that read existing records run in WATCH transactions and retry when
// another writer got there first.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/remote"
)

// maxRetries bounds the optimistic transaction retries of a single write.
const maxRetries = 32

var ErrConflict = errors.New("too many concurrent writers")

func ListsKey(namespace string) string { return namespace + ":lists" }
func CardsKey(namespace string) string { return namespace + ":cards" }

// Store is a remote.Backend over a Redis client. It is safe for concurrent
// use.
type Store struct {
	rdb       *redis.Client
	namespace string
	logger    *zap.Logger
	newID     func() string
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithIDGenerator sets the generator for list and card ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates a store on a new client built from redisOpts. All keys are
// namespaced; the namespace must not be empty.
func New(redisOpts *redis.Options, namespace string, opts ...Option) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	s := &Store{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Lists(ctx context.Context) ([]remote.ListRecord, error) {
	raw, err := s.rdb.HGetAll(ctx, ListsKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read lists from Redis: %w", err)
	}
	return decodeAll[remote.ListRecord](raw)
}

func (s *Store) Cards(ctx context.Context) ([]remote.CardRecord, error) {
	return s.cards(ctx, s.rdb)
}

func (s *Store) CreateList(ctx context.Context, title string, position int) (*remote.ListRecord, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	rec := remote.ListRecord{ID: s.newID(), Title: title, Position: position}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize list: %w", err)
	}
	if err := s.rdb.HSet(ctx, ListsKey(s.namespace), rec.ID, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to write list to Redis: %w", err)
	}
	s.logger.Info("List created", zap.String("list", rec.ID), zap.String("title", title))
	return &rec, nil
}

func (s *Store) CreateCard(ctx context.Context, listID, title string) (*remote.CardRecord, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	var created *remote.CardRecord
	err := s.watch(ctx, func(tx *redis.Tx) error {
		created = nil
		ok, err := tx.HExists(ctx, ListsKey(s.namespace), listID).Result()
		if err != nil {
			return fmt.Errorf("failed to read list from Redis: %w", err)
		}
		if !ok {
			return nil
		}
		cards, err := s.cards(ctx, tx)
		if err != nil {
			return err
		}
		rec := remote.CardRecord{
			ID:       s.newID(),
			ListID:   listID,
			Title:    title,
			Position: remote.NextPosition(cards, listID),
		}
		if err := s.writeCards(ctx, tx, []remote.CardRecord{rec}); err != nil {
			return err
		}
		created = &rec
		return nil
	}, ListsKey(s.namespace), CardsKey(s.namespace))
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
	return s.watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.card(ctx, tx, cardID)
		if err != nil {
			return err
		}
		rec.Title = title
		return s.writeCards(ctx, tx, []remote.CardRecord{rec})
	}, CardsKey(s.namespace))
}

func (s *Store) MoveCard(ctx context.Context, cardID, listID string, position int) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		ok, err := tx.HExists(ctx, ListsKey(s.namespace), listID).Result()
		if err != nil {
			return fmt.Errorf("failed to read list from Redis: %w", err)
		}
		if !ok {
			return remote.ErrNotFound
		}
		cards, err := s.cards(ctx, tx)
		if err != nil {
			return err
		}
		changed, err := remote.Reposition(cards, cardID, listID, position)
		if err != nil {
			return err
		}
		return s.writeCards(ctx, tx, changed)
	}, ListsKey(s.namespace), CardsKey(s.namespace))
}

func (s *Store) DeleteCard(ctx context.Context, cardID string) error {
	n, err := s.rdb.HDel(ctx, CardsKey(s.namespace), cardID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete card from Redis: %w", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// watch runs fn in a WATCH transaction on keys, retrying when a watched key
// changes before the transaction commits.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("Transaction conflict, retrying", zap.Int("attempt", i+1))
	}
	return ErrConflict
}

// hashReader is the read side shared by *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (s *Store) cards(ctx context.Context, c hashReader) ([]remote.CardRecord, error) {
	raw, err := c.HGetAll(ctx, CardsKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cards from Redis: %w", err)
	}
	return decodeAll[remote.CardRecord](raw)
}

func (s *Store) card(ctx context.Context, c hashReader, cardID string) (remote.CardRecord, error) {
	var rec remote.CardRecord
	raw, err := c.HGet(ctx, CardsKey(s.namespace), cardID).Result()
	if errors.Is(err, redis.Nil) {
		return rec, remote.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read card from Redis: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return rec, fmt.Errorf("failed to deserialize card %s: %w", cardID, err)
	}
	return rec, nil
}

// writeCards stores recs in a single MULTI/EXEC.
func (s *Store) writeCards(ctx context.Context, tx *redis.Tx, recs []remote.CardRecord) error {
	values := make([]any, 0, 2*len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to serialize card: %w", err)
		}
		values = append(values, rec.ID, data)
	}
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, CardsKey(s.namespace), values...)
		return nil
	})
	return err
}

func decodeAll[T any](raw map[string]string) ([]T, error) {
	out := make([]T, 0, len(raw))
	for id, v := range raw {
		var rec T
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to deserialize record %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
