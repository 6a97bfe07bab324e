package redisstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmllt/kboard/internal/remote"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	var mu sync.Mutex
	n := 0
	store, err := New(&redis.Options{Addr: mr.Addr()}, "test-board", WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func listCards(t *testing.T, s *Store, listID string) []string {
	t.Helper()
	cards, err := s.Cards(context.Background())
	require.NoError(t, err)
	remote.SortCards(cards)
	var ids []string
	for _, c := range cards {
		if c.ListID == listID {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func TestNewRequiresNamespace(t *testing.T) {
	_, err := New(&redis.Options{Addr: "localhost:0"}, "")
	assert.Error(t, err)
}

func TestCreateListAndCard(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	todo, err := s.CreateList(ctx, "To Do", 0)
	require.NoError(t, err)
	require.NotNil(t, todo)
	assert.Equal(t, "id-1", todo.ID)
	assert.True(t, mr.Exists("test-board:lists"))

	c1, err := s.CreateCard(ctx, todo.ID, "first")
	require.NoError(t, err)
	c2, err := s.CreateCard(ctx, todo.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, 0, c1.Position)
	assert.Equal(t, 1, c2.Position)

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []remote.ListRecord{*todo}, lists)
	assert.Equal(t, []string{c1.ID, c2.ID}, listCards(t, s, todo.ID))
}

func TestCreateRejections(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	l, err := s.CreateList(ctx, "  ", 0)
	require.NoError(t, err)
	assert.Nil(t, l)

	c, err := s.CreateCard(ctx, "missing", "title")
	require.NoError(t, err)
	assert.Nil(t, c)

	todo, err := s.CreateList(ctx, "To Do", 0)
	require.NoError(t, err)
	c, err = s.CreateCard(ctx, todo.ID, "")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestUpdateCard(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	todo, _ := s.CreateList(ctx, "To Do", 0)
	c, _ := s.CreateCard(ctx, todo.ID, "old")

	require.NoError(t, s.UpdateCard(ctx, c.ID, "new"))
	cards, err := s.Cards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "new", cards[0].Title)

	assert.ErrorIs(t, s.UpdateCard(ctx, "missing", "x"), remote.ErrNotFound)
}

func TestMoveCard(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	todo, _ := s.CreateList(ctx, "To Do", 0)
	done, _ := s.CreateList(ctx, "Done", 1)
	a, _ := s.CreateCard(ctx, todo.ID, "a")
	b, _ := s.CreateCard(ctx, todo.ID, "b")
	c, _ := s.CreateCard(ctx, todo.ID, "c")

	t.Run("within list", func(t *testing.T) {
		require.NoError(t, s.MoveCard(ctx, a.ID, todo.ID, 2))
		assert.Equal(t, []string{b.ID, c.ID, a.ID}, listCards(t, s, todo.ID))
	})

	t.Run("across lists renumbers both", func(t *testing.T) {
		require.NoError(t, s.MoveCard(ctx, c.ID, done.ID, 5))
		assert.Equal(t, []string{b.ID, a.ID}, listCards(t, s, todo.ID))
		assert.Equal(t, []string{c.ID}, listCards(t, s, done.ID))

		cards, err := s.Cards(ctx)
		require.NoError(t, err)
		for _, card := range cards {
			if card.ID == a.ID {
				assert.Equal(t, 1, card.Position)
			}
		}
	})

	t.Run("unknown list or card", func(t *testing.T) {
		assert.ErrorIs(t, s.MoveCard(ctx, a.ID, "missing", 0), remote.ErrNotFound)
		assert.ErrorIs(t, s.MoveCard(ctx, "missing", todo.ID, 0), remote.ErrNotFound)
	})
}

func TestDeleteCard(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	todo, _ := s.CreateList(ctx, "To Do", 0)
	c, _ := s.CreateCard(ctx, todo.ID, "doomed")

	require.NoError(t, s.DeleteCard(ctx, c.ID))
	assert.Empty(t, listCards(t, s, todo.ID))
	assert.ErrorIs(t, s.DeleteCard(ctx, c.ID), remote.ErrNotFound)
}

func TestConcurrentCreatesGetDistinctPositions(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	todo, _ := s.CreateList(ctx, "To Do", 0)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateCard(ctx, todo.ID, fmt.Sprintf("card %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cards, err := s.Cards(ctx)
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, c := range cards {
		seen[c.Position] = true
	}
	assert.Len(t, cards, n)
	assert.Len(t, seen, n)
}

func TestRedisFailure(t *testing.T) {
	s, mr := setupTestStore(t)
	mr.SetError("ERR simulated failure")

	_, err := s.Lists(context.Background())
	assert.ErrorContains(t, err, "failed to read lists from Redis")
	_, err = s.CreateCard(context.Background(), "todo", "x")
	assert.Error(t, err)
}

func TestBackendContract(t *testing.T) {
	var _ remote.Backend = (*Store)(nil)
}
