package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmllt/kboard/internal/backend/docstore"
	"github.com/gmllt/kboard/internal/backend/httpapi"
	"github.com/gmllt/kboard/internal/board"
	"github.com/gmllt/kboard/internal/remote"
	"github.com/gmllt/kboard/internal/server"
	"github.com/gmllt/kboard/internal/session"
	"github.com/gmllt/kboard/internal/testutil"
)

func newClient(t *testing.T, backend remote.Backend) *httpapi.Client {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ts := httptest.NewServer(server.New(backend, server.WithLogger(logger)))
	t.Cleanup(ts.Close)

	c, err := httpapi.New(ts.URL, httpapi.WithTimeout(5*time.Second), httpapi.WithLogger(logger))
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := httpapi.New("localhost")
	assert.Error(t, err)
	_, err = httpapi.New("://")
	assert.Error(t, err)
}

func TestClientOperations(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddList("todo", "To Do")
	fb.AddList("done", "Done")
	c := newClient(t, fb)
	ctx := context.Background()

	card, err := c.CreateCard(ctx, "todo", "write tests")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "todo", card.ListID)

	require.NoError(t, c.UpdateCard(ctx, card.ID, "write more tests"))
	require.NoError(t, c.MoveCard(ctx, card.ID, "done", 0))

	cards, err := c.Cards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, remote.CardRecord{ID: card.ID, ListID: "done", Title: "write more tests", Position: 0}, cards[0])

	lists, err := c.Lists(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 2)

	require.NoError(t, c.DeleteCard(ctx, card.ID))
	assert.Equal(t, 0, fb.CardCount())
}

func TestClientRejection(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddList("todo", "To Do")
	fb.RejectLists["Nope"] = true
	c := newClient(t, fb)
	ctx := context.Background()

	card, err := c.CreateCard(ctx, "missing", "orphan")
	require.NoError(t, err)
	assert.Nil(t, card)

	list, err := c.CreateList(ctx, "Nope", 1)
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestClientErrors(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.AddList("todo", "To Do")
	fb.CreateCardErr = errors.New("boom")
	c := newClient(t, fb)
	ctx := context.Background()

	_, err := c.CreateCard(ctx, "todo", "x")
	var statusErr *httpapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)

	assert.ErrorIs(t, c.DeleteCard(ctx, "missing"), remote.ErrNotFound)
	assert.ErrorIs(t, c.UpdateCard(ctx, "missing", "x"), remote.ErrNotFound)
}

func TestClientTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := httpapi.New(url)
	require.NoError(t, err)
	_, err = c.Lists(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, remote.ErrNotFound)
}

// TestSessionOverHTTP drives a session through the REST API into a document
// store and checks the stored board matches the optimistic one.
func TestSessionOverHTTP(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := docstore.New(docstore.NewMemoryBlob(), logger)
	c := newClient(t, store)
	ctx := context.Background()

	s := session.New(remote.NewAdapter(c, remote.WithLogger(logger)), session.WithLogger(logger))
	defer s.Close()
	require.NoError(t, s.Activate(ctx))

	b := s.Board()
	require.Len(t, b, 3)
	todo, doing := b[0].ID, b[1].ID

	_, err := s.CreateCard(ctx, todo, "first")
	require.NoError(t, err)
	_, err = s.CreateCard(ctx, todo, "second")
	require.NoError(t, err)
	s.Wait()

	require.NoError(t, s.MoveCard(ctx, todo, doing, 0, 0))
	s.Wait()
	local := s.Board()
	assert.Empty(t, s.Store().PendingMap())

	stored, err := remote.NewAdapter(c).LoadBoard(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(local, stored); diff != "" {
		t.Errorf("stored board mismatch (-local +stored):\n%s", diff)
	}
	assert.Equal(t, []board.Card{{ID: local[1].Cards[0].ID, Title: "first"}}, stored[1].Cards)
}
