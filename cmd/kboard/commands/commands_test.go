package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmllt/kboard/internal/backend/docstore"
	"github.com/gmllt/kboard/internal/config"
	"github.com/gmllt/kboard/internal/remote"
	"github.com/gmllt/kboard/internal/server"
	"github.com/gmllt/kboard/internal/testutil"
)

func setupServer(t *testing.T) (*docstore.Store, string) {
	t.Helper()
	store := docstore.New(docstore.NewMemoryBlob(), zaptest.NewLogger(t))
	ts := httptest.NewServer(server.New(store))
	t.Cleanup(ts.Close)

	path := filepath.Join(t.TempDir(), "config.yml")
	content := "client:\n  server_url: " + ts.URL + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return store, path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func onlyCard(t *testing.T, store *docstore.Store) remote.CardRecord {
	t.Helper()
	cards, err := store.Cards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 1)
	return cards[0]
}

func TestBoardCommands(t *testing.T) {
	store, cfgPath := setupServer(t)
	ctx := context.Background()

	out, err := run(t, cfgPath, "board", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "To Do")
	assert.Contains(t, out, "In Progress")
	assert.Contains(t, out, "Done")

	out, err = run(t, cfgPath, "board", "add", "to do", "write", "tests")
	require.NoError(t, err)
	assert.Contains(t, out, "0. write tests")
	card := onlyCard(t, store)
	assert.Equal(t, "write tests", card.Title)

	lists, err := store.Lists(ctx)
	require.NoError(t, err)
	remote.SortLists(lists)
	require.Len(t, lists, 3)
	done := lists[2]

	_, err = run(t, cfgPath, "board", "mv", card.ID, "Done", "0")
	require.NoError(t, err)
	assert.Equal(t, done.ID, onlyCard(t, store).ListID)

	_, err = run(t, cfgPath, "board", "edit", card.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, "shipped", onlyCard(t, store).Title)

	out, err = run(t, cfgPath, "board", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "0. shipped ["+card.ID+"]")

	_, err = run(t, cfgPath, "board", "rm", card.ID)
	require.NoError(t, err)
	cards, err := store.Cards(ctx)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestBoardCommandErrors(t *testing.T) {
	_, cfgPath := setupServer(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown list", []string{"board", "add", "nope", "title"}},
		{"unknown card", []string{"board", "rm", "missing"}},
		{"bad index", []string{"board", "mv", "missing", "Done", "x"}},
		{"missing args", []string{"board", "mv", "only-one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, cfgPath, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBoardAddOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fb *testutil.FakeBackend)
		wantErr bool
	}{
		{"rejected", func(fb *testutil.FakeBackend) { fb.RejectCreateCard = true }, false},
		{"transport failure", func(fb *testutil.FakeBackend) { fb.CreateCardErr = errors.New("disk full") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend()
			fb.AddList("todo", "To Do")
			tt.setup(fb)
			ts := httptest.NewServer(server.New(fb))
			t.Cleanup(ts.Close)
			path := filepath.Join(t.TempDir(), "config.yml")
			content := "client:\n  server_url: " + ts.URL + "\nlog:\n  level: error\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			out, err := run(t, path, "board", "add", "todo", "doomed")
			if tt.wantErr {
				assert.EqualError(t, err, "Command failed")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, "To Do [todo] (0)")
			assert.Equal(t, 0, fb.CardCount())
		})
	}
}

func TestBoardUnreachableServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  server_url: http://127.0.0.1:1\nlog:\n  level: error\n"), 0o644))

	_, err := run(t, path, "board", "show")
	assert.EqualError(t, err, "Failed to load board")
}

func TestOpenBackend(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		backend, closeFn, err := openBackend(ctx, cfg, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &docstore.Store{}, backend)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Backend.Kind = config.BackendRedis
		cfg.Redis.Addr = mr.Addr()

		backend, closeFn, err := openBackend(ctx, cfg, logger)
		require.NoError(t, err)
		defer closeFn()

		rec, err := backend.CreateList(ctx, "To Do", 0)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, mr.Exists("kboard:lists"))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Backend.Kind = "postgres"
		_, _, err := openBackend(ctx, cfg, logger)
		assert.Error(t, err)
	})
}
