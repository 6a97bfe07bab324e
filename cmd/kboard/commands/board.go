package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/backend/httpapi"
	"github.com/gmllt/kboard/internal/board"
	"github.com/gmllt/kboard/internal/printer"
	"github.com/gmllt/kboard/internal/remote"
	"github.com/gmllt/kboard/internal/session"
)

func newBoardCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show and edit the board on a kboard server",
		Long: `Show and edit the board served at client.server_url.

Lists are addressed by id or by title (case-insensitive). Card indexes
start at 0, as printed by "board show".`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the board",
			Args:  cobra.NoArgs,
			RunE: runBoard(opts, func(ctx context.Context, s *session.Session, args []string) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "init",
			Short: "Load the board, creating the default lists when it has none",
			Args:  cobra.NoArgs,
			RunE: runBoard(opts, func(ctx context.Context, s *session.Session, args []string) error {
				printer.Success("Board ready with %d lists", len(s.Board()))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add <list> <title>",
			Short: "Add a card at the end of a list",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runBoard(opts, addCard),
		},
		&cobra.Command{
			Use:   "edit <card-id> <title>",
			Short: "Rename a card",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runBoard(opts, editCard),
		},
		&cobra.Command{
			Use:   "rm <card-id>",
			Short: "Delete a card",
			Args:  cobra.ExactArgs(1),
			RunE:  runBoard(opts, removeCard),
		},
		&cobra.Command{
			Use:   "mv <card-id> <list> <index>",
			Short: "Move a card to index in list",
			Args:  cobra.ExactArgs(3),
			RunE:  runBoard(opts, moveCard),
		},
	)
	return cmd
}

type boardAction func(ctx context.Context, s *session.Session, args []string) error

// runBoard opens a session against the configured server, runs action, waits
// for every change to be reconciled and prints the resulting board.
func runBoard(opts *options, action boardAction) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := opts.setup()
		if err != nil {
			return printer.Error("Failed to load configuration", err.Error())
		}
		defer func() { _ = logger.Sync() }()

		client, err := httpapi.New(cfg.Client.ServerURL,
			httpapi.WithTimeout(cfg.Client.Timeout),
			httpapi.WithLogger(logger))
		if err != nil {
			return printer.Error("Invalid server URL", err.Error())
		}
		adapter := remote.NewAdapter(client,
			remote.WithDefaultLists(cfg.Board.DefaultLists),
			remote.WithLogger(logger))
		s := session.New(adapter, session.WithLogger(logger))
		defer s.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := s.Activate(ctx); err != nil {
			return printer.Error("Failed to load board", err.Error())
		}
		if err := action(ctx, s, args); err != nil {
			return printer.Error("Command failed", err.Error())
		}
		s.Wait()

		logger.Debug("Board reconciled", zap.Int("cards", s.Board().CardCount()))
		printer.Board(cmd.OutOrStdout(), s.Board(), s.Store().PendingMap())
		return nil
	}
}

func addCard(ctx context.Context, s *session.Session, args []string) error {
	listID, err := resolveList(s.Board(), args[0])
	if err != nil {
		return err
	}
	settled := make(chan session.CreateOutcome, 1)
	unsubscribe := s.OnCreateSettled(func(o session.CreateOutcome) { settled <- o })
	defer unsubscribe()

	if _, err := s.CreateCard(ctx, listID, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	s.Wait()

	o := <-settled
	switch {
	case o.Err != nil:
		return fmt.Errorf("card was not saved: %w", o.Err)
	case o.Card == nil:
		printer.Warning("Card was rejected by the server")
	default:
		printer.Success("Card %s created", o.Card.ID)
	}
	return nil
}

func editCard(ctx context.Context, s *session.Session, args []string) error {
	listID, err := locateCard(s, args[0])
	if err != nil {
		return err
	}
	title := strings.Join(args[1:], " ")
	return s.EditCard(ctx, listID, args[0], board.CardPatch{Title: &title})
}

func removeCard(ctx context.Context, s *session.Session, args []string) error {
	listID, err := locateCard(s, args[0])
	if err != nil {
		return err
	}
	return s.DeleteCard(ctx, listID, args[0])
}

func moveCard(ctx context.Context, s *session.Session, args []string) error {
	b := s.Board()
	li, ci := b.Find(args[0])
	if li < 0 {
		return fmt.Errorf("card %s: %w", args[0], board.ErrCardNotFound)
	}
	toListID, err := resolveList(b, args[1])
	if err != nil {
		return err
	}
	toIndex, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[2])
	}
	return s.MoveCard(ctx, b[li].ID, toListID, ci, toIndex)
}

func locateCard(s *session.Session, cardID string) (string, error) {
	listID, ok := s.Store().Locate(cardID)
	if !ok {
		return "", fmt.Errorf("card %s: %w", cardID, board.ErrCardNotFound)
	}
	return listID, nil
}

// resolveList finds a list by id, then by case-insensitive title.
func resolveList(b board.Board, ref string) (string, error) {
	if b.ListIndex(ref) >= 0 {
		return ref, nil
	}
	var match string
	for _, l := range b {
		if strings.EqualFold(l.Title, ref) {
			if match != "" {
				return "", fmt.Errorf("list title %q is ambiguous, use the list id", ref)
			}
			match = l.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("list %s: %w", ref, board.ErrListNotFound)
	}
	return match, nil
}
