package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/database"
	"github.com/garrettallen/cardboards/internal/database/repository"
	"github.com/garrettallen/cardboards/internal/models"
)

// NewTreeCommand prints a board as one of its views renders it
func NewTreeCommand() *cobra.Command {
	var (
		boardID    string
		viewID     string
		search     string
		blocksFile string
		asJSON     bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the grouped and sorted cards of a board view",
		Long: `Print the cards of a board as the selected view shows them.

Blocks are read from the configured database, or from a JSON file of
blocks when --blocks is given. With --watch the file is re-read whenever it
changes and the view is printed again; cards are removed by setting their
delete_at.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFrom(cmd)

			if watch && blocksFile == "" {
				return errors.New("--watch requires --blocks")
			}

			var fetcher boardtree.BlockFetcher
			if blocksFile != "" {
				repo, err := loadBlocksFile(ctx, blocksFile)
				if err != nil {
					return err
				}
				fetcher = repo
			} else {
				cfg := configFrom(cmd)
				if cfg.DatabaseURL == "" {
					return errors.New("DATABASE_URL is not set; use --blocks to read a file")
				}
				db, err := database.NewDB(ctx, cfg, logger)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				defer db.Close()
				fetcher = repository.NewBlockRepository(db)
			}

			builder := boardtree.NewBuilder(logger)
			tree, err := builder.Sync(ctx, fetcher, boardID, viewID)
			if err != nil {
				return err
			}
			if search != "" {
				tree = tree.CopyWithSearchText(search)
			}

			out := cmd.OutOrStdout()
			render := func(tree *boardtree.BoardTree) error {
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(tree.Snapshot())
				}
				return printTree(out, tree)
			}

			if !watch {
				return render(tree)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			return watchBlocksFile(ctx, blocksFile, builder, tree, render, logger)
		},
	}

	cmd.Flags().StringVar(&boardID, "board", "", "board id")
	cmd.Flags().StringVar(&viewID, "view", "", "view id (defaults to the first view)")
	cmd.Flags().StringVar(&search, "search", "", "only show cards matching this text")
	cmd.Flags().StringVar(&blocksFile, "blocks", "", "read blocks from a JSON file instead of the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "print again whenever the --blocks file changes")
	_ = cmd.MarkFlagRequired("board")

	return cmd
}

func readBlocksFile(path string) ([]models.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var blocks []models.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return blocks, nil
}

func loadBlocksFile(ctx context.Context, path string) (*repository.MemoryBlockRepository, error) {
	blocks, err := readBlocksFile(path)
	if err != nil {
		return nil, err
	}

	repo := repository.NewMemoryBlockRepository()
	if err := repo.Upsert(ctx, blocks); err != nil {
		return nil, err
	}
	return repo, nil
}

// watchBlocksFile applies the file's blocks to tree on every change until ctx
// is done or the board is deleted
func watchBlocksFile(ctx context.Context, path string, builder *boardtree.Builder, tree *boardtree.BoardTree, render func(*boardtree.BoardTree) error, logger *zap.Logger) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	if err := render(tree); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			blocks, err := readBlocksFile(target)
			if err != nil {
				logger.Warn("skipping unreadable blocks file", zap.Error(err))
				continue
			}

			next := builder.IncrementalUpdate(tree, blocks)
			if next == nil {
				return boardtree.ErrBoardNotFound
			}
			if next == tree {
				continue
			}
			tree = next
			if err := render(tree); err != nil {
				return err
			}
		}
	}
}

func printTree(out io.Writer, tree *boardtree.BoardTree) error {
	view := tree.ActiveView()
	fmt.Fprintf(out, "%s / %s (%s)\n", tree.Board().Title, view.Title, view.ViewType)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if tree.GroupByProperty() == nil {
		for _, card := range tree.Cards() {
			fmt.Fprintf(w, "  %s\t%s\n", card.Title, card.ID)
		}
		return w.Flush()
	}

	printGroups := func(groups []boardtree.Group, hidden bool) {
		for _, group := range groups {
			marker := ""
			if hidden {
				marker = " [hidden]"
			}
			fmt.Fprintf(w, "%s (%d)%s\n", group.Option.Value, len(group.Cards), marker)
			for _, card := range group.Cards {
				fmt.Fprintf(w, "  %s\t%s\n", card.Title, card.ID)
			}
		}
	}
	printGroups(tree.VisibleGroups(), false)
	printGroups(tree.HiddenGroups(), true)
	return w.Flush()
}
