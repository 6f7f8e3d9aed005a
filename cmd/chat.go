package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/stockchat/internal/config"
	"github.com/koopa0/stockchat/internal/database"
	"github.com/koopa0/stockchat/internal/dispatch"
	"github.com/koopa0/stockchat/internal/llm"
	"github.com/koopa0/stockchat/internal/log"
	"github.com/koopa0/stockchat/internal/resolve"
	"github.com/koopa0/stockchat/internal/session"
	"github.com/koopa0/stockchat/internal/sim"
	"github.com/koopa0/stockchat/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the inventory assistant",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// openInventory loads config, opens the database and builds the store.
// Shared by the chat and simulate commands.
func openInventory(ctx context.Context) (*config.Config, *sql.DB, *store.Store, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open inventory database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, fmt.Errorf("migrate inventory database: %w", err)
	}
	if err := database.Seed(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, fmt.Errorf("seed inventory database: %w", err)
	}

	st, err := store.New(db, logger.With("component", "store"))
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	return cfg, db, st, logger, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, db, st, logger, err := openInventory(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	res, err := resolve.New(st)
	if err != nil {
		return err
	}
	disp, err := dispatch.New(res, logger.With("component", "dispatch"))
	if err != nil {
		return err
	}

	model, err := llm.NewClient(llm.ClientConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.ModelName,
		Specs:  disp.Specs(),
		Logger: logger.With("component", "llm"),
	})
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	sess, err := session.New(session.Config{
		Model:           model,
		Dispatcher:      disp,
		Logger:          logger.With("component", "session"),
		MaxHistoryTurns: cfg.MaxHistoryTurns,
	})
	if err != nil {
		return err
	}

	feed := sim.NewFeed()
	defer feed.Close()
	simulator, err := sim.New(st, feed, logger.With("component", "sim"))
	if err != nil {
		return err
	}

	fmt.Println("Stockchat — ask about prices, quantities, descriptions and aisles.")
	fmt.Println("Commands: /reset clears the conversation, /quit exits.")
	fmt.Printf("Session: %s\n\n", sess.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Println("Bye!")
			return nil
		case "/reset":
			sess.Reset()
			fmt.Println("Conversation cleared.")
			continue
		}

		reply, err := sess.HandleTurn(ctx, input)
		if err != nil {
			// Store unavailability is the one fatal path.
			return fmt.Errorf("turn failed: %w", err)
		}
		fmt.Printf("shop> %s\n", reply)

		// Reference trigger policy: one simulated purchase per user turn.
		ev, err := simulator.SimulatePurchase(ctx)
		if err != nil {
			return fmt.Errorf("simulator failed: %w", err)
		}
		fmt.Printf("  [update %d] %s\n\n", ev.Sequence, ev.Message)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
