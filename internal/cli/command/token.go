package command

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshnode-go/internal/cli/output"
	"github.com/yndnr/meshnode-go/internal/config"
	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/storage"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

// TokenCommand returns the token subcommand group. It works on the store
// directly and must not run against a badger store held by a live node.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect or edit persisted node tokens",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all stored tokens",
				Action: tokenList,
			},
			{
				Name:      "get",
				Usage:     "Show the token stored for a node",
				ArgsUsage: "<uuid>",
				Action:    tokenGet,
			},
			{
				Name:      "set",
				Usage:     "Store a token for a node",
				ArgsUsage: "<uuid> <hex token>",
				Action:    tokenSet,
			},
			{
				Name:   "last",
				Usage:  "Show the token last delivered by a join",
				Action: tokenLast,
			},
		},
	}
}

// TokenEntry is one row of token output.
type TokenEntry struct {
	Node  string `json:"node" yaml:"node"`
	Token string `json:"token" yaml:"token"`
}

// TokenList is the token list output.
type TokenList []TokenEntry

// Table renders the list as NODE/TOKEN rows.
func (l TokenList) Table() *output.Table {
	t := output.NewTable("NODE", "TOKEN")
	for _, e := range l {
		t.AddRow(e.Node, e.Token)
	}
	return t
}

func tokenEntry(id domain.NodeIdentity, token domain.AuthToken) TokenEntry {
	e := TokenEntry{Node: id.String()}
	if !token.IsZero() {
		e.Token = token.String()
	}
	return e
}

func loadStorageConfig(c *cli.Context) (*config.ClientConfig, error) {
	overrides := make(map[string]any)
	setOverride(overrides, "log.level", c.IsSet("log-level"), c.String("log-level"))
	return loadConfig(c.String("config"), overrides, config.VerifyStorage)
}

// withStore opens the configured token store, runs fn and closes it.
func withStore(c *cli.Context, fn func(ctx context.Context, store storage.TokenStore) error) error {
	cfg, err := loadStorageConfig(c)
	if err != nil {
		return err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.Open(ctx, storage.Config{
		Engine: cfg.Storage.Engine,
		Dir:    cfg.Storage.TokenDir,
		Badger: cfg.Storage.Badger,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	return errors.Join(fn(ctx, store), store.Close())
}

func tokenList(c *cli.Context) error {
	return withStore(c, func(_ context.Context, store storage.TokenStore) error {
		records := store.List()
		list := make(TokenList, 0, len(records))
		for id, token := range records {
			list = append(list, tokenEntry(id, token))
		}
		slices.SortFunc(list, func(a, b TokenEntry) int {
			switch {
			case a.Node < b.Node:
				return -1
			case a.Node > b.Node:
				return 1
			}
			return 0
		})
		return render(c, list)
	})
}

func tokenGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: meshnode token get <uuid>", 2)
	}
	id, err := domain.ParseNodeIdentity(c.Args().First())
	if err != nil {
		return err
	}
	return withStore(c, func(_ context.Context, store storage.TokenStore) error {
		token := store.Get(id)
		if token.IsZero() {
			return fmt.Errorf("no token stored for node %s", id)
		}
		return render(c, TokenList{tokenEntry(id, token)})
	})
}

func tokenSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: meshnode token set <uuid> <hex token>", 2)
	}
	id, err := domain.ParseNodeIdentity(c.Args().Get(0))
	if err != nil {
		return err
	}
	token, err := domain.ParseAuthToken(c.Args().Get(1))
	if err != nil {
		return err
	}
	if token.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("token must be non-zero")
	}
	return withStore(c, func(ctx context.Context, store storage.TokenStore) error {
		if err := store.Set(ctx, id, token); err != nil {
			return err
		}
		logger.Default().Info("token stored", "node", id.String())
		return nil
	})
}

func tokenLast(c *cli.Context) error {
	cfg, err := loadStorageConfig(c)
	if err != nil {
		return err
	}
	record := storage.NewLastTokenRecord(cfg.Storage.LastTokenDir)
	token, err := record.Read()
	if err != nil {
		return err
	}
	if token.IsZero() {
		return fmt.Errorf("no token recorded in %s", record.Path())
	}
	return render(c, map[string]string{
		"file":  record.Path(),
		"token": token.String(),
	})
}
