package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/autometa/autometa/pkg/cmd"
	"github.com/autometa/autometa/pkg/config"
	"github.com/autometa/autometa/pkg/log"
	"github.com/autometa/autometa/pkg/node"
	"github.com/autometa/autometa/pkg/otelhelper"
	"github.com/autometa/autometa/pkg/price"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "autometa-api",
		Usage:                 "Run a protocol node with the management API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for the state projection",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a node.yaml deployment file (overrides address flags)",
				Sources: cli.EnvVars("NODE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "admin-address",
				Usage:   "Address holding the default admin role",
				Sources: cli.EnvVars("ADMIN_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "escrow-address",
				Usage:   "Address of the fee escrow",
				Sources: cli.EnvVars("ESCROW_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "executor-address",
				Usage:   "Address of the action executor",
				Sources: cli.EnvVars("EXECUTOR_ADDRESS"),
			},
			&cli.StringSliceFlag{
				Name:    "worker-address",
				Usage:   "Addresses granted the worker role on the executor",
				Sources: cli.EnvVars("WORKER_ADDRESSES"),
			},
			&cli.StringSliceFlag{
				Name:    "project-admin-address",
				Usage:   "Addresses granted the project admin role on the registry",
				Sources: cli.EnvVars("PROJECT_ADMIN_ADDRESSES"),
			},
			&cli.StringSliceFlag{
				Name:    "genesis-balance",
				Usage:   "Native balances minted at startup, as 0xaddress=wei",
				Sources: cli.EnvVars("GENESIS_BALANCES"),
			},
			&cli.StringFlag{
				Name:    "price-feed-url",
				Usage:   "Base URL of the price feed (empty disables the price API)",
				Sources: cli.EnvVars("PRICE_FEED_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the price cache (empty disables caching)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringSliceFlag{
				Name:    "tracked-symbol",
				Usage:   "Symbols kept warm in the price cache",
				Sources: cli.EnvVars("TRACKED_SYMBOLS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Autometa API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var (
				cfg     node.Config
				fileCfg *config.NodeConfigFile
				err     error
			)

			if path := command.String("config"); path != "" {
				fileCfg, err = config.LoadNodeConfig(path)
				if err != nil {
					return err
				}

				cfg = fileCfg.NodeConfig()
			} else {
				cfg, err = nodeConfig(command)
				if err != nil {
					return err
				}
			}

			protocolNode := node.New(cfg, persistence, eventBus, logger)

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				tracer, err := otelhelper.NewTracer(ctx, "autometa-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				protocolNode.SetTracer(tracer)
			}

			if err := protocolNode.Load(ctx); err != nil {
				return fmt.Errorf("failed to load node state: %w", err)
			}

			settings := priceSettings{
				feedURL:  command.String("price-feed-url"),
				redisURL: command.String("redis-url"),
				tracked:  command.StringSlice("tracked-symbol"),
			}
			if fileCfg != nil && fileCfg.Price.FeedURL != "" {
				settings = priceSettings{
					feedURL:  fileCfg.Price.FeedURL,
					redisURL: fileCfg.Price.RedisURL,
					tracked:  fileCfg.Price.TrackedSymbols,
				}
			}

			prices, err := priceService(ctx, logger, settings)
			if err != nil {
				return err
			}

			api := NewAPI(logger, protocolNode, prices)
			defer api.Stop()

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func nodeConfig(command *cli.Command) (node.Config, error) {
	cfg := node.Config{}

	for _, flag := range []struct {
		name   string
		target *common.Address
	}{
		{"admin-address", &cfg.Admin},
		{"escrow-address", &cfg.Escrow},
		{"executor-address", &cfg.Executor},
	} {
		value := command.String(flag.name)
		if !common.IsHexAddress(value) {
			return cfg, fmt.Errorf("invalid %s: %q", flag.name, value)
		}

		*flag.target = common.HexToAddress(value)
	}

	var err error

	cfg.Workers, err = parseAddresses(command.StringSlice("worker-address"))
	if err != nil {
		return cfg, fmt.Errorf("invalid worker-address: %w", err)
	}

	cfg.ProjectAdmins, err = parseAddresses(command.StringSlice("project-admin-address"))
	if err != nil {
		return cfg, fmt.Errorf("invalid project-admin-address: %w", err)
	}

	cfg.Genesis, err = parseGenesisBalances(command.StringSlice("genesis-balance"))
	if err != nil {
		return cfg, fmt.Errorf("invalid genesis-balance: %w", err)
	}

	return cfg, nil
}

func parseGenesisBalances(values []string) ([]node.GenesisBalance, error) {
	genesis := make([]node.GenesisBalance, 0, len(values))

	for _, value := range values {
		addr, amount, found := strings.Cut(value, "=")
		if !found || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("want 0xaddress=wei, got %q", value)
		}

		wei, ok := new(big.Int).SetString(amount, 10)
		if !ok || wei.Sign() <= 0 {
			return nil, fmt.Errorf("not a positive wei amount: %q", amount)
		}

		genesis = append(genesis, node.GenesisBalance{
			Address: common.HexToAddress(addr),
			Amount:  wei,
		})
	}

	return genesis, nil
}

func parseAddresses(values []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(values))

	for _, value := range values {
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("not a hex address: %q", value)
		}

		addresses = append(addresses, common.HexToAddress(value))
	}

	return addresses, nil
}

type priceSettings struct {
	feedURL  string
	redisURL string
	tracked  []string
}

func priceService(ctx context.Context, logger *slog.Logger, settings priceSettings) (*price.Service, error) {
	if settings.feedURL == "" {
		return nil, nil
	}

	var redisClient redis.Cmdable

	if settings.redisURL != "" {
		opts, err := redis.ParseURL(settings.redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis-url: %w", err)
		}

		redisClient = redis.NewClient(opts)
	}

	service := price.NewService(
		price.NewFeedFetcher(settings.feedURL),
		redisClient,
		price.Config{Tracked: settings.tracked},
		logger.With("module", "price"),
	)

	if err := service.Start(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to start price service: %w", err)
	}

	return service, nil
}
