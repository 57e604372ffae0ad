package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/agentic-research/arbor/internal/config"
	"github.com/agentic-research/arbor/internal/mutation"
	"github.com/agentic-research/arbor/internal/notify"
	"github.com/agentic-research/arbor/internal/order"
	"github.com/agentic-research/arbor/internal/store"
	"github.com/spf13/cobra"
)

// Version is reported by the MCP server.
var Version = "dev"

var (
	configPath string
	dbDSN      string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to arbor.hcl")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "Database DSN (overrides config)")
}

var rootCmd = &cobra.Command{
	Use:          "arbor",
	Short:        "Arbor: ordered forest reordering with optimistic persistence",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbDSN != "" {
		cfg.StoreDSN = dbDSN
	}
	return cfg, nil
}

// session is an open store plus the engine running on top of it.
type session struct {
	cfg    config.Config
	db     *store.DB
	engine *mutation.Engine
	pub    *notify.RedisPublisher
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}

	cascade, err := mutation.ParseCascade(cfg.Cascade)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	opts := mutation.Options{
		Allocator: order.Allocator{Step: cfg.OrderStep},
		Cascade:   cascade,
		Timeout:   cfg.StoreTimeout,
	}

	s := &session{cfg: cfg, db: db}
	if cfg.RedisURL != "" {
		pub, err := notify.NewRedisPublisher(cfg.RedisURL, cfg.Forest)
		if err != nil {
			log.Printf("arbor: diff publishing disabled: %v", err)
		} else {
			s.pub = pub
			opts.Observers = append(opts.Observers, pub)
		}
	}

	s.engine, err = mutation.Open(ctx, db, db, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.pub != nil {
		_ = s.pub.Close()
	}
	if err := s.db.Close(); err != nil {
		log.Printf("arbor: close store: %v", err)
	}
}
