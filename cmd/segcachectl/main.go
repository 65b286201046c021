package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/segcache"
	"github.com/unkn0wn-root/segcache/accounts"
	"github.com/unkn0wn-root/segcache/backend"
	"github.com/unkn0wn-root/segcache/config"
	zaplog "github.com/unkn0wn-root/segcache/log/zap"
	pr "github.com/unkn0wn-root/segcache/provider"
)

type globals struct {
	configFile string
	segment    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "segcachectl",
		Short:         "Inspect and invalidate segcache segments",
		Long: "Operator tool for the account cache: derive keys, read raw entries and drop list views.\n" +
			"get and invalidate need a shared engine (redis); ristretto and bigcache live inside the serving process.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configFile, "config", "", "Path to YAML config (SEGCACHE_* env vars override)")
	rootCmd.PersistentFlags().StringVar(&g.segment, "segment", accounts.Segment, "Segment name")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		keyCmd(g),
		getCmd(g),
		invalidateCmd(g),
	)
	return rootCmd
}

func (g *globals) loadConfig() (config.Cache, error) {
	cfg := config.Default()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return config.Cache{}, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Cache{}, err
	}
	return cfg, cfg.Validate()
}

func (g *globals) logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if g.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// session is one opened segment plus the resources to release with it.
type session struct {
	svc   *segcache.Service
	cache *accounts.Cache
	store pr.Store
	zl    *zap.Logger
}

func (g *globals) open(ctx context.Context) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	zl, err := g.logger()
	if err != nil {
		return nil, err
	}
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		_ = zl.Sync()
		return nil, err
	}
	svc, err := segcache.New(ctx, segcache.Options{
		Segment: g.segment,
		Config:  cfg,
		Store:   store,
		Logger:  zaplog.New(zl),
	})
	if err != nil {
		if store != nil {
			_ = store.Close(ctx)
		}
		_ = zl.Sync()
		return nil, err
	}
	cache, err := accounts.NewCache(svc, accounts.CacheOptions{})
	if err != nil {
		_ = svc.Close(ctx)
		if store != nil {
			_ = store.Close(ctx)
		}
		_ = zl.Sync()
		return nil, err
	}
	return &session{svc: svc, cache: cache, store: store, zl: zl}, nil
}

func (s *session) Close(ctx context.Context) {
	_ = s.svc.Close(ctx)
	if s.store != nil {
		_ = s.store.Close(ctx)
	}
	_ = s.zl.Sync()
}

func (s *session) requireEnabled() error {
	if s.svc.Enabled() {
		return nil
	}
	return fmt.Errorf("caching disabled for segment %q: %v", s.svc.Segment(), s.svc.DisabledReason())
}

// requireShared rejects engines whose entries live in the serving process.
// Opening one here would build a fresh, empty cache.
func (s *session) requireShared() error {
	if err := s.requireEnabled(); err != nil {
		return err
	}
	if e := s.svc.Config().Engine; !e.Shared() {
		return fmt.Errorf("engine %q keeps entries in the serving process; segcachectl cannot reach them", e)
	}
	return nil
}
