package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/announce"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/broadcast"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/challenge"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/config"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/ledger"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/notifier"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/printer"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/reconcile"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/server"
	"github.com/MrAlexPushkin/LetsGoDuel/internal/store"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duelboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the duel sync server",
	Long: `Run the duelsync HTTP server.

Ledger webhooks arrive on /webhooks/ledger, social posts on /webhooks/social,
and observers connect to /ws. Without redis_url everything runs in-process;
with it, signature dedup is shared across instances, every notification is
mirrored to Redis for 'duelsync watch', and announcements can be queued.

Examples:
  duelsync serve
  DUELSYNC_SNAPSHOT_URL=http://ledger:9000 duelsync serve --config prod.yml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check the file:\n  duelsync validate --config %s", configPath)},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start duelsync",
			err.Error(),
			map[string]string{
				"Instance":     cfg.Instance,
				"Snapshot URL": cfg.SnapshotURL,
			},
			nil,
		)
	}
	defer svc.Close()

	printer.Success("duelsync '%s' listening on %s\n", cfg.Instance, svc.Addr())
	return svc.Run(ctx)
}

// service is one wired duelsync process.
type service struct {
	cfg      *config.DuelsyncConfig
	board    *duelboard.Client
	store    *store.Store
	hub      *broadcast.Broadcaster
	engine   *reconcile.Engine
	notifier *notifier.Notifier
	matcher  *challenge.Matcher
	server   *server.Server
}

// newService wires every component and starts the HTTP listener.
func newService(ctx context.Context, cfg *config.DuelsyncConfig) (*service, error) {
	svc := &service{cfg: cfg, store: store.New()}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		board, err := duelboard.NewClient(redisOpts, cfg.Instance)
		if err != nil {
			return nil, fmt.Errorf("failed to create duelboard client: %w", err)
		}
		if err := board.Ping(ctx); err != nil {
			board.Close()
			return nil, fmt.Errorf("redis not accessible at %s: %w", cfg.RedisURL, err)
		}
		svc.board = board
	}

	var hubOpts []broadcast.Option
	if svc.board != nil {
		hubOpts = append(hubOpts, broadcast.WithMirror(svc.board, cfg.ObserverBuffer))
	}
	svc.hub = broadcast.New(svc.store, hubOpts...)

	sink := newSink(cfg, svc.board)
	svc.notifier = notifier.New(sink, cfg.AnnounceTimeout)

	fetcher, err := ledger.NewHTTPFetcher(cfg.SnapshotURL, cfg.FetchTimeout)
	if err != nil {
		svc.Close()
		return nil, err
	}

	engineCfg := reconcile.Config{
		InstanceName: cfg.Instance,
		Store:        svc.store,
		Fetcher:      fetcher,
		Publisher:    svc.hub,
		Completions:  svc.notifier,
		FetchTimeout: cfg.FetchTimeout,
	}
	if svc.board != nil {
		engineCfg.Signatures = svc.board
	}
	svc.engine, err = reconcile.NewEngine(engineCfg)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	creator, err := newCreator(cfg)
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.matcher, err = challenge.NewMatcher(challenge.Config{
		InstanceName:    cfg.Instance,
		BotHandle:       cfg.BotHandle,
		Target:          cfg.TargetLamports,
		TTL:             cfg.ChallengeTTL,
		SweepInterval:   cfg.SweepInterval,
		AnnounceTimeout: cfg.AnnounceTimeout,
		Creator:         creator,
		Registrar:       svc.engine,
		Broadcaster:     svc.hub,
		Announcer:       sink,
	})
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	serverCfg := server.Config{
		Addr:           cfg.HTTPAddr,
		Duels:          svc.store,
		Hub:            svc.hub,
		Ingester:       svc.engine,
		Posts:          svc.matcher,
		ObserverBuffer: cfg.ObserverBuffer,
	}
	if svc.board != nil {
		serverCfg.Redis = svc.board
	}
	svc.server = server.New(serverCfg)
	if err := svc.server.Start(); err != nil {
		svc.Close()
		return nil, err
	}

	return svc, nil
}

// newSink builds the announcement sink selected by cfg.Announce.
func newSink(cfg *config.DuelsyncConfig, board *duelboard.Client) announce.Sink {
	logSink := announce.NewLogSink(nil)
	if board == nil {
		return logSink
	}

	switch cfg.Announce {
	case config.AnnounceRedis:
		return announce.NewRedisSink(board)
	case config.AnnounceBoth:
		return announce.MultiSink{logSink, announce.NewRedisSink(board)}
	default:
		return logSink
	}
}

func newCreator(cfg *config.DuelsyncConfig) (challenge.Creator, error) {
	if cfg.Creator == config.CreatorLocal {
		return challenge.NewLocalCreator(), nil
	}
	creator, err := challenge.NewHTTPCreator(cfg.SnapshotURL, cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create duel creator: %w", err)
	}
	return creator, nil
}

// Addr returns the bound HTTP address.
func (s *service) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr()
}

// Run sweeps expired challenges until ctx is cancelled, then shuts the
// HTTP server down and waits for in-flight announcements.
func (s *service) Run(ctx context.Context) error {
	// Posts arrive through the social webhook, so the matcher only sweeps here.
	err := s.matcher.Run(ctx, nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("matcher stopped: %w", err)
	}

	log.Printf("[Serve] Shutting down instance '%s'", s.cfg.Instance)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Serve] HTTP shutdown error: %v", err)
	}

	s.notifier.Wait()
	return nil
}

// Close releases background resources. Safe to call after Run.
func (s *service) Close() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		s.server.Shutdown(shutdownCtx)
		cancel()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.board != nil {
		s.board.Close()
	}
}
