package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/foxden/sourcewatch/internal/albummemory"
	"github.com/foxden/sourcewatch/internal/config"
	"github.com/foxden/sourcewatch/internal/hashsearch"
	"github.com/foxden/sourcewatch/internal/health"
	"github.com/foxden/sourcewatch/internal/i18n"
	"github.com/foxden/sourcewatch/internal/logging"
	platformtg "github.com/foxden/sourcewatch/internal/platform/telegram"
	"github.com/foxden/sourcewatch/internal/queue"
	"github.com/foxden/sourcewatch/internal/rategate"
	"github.com/foxden/sourcewatch/internal/resolver"
	"github.com/foxden/sourcewatch/internal/siteadapter"
	"github.com/foxden/sourcewatch/internal/store/kv"
	"github.com/foxden/sourcewatch/internal/store/pg"
	"github.com/foxden/sourcewatch/internal/tracing"
	"github.com/foxden/sourcewatch/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background worker with the given configuration.",
	Run:   runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	logging.Init(false, "info", "text")
	log := logging.Logger
	mainLog := log.Named("main")
	mainLog.Info("starting worker")

	config.Load(log, cmd)
	logging.Init(config.ValueOf.Dev, config.ValueOf.LogLevel, config.ValueOf.LogFormat)
	log = logging.Logger
	mainLog = log.Named("main")

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, "sourcewatch-worker", config.ValueOf.TraceCollectorEndpt)
	if err != nil {
		mainLog.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	redisStore, err := kv.Connect(config.ValueOf.RedisURL)
	if err != nil {
		mainLog.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisStore.Close()

	pgStore, err := pg.Connect(ctx, config.ValueOf.DatabaseURL)
	if err != nil {
		mainLog.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgStore.Close()

	tgAPI := mustTelegramClient(ctx, mainLog)
	platformClient := platformtg.New(tgAPI, log)

	registry := siteadapter.NewRegistry() // populated by real site adapters at deploy time

	gate := rategate.New(redisStore.Client(), log)
	albums := albummemory.New(redisStore.Client(), log, time.Duration(config.ValueOf.AlbumMemoryTTLSecs)*time.Second)
	hashClient := hashsearch.New(config.ValueOf.FuzzySearchBaseURL, config.ValueOf.FuzzySearchToken, http.DefaultClient)
	res := resolver.New(registry, albums, http.DefaultClient, config.ValueOf.MaxSourceDistance, config.ValueOf.NoisySourceCount, config.ValueOf.DownloadCapBytes)
	locales := i18n.NewCache("internal/i18n/locales")

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr(config.ValueOf.RedisURL)}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient, config.ValueOf.QueueName, config.ValueOf.MaxJobRetry)

	handlers := &worker.Handlers{
		Platform:    platformClient,
		HashClient:  hashClient,
		Resolver:    res,
		Gate:        gate,
		Enqueuer:    enqueuer,
		PG:          pgStore,
		Locales:     locales,
		Log:         log,
		MaxDistance: config.ValueOf.MaxSourceDistance,
	}

	srv, mux := worker.NewServer(redisOpt, config.ValueOf.QueueName, config.ValueOf.WorkerCount, handlers)

	healthSrv := health.New(log, redisPinger{redisStore}, pgStore)
	go func() {
		addr := fmt.Sprintf(":%d", config.ValueOf.HealthPort)
		if err := healthSrv.Run(addr); err != nil {
			mainLog.Error("health server stopped", zap.Error(err))
		}
	}()

	mainLog.Info("worker ready", zap.Int("worker_count", config.ValueOf.WorkerCount), zap.String("queue", config.ValueOf.QueueName))
	if err := srv.Run(mux); err != nil {
		mainLog.Fatal("job server stopped", zap.Error(err))
	}
}

type redisPinger struct {
	store *kv.Store
}

func (p redisPinger) Ping(ctx context.Context) error { return p.store.Ping(ctx) }

func redisAddr(rawURL string) string {
	// kv.Connect has already rejected a malformed RedisURL. This only strips
	// the redis:// scheme; any userinfo or database path stays in the address.
	const prefix = "redis://"
	if len(rawURL) > len(prefix) && rawURL[:len(prefix)] == prefix {
		return rawURL[len(prefix):]
	}
	return rawURL
}

// mustTelegramClient authenticates a gotd/td client as the configured bot
// and keeps its connection alive for the life of the process, handing back
// the raw API handle once the connection is up. client.Run owns the
// connection's lifetime, so the client is kept open by blocking on ctx
// inside the callback rather than returning from it.
func mustTelegramClient(ctx context.Context, log *zap.Logger) *tg.Client {
	client := telegram.NewClient(int(config.ValueOf.TelegramAPIID), config.ValueOf.TelegramAPIHash, telegram.Options{
		Middlewares: floodMiddleware(log),
	})

	ready := make(chan *tg.Client, 1)
	go func() {
		err := client.Run(ctx, func(ctx context.Context) error {
			if err := auth.NewFlow(
				auth.ConstantAuth("", "", config.ValueOf.TelegramBotToken),
				auth.SendCodeOptions{},
			).Run(ctx, client.Auth()); err != nil {
				return err
			}
			ready <- client.API()
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && ctx.Err() == nil {
			log.Error("telegram client stopped", zap.Error(err))
		}
	}()

	return <-ready
}

// floodMiddleware wraps every raw API call with gotd/contrib's flood-wait
// retry and a client-side rate limit, a defense-in-depth layer underneath the
// application-level rate gate that backs off FLOOD_WAIT before it ever
// reaches the job handlers.
func floodMiddleware(log *zap.Logger) []telegram.Middleware {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)
	limiter := ratelimit.New(rate.Every(time.Millisecond*33), 15)
	return []telegram.Middleware{
		waiter,
		limiter,
	}
}
