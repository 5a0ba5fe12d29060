package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/database"
	"github.com/iliyamo/todoer/internal/handler"
	"github.com/iliyamo/todoer/internal/kv"
	"github.com/iliyamo/todoer/internal/middleware"
	"github.com/iliyamo/todoer/internal/oauth"
	"github.com/iliyamo/todoer/internal/queue"
	"github.com/iliyamo/todoer/internal/repository"
	"github.com/iliyamo/todoer/internal/router"
	"github.com/iliyamo/todoer/internal/service"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Print(log.Printf)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rateCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	var state, responses kv.Store
	if rdb != nil {
		defer rdb.Close()
		state = kv.NewRedisStore(rdb, "")
		responses = kv.NewRedisStore(rdb, cacheCfg.Prefix+":")
		log.Printf("serve: redis connected at %s", redisCfg.Addr)
	} else {
		state = kv.NewMemoryStore()
		log.Printf("serve: redis unavailable at %s; rate limiting and caching disabled", redisCfg.Addr)
	}

	// a nil *queue.Publisher must not reach the interface
	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL)
		consumer := queue.NewSignupConsumer(cfg.AMQPURL)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serve: signup consumer stopped: %v", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	providers := repository.NewProviderRepo(db)
	accounts := service.NewAccounts(users, repository.NewSocialAccountRepo(db), events, cfg.BcryptCost)
	todos := service.NewTodoManager(repository.NewTodoRepo(db))

	authH := handler.NewAuthHandler(cfg, accounts, users, tokens)
	oauthH := handler.NewOAuthHandler(authH, oauth.NewFlow(providers, state, cfg.SiteID, cfg.BaseURL))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())

	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterAuth(e, authH, oauthH, cfg.JWTSecret,
		middleware.NewTokenBucket(rateCfg, rdb), middleware.NewResponseCache(cacheCfg, responses))
	router.RegisterTodos(e, handler.NewTodoHandler(todos), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("serve: shutting down")
	return e.Shutdown(shutdownCtx)
}
