package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	accountcmd "github.com/vivesbank/backend/internal/account/command"
	accounthandler "github.com/vivesbank/backend/internal/account/handler"
	accountqry "github.com/vivesbank/backend/internal/account/query"
	accountrepo "github.com/vivesbank/backend/internal/account/repository"
	authcmd "github.com/vivesbank/backend/internal/auth/command"
	authhandler "github.com/vivesbank/backend/internal/auth/handler"
	authqry "github.com/vivesbank/backend/internal/auth/query"
	cardcmd "github.com/vivesbank/backend/internal/card/command"
	cardhandler "github.com/vivesbank/backend/internal/card/handler"
	cardqry "github.com/vivesbank/backend/internal/card/query"
	cardrepo "github.com/vivesbank/backend/internal/card/repository"
	clientcmd "github.com/vivesbank/backend/internal/client/command"
	clienthandler "github.com/vivesbank/backend/internal/client/handler"
	clientqry "github.com/vivesbank/backend/internal/client/query"
	clientrepo "github.com/vivesbank/backend/internal/client/repository"
	movementcmd "github.com/vivesbank/backend/internal/movement/command"
	movementhandler "github.com/vivesbank/backend/internal/movement/handler"
	movementqry "github.com/vivesbank/backend/internal/movement/query"
	movementrepo "github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/internal/movement/scheduler"
	"github.com/vivesbank/backend/internal/storage"
	usercmd "github.com/vivesbank/backend/internal/user/command"
	userhandler "github.com/vivesbank/backend/internal/user/handler"
	userqry "github.com/vivesbank/backend/internal/user/query"
	userrepo "github.com/vivesbank/backend/internal/user/repository"
	"github.com/vivesbank/backend/shared/config"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/logger"
	"github.com/vivesbank/backend/shared/middleware"
	"github.com/vivesbank/backend/shared/models"
	sharedredis "github.com/vivesbank/backend/shared/redis"
	"github.com/vivesbank/backend/shared/websocket"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.For("main")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.For("main")
	middleware.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.Expiry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	db, err := database.OpenPostgres(ctx, database.PostgresOptions{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open postgres")
	}
	defer db.Close()

	mongoClient, mongoDB, err := database.OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mongo")
	}
	defer mongoClient.Disconnect(context.Background())

	redis, err := sharedredis.NewClient(ctx, sharedredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redis.Close()

	files, err := storage.NewFileStore(cfg.Storage.Dir, cfg.Storage.MaxUploadMB<<20)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare storage")
	}

	// Caches and repositories
	cacheOpts := sharedredis.TieredOptions{Size: cfg.Cache.Size, LocalTTL: cfg.Cache.LocalTTL, RedisTTL: cfg.Cache.RedisTTL}
	rc := redis.Client

	userWrite := userrepo.NewUserWriteRepository(db)
	userRead := userrepo.NewUserReadRepository(db, sharedredis.NewTieredCache[models.UserView]("user", rc, cacheOpts))
	clientWrite := clientrepo.NewClientWriteRepository(db)
	clientRead := clientrepo.NewClientReadRepository(db, sharedredis.NewTieredCache[models.ClientView]("client", rc, cacheOpts))
	accountTypes := accountrepo.NewAccountTypeRepository(db, sharedredis.NewTieredCache[models.AccountType]("account-type", rc, cacheOpts))
	accountWrite := accountrepo.NewAccountWriteRepository(db)
	accountRead := accountrepo.NewAccountReadRepository(db, accountrepo.NewAccountCache(rc, cacheOpts))
	cardWrite := cardrepo.NewCardWriteRepository(db)
	cardRead := cardrepo.NewCardReadRepository(db, sharedredis.NewTieredCache[models.CardView]("card", rc, cacheOpts))
	movements := movementrepo.NewMovementRepository(mongoDB)
	directDebits := movementrepo.NewDirectDebitRepository(mongoDB)
	ledger := movementrepo.NewLedger(db)

	notifier := events.NewStreamNotifier(events.NewPublisher(rc))

	// Services
	authCommands := authcmd.NewAuthCommandService(userWrite)
	authQueries := authqry.NewAuthQueryService(userWrite)
	userCommands := usercmd.NewUserCommandService(userWrite, userRead)
	userQueries := userqry.NewUserQueryService(userRead)
	cardCommands := cardcmd.NewCardCommandService(cardWrite, cardRead, notifier)
	cardQueries := cardqry.NewCardQueryService(cardRead, cardWrite, authQueries)
	clientCommands := clientcmd.NewClientCommandService(clientcmd.ClientDeps{
		Clients:  clientWrite,
		Views:    clientRead,
		Users:    userRead,
		Photos:   files,
		Accounts: accountRead,
		Cards:    cardRead,
		UserView: userRead,
	})
	clientQueries := clientqry.NewClientQueryService(clientRead)
	accountTypeCommands := accountcmd.NewAccountTypeCommandService(accountTypes)
	accountTypeQueries := accountqry.NewAccountTypeQueryService(accountTypes)
	accountCommands := accountcmd.NewAccountCommandService(accountcmd.AccountDeps{
		Accounts: accountWrite,
		Views:    accountRead,
		Types:    accountTypes,
		Clients:  clientRead,
		Cards:    cardRead,
		Issuer:   cardCommands,
		Notifier: notifier,
	})
	accountQueries := accountqry.NewAccountQueryService(accountRead, clientRead)
	movementCommands := movementcmd.NewMovementCommandService(movementcmd.MovementDeps{
		Movements:    movements,
		DirectDebits: directDebits,
		Ledger:       ledger,
		Accounts:     accountRead,
		Cards:        cardWrite,
		Clients:      clientRead,
		Notifier:     notifier,
	})
	movementQueries := movementqry.NewMovementQueryService(movements, directDebits, clientRead)
	exports := storage.NewExportService(clientRead, accountRead, movements)

	// Notification delivery
	hubs := map[string]*websocket.Hub{
		events.EntityMovements: websocket.NewHub(events.EntityMovements),
		events.EntityAccounts:  websocket.NewHub(events.EntityAccounts),
		events.EntityCards:     websocket.NewHub(events.EntityCards),
	}
	wsRouter := websocket.NewRouter(hubs[events.EntityMovements], hubs[events.EntityAccounts], hubs[events.EntityCards])

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(), middleware.MetricsMiddleware())
	registerRoutes(router, routes{
		auth:        authhandler.NewAuthHandler(authCommands, authQueries),
		users:       userhandler.NewUserHandler(userCommands, userQueries),
		clients:     clienthandler.NewClientHandler(clientCommands, clientQueries),
		accountType: accounthandler.NewAccountTypeHandler(accountTypeCommands, accountTypeQueries),
		accounts:    accounthandler.NewAccountHandler(accountCommands, accountQueries),
		cards:       cardhandler.NewCardHandler(cardCommands, cardQueries),
		movements:   movementhandler.NewMovementHandler(movementCommands, movementQueries),
		storage:     storage.NewStorageHandler(exports, files),
		hubs:        hubs,
	})

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.HTTP.Port).Msg("vivesbank api starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	// Each instance owns its sockets, so each reads the whole stream.
	instance := instanceName()
	g.Go(func() error {
		return subscribe(gctx, rc, "websocket-"+instance, instance, wsRouter.Handle)
	})
	if brokers := cfg.Kafka.KafkaBrokers(); len(brokers) > 0 {
		forwarder := events.NewKafkaForwarder(brokers, cfg.Kafka.Topic)
		defer forwarder.Close()
		g.Go(func() error {
			return subscribe(gctx, rc, "kafka-forwarder", instance, forwarder.Handle)
		})
	}

	debitScheduler := scheduler.New(directDebits, movementCommands, redis)
	if err := debitScheduler.Start(gctx, cfg.Scheduler.DirectDebitSpec); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer debitScheduler.Stop()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func subscribe(ctx context.Context, rc *goredis.Client, group, consumer string, handler events.Handler) error {
	sub := events.NewSubscriber(rc, events.SubscriberConfig{
		Group:    group,
		Consumer: consumer,
		Stream:   events.NotificationsStream,
		Handler:  handler,
	})
	if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func instanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "vivesbank"
}

type routes struct {
	auth        *authhandler.AuthHandler
	users       *userhandler.UserHandler
	clients     *clienthandler.ClientHandler
	accountType *accounthandler.AccountTypeHandler
	accounts    *accounthandler.AccountHandler
	cards       *cardhandler.CardHandler
	movements   *movementhandler.MovementHandler
	storage     *storage.StorageHandler
	hubs        map[string]*websocket.Hub
}

func registerRoutes(router *gin.Engine, r routes) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := router.Group("/ws/v1", middleware.WebSocketAuth())
	ws.GET("/movements", r.hubs[events.EntityMovements].Serve)
	ws.GET("/accounts", r.hubs[events.EntityAccounts].Serve)
	ws.GET("/cards", r.hubs[events.EntityCards].Serve)

	authGroup := router.Group("/v1/auth")
	authGroup.POST("/signup", r.auth.SignUp)
	authGroup.POST("/signin", r.auth.SignIn)

	v1 := router.Group("/v1", middleware.AuthMiddleware())
	user := middleware.RequireRole(models.RoleUser)
	admin := middleware.RequireRole(models.RoleAdmin)

	users := v1.Group("/users", admin)
	users.GET("", r.users.ListUsers)
	users.POST("", r.users.CreateUser)
	users.GET("/:guid", r.users.GetUser)
	users.PUT("/:guid", r.users.UpdateUser)
	users.DELETE("/:guid", r.users.DeleteUser)

	clients := v1.Group("/clients")
	clients.GET("/catalogue", user, r.accountType.Catalogue)
	clients.GET("/me", user, r.clients.GetMe)
	clients.POST("/me", user, r.clients.CreateMe)
	clients.PUT("/me", user, r.clients.UpdateMe)
	clients.DELETE("/me", user, r.clients.DeleteMe)
	clients.PATCH("/me/profile-photo", user, r.clients.UploadProfilePhoto)
	clients.PATCH("/me/dni-photo", user, r.clients.UploadDNIPhoto)
	clients.GET("", admin, r.clients.ListClients)
	clients.POST("", admin, r.clients.CreateClient)
	clients.GET("/dni/:dni", admin, r.clients.GetClientByDNI)
	clients.GET("/:guid", admin, r.clients.GetClient)
	clients.PUT("/:guid", admin, r.clients.UpdateClient)
	clients.DELETE("/:guid", admin, r.clients.DeleteClient)

	types := v1.Group("/account-types")
	types.GET("", user, r.accountType.ListAccountTypes)
	types.GET("/:guid", user, r.accountType.GetAccountType)
	types.POST("", admin, r.accountType.CreateAccountType)
	types.PUT("/:guid", admin, r.accountType.UpdateAccountType)
	types.DELETE("/:guid", admin, r.accountType.DeleteAccountType)

	accounts := v1.Group("/accounts", admin)
	accounts.GET("", r.accounts.ListAccounts)
	accounts.POST("", r.accounts.CreateAccount)
	accounts.GET("/iban/:iban", r.accounts.GetAccountByIBAN)
	accounts.GET("/client/:guid", r.accounts.ListClientAccounts)
	accounts.GET("/:guid", r.accounts.GetAccount)
	accounts.PUT("/:guid", r.accounts.UpdateAccount)
	accounts.DELETE("/:guid", r.accounts.DeleteAccount)

	cards := v1.Group("/cards")
	cards.POST("/:guid/private", user, r.cards.GetCardPrivate)
	cards.GET("", admin, r.cards.ListCards)
	cards.POST("", admin, r.cards.CreateCard)
	cards.GET("/:guid", admin, r.cards.GetCard)
	cards.PUT("/:guid", admin, r.cards.UpdateCard)
	cards.DELETE("/:guid", admin, r.cards.DeleteCard)

	movements := v1.Group("/movements", admin)
	movements.GET("", r.movements.ListMovements)
	movements.GET("/client/:guid", r.movements.ListClientMovements)
	movements.GET("/:guid", r.movements.GetMovement)

	me := v1.Group("/me", user)
	me.GET("/accounts", r.accounts.ListMyAccounts)
	me.POST("/accounts", r.accounts.OpenAccount)
	me.GET("/movements", r.movements.ListMyMovements)
	me.GET("/direct-debits", r.movements.ListMyDirectDebits)
	me.POST("/direct-debits", r.movements.CreateDirectDebit)
	me.DELETE("/direct-debits/:guid", r.movements.CancelDirectDebit)
	me.POST("/payroll-deposits", r.movements.CreatePayrollDeposit)
	me.POST("/card-payments", r.movements.CreateCardPayment)
	me.POST("/transfers", r.movements.CreateTransfer)
	me.DELETE("/transfers/:guid", r.movements.RevokeTransfer)

	files := v1.Group("/storage")
	files.GET("/me/export", user, r.storage.ExportMe)
	files.GET("/movements/export", admin, r.storage.ExportMovements)
	files.GET("/images/:filename", user, r.storage.GetImage)
}
