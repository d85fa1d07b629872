package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-chi/chi"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/Decentr-net/logrus/sentry"

	"github.com/ting-rn/ting-sync/internal/auth"
	"github.com/ting-rn/ting-sync/internal/blob"
	"github.com/ting-rn/ting-sync/internal/blob/gcs"
	"github.com/ting-rn/ting-sync/internal/blob/minio"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/docstore/firestore"
	"github.com/ting-rn/ting-sync/internal/docstore/memory"
	"github.com/ting-rn/ting-sync/internal/docstore/postgres"
	"github.com/ting-rn/ting-sync/internal/feed"
	"github.com/ting-rn/ting-sync/internal/health"
	"github.com/ting-rn/ting-sync/internal/live"
	"github.com/ting-rn/ting-sync/internal/localstate"
	mm "github.com/ting-rn/ting-sync/internal/middleware"
	"github.com/ting-rn/ting-sync/internal/server"
	"github.com/ting-rn/ting-sync/internal/service/impl"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on for insecure connections, defaults to a random value"`
	RequestTimeout time.Duration `long:"http.request_timeout" env:"HTTP_REQUEST_TIMEOUT" default:"45s" description:"request processing timeout"`
	RateLimit      float64       `long:"http.rate_limit" env:"HTTP_RATE_LIMIT" default:"20" description:"requests per second allowed to one ip, 0 disables limiting"`
	RateBurst      int           `long:"http.rate_burst" env:"HTTP_RATE_BURST" default:"40" description:"requests burst allowed to one ip"`

	Store string `long:"store" env:"STORE" default:"memory" description:"document store backend" choice:"memory" choice:"postgres" choice:"firestore"`

	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	FirebaseProject     string `long:"firebase.project" env:"FIREBASE_PROJECT" description:"firebase project id"`
	FirebaseCredentials string `long:"firebase.credentials" env:"FIREBASE_CREDENTIALS" description:"firebase service account file, application default credentials are used when empty"`
	FirebaseBucket      string `long:"firebase.bucket" env:"FIREBASE_BUCKET" description:"firebase storage bucket"`

	Auth      string        `long:"auth" env:"AUTH" default:"jwt" description:"token verifier" choice:"firebase" choice:"jwt"`
	JWTSecret string        `long:"jwt.secret" env:"JWT_SECRET" description:"jwt signing secret"`
	JWTTTL    time.Duration `long:"jwt.ttl" env:"JWT_TTL" default:"720h" description:"jwt lifetime"`

	Blob           string `long:"blob" env:"BLOB" default:"none" description:"blob storage backend" choice:"none" choice:"gcs" choice:"minio"`
	MinioEndpoint  string `long:"minio.endpoint" env:"MINIO_ENDPOINT" default:"localhost:9000" description:"minio endpoint"`
	MinioAccessKey string `long:"minio.access_key" env:"MINIO_ACCESS_KEY" description:"minio access key"`
	MinioSecretKey string `long:"minio.secret_key" env:"MINIO_SECRET_KEY" description:"minio secret key"`
	MinioBucket    string `long:"minio.bucket" env:"MINIO_BUCKET" default:"ting" description:"minio bucket"`
	MinioUseSSL    bool   `long:"minio.use_ssl" env:"MINIO_USE_SSL" description:"use https to connect minio"`
	MinioPublicURL string `long:"minio.public_url" env:"MINIO_PUBLIC_URL" default:"http://localhost:9000" description:"base url objects are fetched from"`

	LocalState string `long:"local_state" env:"LOCAL_STATE" default:"ting.db" description:"local state url, sqlite path or postgres:// url"`

	FeedBatchSize int           `long:"feed.batch_size" env:"FEED_BATCH_SIZE" default:"10" description:"size of following id batches of personal feed, at most 10"`
	SettleTimeout time.Duration `long:"live.settle_timeout" env:"LIVE_SETTLE_TIMEOUT" default:"5s" description:"duration optimistic state is kept when subscription does not confirm it"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

// runner is a component which works until ctx is done.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Ting Sync"
	parser.LongDescription = "Ting Sync"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	logrus.Debug(spew.Sdump(opts))

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "ting-sync",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pinger, run := mustGetStore(ctx)
	b := mustGetBlob(ctx)

	state, err := localstate.Open(opts.LocalState)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open local state")
	}
	defer state.Close()

	srv := impl.New(store, b)
	sessions := auth.NewSessions(mustGetVerifier(ctx))

	r := chi.NewMux()
	r.Get("/health", health.Handler(
		5*time.Second,
		pinger,
		health.PingerFunc("local_state", state.Ping),
	))

	server.SetupRouter(r, server.Config{
		Service:      srv,
		Feed:         feed.New(store, feed.WithBatchSize(opts.FeedBatchSize)),
		Live:         live.NewFactory(live.Config{Store: store, Service: srv, SettleTimeout: opts.SettleTimeout}),
		Sessions:     sessions,
		Bootstrapper: auth.NewBootstrapper(sessions, srv, state),
		RateLimiter:  mm.NewIPRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		Timeout:      opts.RequestTimeout,
	})

	httpSrv := http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}

	gr, _ := errgroup.WithContext(ctx)
	if run != nil {
		gr.Go(func() error {
			return run.Run(ctx)
		})
	}
	gr.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		s := <-sigs

		logrus.Infof("terminating by %s signal", s)

		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("failed to shutdown http server")
		}

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) {
		logrus.WithError(err).Fatal("ting-sync unexpectedly closed")
	}
}

func mustGetStore(ctx context.Context) (docstore.Store, health.Pinger, runner) {
	switch opts.Store {
	case "postgres":
		s := postgres.New(mustGetDB(), postgres.NewListener(opts.Postgres))
		return s, s, s
	case "firestore":
		s, err := firestore.NewFromApp(ctx, mustGetApp(ctx))
		if err != nil {
			logrus.WithError(err).Fatal("failed to create firestore store")
		}
		return s, s, nil
	default:
		logrus.Warn("memory store is used, documents are lost on restart")
		s := memory.New()
		return s, s, nil
	}
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}

var app *firebase.App

// mustGetApp returns firebase app shared by firestore, auth and storage.
func mustGetApp(ctx context.Context) *firebase.App {
	if app != nil {
		return app
	}

	var o []option.ClientOption
	if opts.FirebaseCredentials != "" {
		o = append(o, option.WithCredentialsFile(opts.FirebaseCredentials))
	}

	var err error
	app, err = firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     opts.FirebaseProject,
		StorageBucket: opts.FirebaseBucket,
	}, o...)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create firebase app")
	}

	return app
}

func mustGetVerifier(ctx context.Context) auth.Verifier {
	if opts.Auth == "firebase" {
		client, err := mustGetApp(ctx).Auth(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("failed to create firebase auth client")
		}
		return auth.NewFirebaseVerifier(client)
	}

	v, err := auth.NewJWT(opts.JWTSecret, opts.JWTTTL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create jwt verifier")
	}

	return v
}

func mustGetBlob(ctx context.Context) blob.Storage {
	switch opts.Blob {
	case "gcs":
		b, err := gcs.NewFromApp(ctx, mustGetApp(ctx), opts.FirebaseBucket)
		if err != nil {
			logrus.WithError(err).Fatal("failed to create gcs storage")
		}
		return b
	case "minio":
		b, err := minio.New(minio.Config{
			Endpoint:  opts.MinioEndpoint,
			AccessKey: opts.MinioAccessKey,
			SecretKey: opts.MinioSecretKey,
			Bucket:    opts.MinioBucket,
			UseSSL:    opts.MinioUseSSL,
			PublicURL: opts.MinioPublicURL,
		})
		if err != nil {
			logrus.WithError(err).Fatal("failed to create minio storage")
		}
		return b
	default:
		logrus.Warn("blob storage is not configured, uploads are disabled")
		return nil
	}
}
