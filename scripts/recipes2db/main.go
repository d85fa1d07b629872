package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/docstore/firestore"
	"github.com/ting-rn/ting-sync/internal/docstore/postgres"
	"github.com/ting-rn/ting-sync/internal/schema"
)

const batchSize = 100

var opts = struct {
	Recipes            string `long:"recipes" env:"RECIPES" default:"recipes.json" description:"path to recipes catalog, a json array of recipes"`
	Store              string `long:"store" env:"STORE" default:"postgres" description:"document store backend" choice:"postgres" choice:"firestore"`
	Postgres           string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMigrations string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	FirebaseProject     string `long:"firebase.project" env:"FIREBASE_PROJECT" description:"firebase project id"`
	FirebaseCredentials string `long:"firebase.credentials" env:"FIREBASE_CREDENTIALS" description:"firebase service account file"`
}{}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "recipes2db"
	parser.LongDescription = "Recipes catalog to document store importer"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("recipes2db started")

	b, err := os.ReadFile(opts.Recipes)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read recipes")
	}

	var recipes []map[string]interface{}
	if err := json.Unmarshal(b, &recipes); err != nil {
		logrus.WithError(err).Fatal("failed to unmarshal recipes")
	}

	writes, err := toWrites(recipes)
	if err != nil {
		logrus.WithError(err).Fatal("invalid catalog")
	}

	ctx := context.Background()
	s := mustGetStore(ctx)

	for i := 0; i < len(writes); i += batchSize {
		end := i + batchSize
		if end > len(writes) {
			end = len(writes)
		}

		if _, err := s.ApplyBatch(ctx, writes[i:end]); err != nil {
			logrus.WithError(err).Fatal("failed to put recipes into store")
		}

		logrus.Infof("%d of %d recipes imported", end, len(writes))
	}

	logrus.Info("done")
}

// toWrites converts catalog entries to set writes keyed by their _id.
func toWrites(recipes []map[string]interface{}) ([]docstore.Write, error) {
	writes := make([]docstore.Write, 0, len(recipes))

	for i, r := range recipes {
		id, _ := r["_id"].(string)
		if id == "" {
			return nil, fmt.Errorf("recipe %d has no _id", i)
		}

		data := make(map[string]interface{}, len(r))
		for k, v := range r {
			if k != "_id" {
				data[k] = v
			}
		}

		if _, ok := data[schema.CreatedAt]; !ok {
			data[schema.CreatedAt] = docstore.ServerTimestamp
		}

		writes = append(writes, docstore.Set(schema.RecipePath(id), data))
	}

	return writes, nil
}

func mustGetStore(ctx context.Context) docstore.Store {
	if opts.Store == "firestore" {
		var o []option.ClientOption
		if opts.FirebaseCredentials != "" {
			o = append(o, option.WithCredentialsFile(opts.FirebaseCredentials))
		}

		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.FirebaseProject}, o...)
		if err != nil {
			logrus.WithError(err).Fatal("failed to create firebase app")
		}

		s, err := firestore.NewFromApp(ctx, app)
		if err != nil {
			logrus.WithError(err).Fatal("failed to create firestore store")
		}

		return s
	}

	return postgres.New(mustGetDB(), nil)
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

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
