package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cudev/game-feed/app/cache"
	"github.com/cudev/game-feed/app/cfg"
	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
	"github.com/jessevdk/go-flags"
)

type options struct {
	SourcesDir string   `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Sources    []string `short:"s" long:"source" description:"Source to read (repeatable, defaults to every enabled source)"`
	DBPath     string   `long:"db-path" env:"DB_PATH" description:"SQLite cache database (in-memory cache when empty)"`
	CacheTTL   int      `long:"cache-ttl" default:"86400" description:"Lifetime of cached responses in seconds"`
	UserAgent  string   `long:"user-agent" env:"USER_AGENT" default:"Game Feed/1.0" description:"User agent string for HTTP requests"`
	Limit      int      `short:"n" long:"limit" default:"0" description:"Maximum number of games to print (0 prints all)"`
	CountOnly  bool     `short:"c" long:"count" description:"Only print the number of games declared by the sources"`
	RSS        bool     `long:"rss" description:"Print the games as an RSS document instead of a table"`
	BaseUrl    string   `long:"base-url" default:"http://localhost:8080" description:"Base URL used for RSS self links"`
	Debug      bool     `long:"debug" description:"Enable debug logging"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logLevel := slog.LevelWarn
	if opts.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "gamefeed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	configCache := feed.NewConfigCache(opts.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	store, closeStore, err := openStore(opts.DBPath)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog := feed.NewCatalog(configCache, store, time.Duration(opts.CacheTTL)*time.Second, opts.UserAgent)

	games, err := selectGames(catalog, opts.Sources)
	if err != nil {
		return err
	}

	if opts.CountOnly {
		count, err := games.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	}

	var records []feed.Record
	for (opts.Limit <= 0 || len(records) < opts.Limit) && games.Next(ctx) {
		records = append(records, games.Record())
	}
	if err := games.Err(); err != nil {
		return err
	}

	if opts.RSS {
		cfg.Set(&cfg.Cfg{BaseUrl: opts.BaseUrl, Version: cfg.GetVersion()})
		rss, err := feed.NewGenerator().Run(feed.GamesOf(records))
		if err != nil {
			return err
		}
		fmt.Println(rss)
		return nil
	}

	writeTable(os.Stdout, records)
	fmt.Printf("\n%d games\n", len(records))
	return nil
}

func selectGames(catalog *feed.Catalog, sources []string) (*feed.Games, error) {
	if len(sources) == 0 {
		return catalog.Games()
	}

	retrievers := make([]*feed.Retriever, 0, len(sources))
	for _, name := range sources {
		retriever, err := catalog.Retriever(name)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, retriever)
	}
	return feed.From(retrievers...), nil
}

func openStore(dbPath string) (cache.Store, func(), error) {
	if dbPath == "" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewConnection(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, _, err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return database.NewCacheRepository(db), func() { _ = db.Close() }, nil
}
