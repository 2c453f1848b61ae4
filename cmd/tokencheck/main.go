package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/app/service"
	"portfolio_tracker/internal/client"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/infrastructure/configloader"
	"portfolio_tracker/internal/infrastructure/storage"
	"portfolio_tracker/internal/infrastructure/watchlistloader"
	"portfolio_tracker/internal/pkg/logger"
	"portfolio_tracker/internal/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type result struct {
	entry watchlistloader.WatchlistEntry
	data  *entity.TokenData
	err   error
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", utils.GetEnv("CONFIG_PATH", "config/config.yml"), "path to the YAML config")
	watchlistPath := flag.String("watchlist", "", "file with one \"address [entryPrice]\" per line")
	importTokens := flag.Bool("import", false, "add tokens with an entry price to the persisted portfolio")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := configloader.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		logrus.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()
	logger.InitSlog(zapLogger)
	appLogger := logger.NewSlogAdapter("tokencheck")

	entries, err := collectEntries(flag.Args(), *watchlistPath, appLogger)
	if err != nil {
		logger.Fatal("Failed to read watchlist", "error", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tokencheck [-watchlist file] [-import] address[=entryPrice] ...")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dexClient := client.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		cfg.DEXScreener.RequestTimeout(),
		zapLogger,
		cfg.DEXScreener.RateLimitPerSecond,
		cfg.DEXScreener.RateLimitBurst,
	)
	fetcher := service.NewTokenDataService(dexClient, appLogger)

	results := fetchAll(ctx, fetcher, entries, cfg.Updater.BatchSize)
	printResults(results)

	if *importTokens {
		if err := importResults(ctx, cfg, results, appLogger); err != nil {
			logger.Fatal("Import failed", "error", err)
		}
	}
}

// collectEntries merges the watchlist file with "address" or "address=price" arguments.
func collectEntries(args []string, watchlistPath string, l port.Logger) ([]watchlistloader.WatchlistEntry, error) {
	var entries []watchlistloader.WatchlistEntry
	if watchlistPath != "" {
		loaded, err := watchlistloader.NewWatchlistFileLoader(watchlistPath, l.Info).Load()
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	for _, arg := range args {
		entries = append(entries, parseArg(arg))
	}
	return entries, nil
}

func parseArg(arg string) watchlistloader.WatchlistEntry {
	address, price, _ := strings.Cut(arg, "=")
	return watchlistloader.WatchlistEntry{Address: address, EntryPrice: price}
}

func fetchAll(ctx context.Context, fetcher port.TokenDataFetcher, entries []watchlistloader.WatchlistEntry, limit int) []result {
	results := make([]result, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, e := range entries {
		g.Go(func() error {
			address := utils.NormalizeTokenAddress(e.Address)
			data, err := fetcher.FetchTokenData(gctx, address)
			results[i] = result{entry: watchlistloader.WatchlistEntry{Address: address, EntryPrice: e.EntryPrice}, data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func printResults(results []result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE\t24H\tMCAP\tVOL 24H\tENTRY\tPERF\tADDRESS")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "-\t-\t-\t-\t-\t-\t-\t%s (%v)\n", r.entry.Address, r.err)
			continue
		}
		e := entity.TokenEntry{TokenData: *r.data}
		price, priceErr := service.ParseEntryPrice(r.entry.EntryPrice)
		if priceErr == nil {
			e.EntryData.Price = price
		}
		card := service.BuildTokenCard(r.entry.Address, e, nil)

		entry, perf := "-", "-"
		if priceErr == nil {
			entry = card.EntryFormatted
			perf = card.Performance.Percent
			if !card.Performance.IsPositive {
				perf = "-" + perf
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			card.Symbol, card.PriceFormatted, card.PriceChange24h, card.MarketCap,
			utils.FormatUSDFloat(card.Volume.H24), entry, perf, card.Address)
	}
	_ = w.Flush()
}

// importResults adds every successfully fetched token that has an entry price.
func importResults(ctx context.Context, cfg *configloader.Config, results []result, l port.Logger) error {
	stateStorage, closeStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	store := service.NewPortfolioStore(stateStorage, l)
	if err := store.Restore(ctx); err != nil {
		return err
	}

	imported := importInto(store, results, l)
	l.Info("Import finished", "imported", imported, "total", len(results))
	return nil
}

// importInto stores the already fetched data, so nothing is requested twice.
func importInto(store *service.PortfolioStore, results []result, l port.Logger) int {
	imported := 0
	for _, r := range results {
		if r.err != nil || r.data == nil || r.entry.EntryPrice == "" {
			continue
		}
		price, err := service.ParseEntryPrice(r.entry.EntryPrice)
		if err != nil {
			l.Warn("Token not imported", "address", r.entry.Address, "error", err)
			continue
		}
		store.AddToken(r.entry.Address, *r.data, price)
		imported++
	}
	return imported
}
