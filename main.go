package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"yoktez/tezworker/config"
	"yoktez/tezworker/internal/engine"
	"yoktez/tezworker/internal/scraper"
	"yoktez/tezworker/internal/thesis"
	"yoktez/tezworker/logger"
	"yoktez/tezworker/services/cache"
	"yoktez/tezworker/services/publisher"
	"yoktez/tezworker/services/throttle"
	"yoktez/tezworker/services/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logger.Init()

	root := &cobra.Command{
		Use:           "tezworker",
		Short:         "Retrieval engine for the national thesis registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(watchCmd(), searchCmd(), detailCmd(), recentCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed: %v", err)
		os.Exit(1)
	}
}

func buildEngine(cfg *config.Config) (*engine.Engine, cache.CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var store cache.CacheService
	switch cfg.CacheBackend {
	case config.CacheMemcache:
		store = cache.NewMemcacheStore(cfg.MemcacheAddr, cfg.CacheTTL)
	default:
		store = cache.NewMemoryStore(time.Duration(cfg.CacheTTL) * time.Second)
	}

	var backend scraper.Backend
	switch cfg.Backend {
	case config.BackendBrowser:
		b, err := scraper.NewBrowserBackend(cfg.BrowserAddr, cfg.PortalBaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, err
		}
		backend = b
	default:
		backend = scraper.NewHTTPBackend(cfg.PortalBaseURL, cfg.RequestTimeout)
	}

	eng, err := engine.New(engine.Options{
		Backend:     backend,
		Cache:       store,
		Throttle:    throttle.New(cfg.ThrottleInterval),
		CacheTTL:    cfg.CacheTTL,
		MaxAttempts: cfg.MaxAttempts,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, store, nil
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll saved searches and publish new theses to redis streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(cfg.WatchQueries) == 0 {
				return fmt.Errorf("WATCH_QUERIES is empty, nothing to watch")
			}

			eng, store, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			pub, err := publisher.NewRedisPublisher(
				cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
				cfg.RedisStreamPrefix, cfg.RedisStreamShards, cfg.RedisStreamMaxLen)
			if err != nil {
				return err
			}
			defer pub.Close()

			queries := make([]thesis.SearchRequest, 0, len(cfg.WatchQueries))
			for _, q := range cfg.WatchQueries {
				queries = append(queries, thesis.SearchRequest{Query: q})
			}

			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				logger.Info("Metrics listening on %s", cfg.MetricsAddr)
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					logger.Error("Metrics server stopped: %v", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := worker.New(eng, pub, store, queries, cfg.WatchInterval)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var req thesis.SearchRequest
	var field, thesisType string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a simple search and print matching theses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				req.Query = args[0]
			}
			req.Field = thesis.Field(field)
			req.Type = thesis.Type(thesisType)

			eng, _, err := buildEngine(config.Load())
			if err != nil {
				return err
			}
			defer eng.Close()

			rows, err := eng.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "search field (title, author, advisor, subject, index, abstract, all)")
	cmd.Flags().IntVar(&req.YearStart, "year-start", 0, "earliest year")
	cmd.Flags().IntVar(&req.YearEnd, "year-end", 0, "latest year")
	cmd.Flags().StringVar(&thesisType, "type", "", "thesis type (masters, doctorate, medical_specialty, proficiency_in_art)")
	cmd.Flags().StringVar(&req.University, "university", "", "university filter")
	cmd.Flags().StringVar(&req.Language, "language", "", "language filter")
	cmd.Flags().StringVar(&req.Permission, "permission", "", "access permission filter")
	cmd.Flags().IntVar(&req.MaxResults, "max", 0, "maximum results")

	return cmd
}

func detailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detail <thesis-id>",
		Short: "Look up the full record for a thesis id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine(config.Load())
			if err != nil {
				return err
			}
			defer eng.Close()

			d, found, err := eng.GetDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("No thesis found for id %s\n", args[0])
				return nil
			}
			return printJSON(d)
		},
	}
}

func recentCmd() *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently added theses",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine(config.Load())
			if err != nil {
				return err
			}
			defer eng.Close()

			rows, err := eng.GetRecent(cmd.Context(), days, limit)
			if err != nil {
				return err
			}
			return printJSON(rows)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how many days back to list")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")

	return cmd
}

func statsCmd() *cobra.Command {
	var filter thesis.StatisticsFilter
	var thesisType string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate a sample of search results by type, language and year",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Type = thesis.Type(thesisType)

			eng, _, err := buildEngine(config.Load())
			if err != nil {
				return err
			}
			defer eng.Close()

			stats, err := eng.Statistics(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}

	cmd.Flags().StringVar(&filter.Query, "query", "", "search term")
	cmd.Flags().StringVar(&filter.University, "university", "", "university filter")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "single year filter")
	cmd.Flags().StringVar(&thesisType, "type", "", "thesis type filter")

	return cmd
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
