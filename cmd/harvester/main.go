package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"listingminer/internal/shared/config"
	"listingminer/internal/shared/logger"
	"listingminer/internal/shared/types"
	"listingminer/proxypool/model"
	"listingminer/proxypool/rank"
	"listingminer/proxypool/scraper"
	"listingminer/proxypool/storage"
	"listingminer/proxypool/validator"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	country := flag.String("country", "", "Country filter override (use 'ALL' for no filter)")
	workers := flag.Int("workers", 0, "Concurrent probe workers override")
	timeout := flag.Int("timeout", 0, "Per-probe timeout override in seconds")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "listingminer.ini")

	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if *country != "" {
		cfg.HarvestConf.Country = *country
	}
	if *workers > 0 {
		cfg.HarvestConf.Workers = *workers
	}
	if *timeout > 0 {
		cfg.HarvestConf.TimeoutSeconds = *timeout
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	l := logger.WithComponent("Harvester")
	l.Info().Str("country", cfg.HarvestConf.Country).Int("workers", cfg.HarvestConf.Workers).Msg("Starting proxy harvest...")

	scrapers := []scraper.Scraper{
		scraper.NewFreeProxyListScraper("free-proxy-list.net", ""),
		scraper.NewFreeProxyListScraper("us-proxy.org", "https://www.us-proxy.org/"),
		scraper.NewFreeProxyListScraper("sslproxies.org", "https://www.sslproxies.org/"),
		scraper.NewProxyNovaScraper(""),
		scraper.NewGeonodeScraper(""),
		scraper.NewProxyScrapeScraper(""),
	}

	candidates := scraper.Harvest(scrapers, scraper.HarvestOptions{
		Country:      cfg.HarvestConf.Country,
		MaxPerSource: cfg.HarvestConf.MaxPerSource,
	})
	if len(candidates) == 0 {
		logger.Fatal().Msg("Harvest produced no candidates.")
	}

	v := validator.NewValidator(time.Duration(cfg.HarvestConf.TimeoutSeconds)*time.Second, cfg.HarvestConf.Workers)
	records := v.TestBatch(candidates)
	if len(records) == 0 {
		logger.Fatal().Msg("No operational proxies found during testing.")
	}

	best := rank.SelectBest(records, cfg.HarvestConf.PoolSize)

	snapPath := filepath.Join(cfg.PoolConf.DataDir, "proxy_state.json")
	store := storage.NewFileStorage(snapPath)
	snap := &storage.Snapshot{
		Working:     best,
		Blacklisted: []*model.ProxyRecord{},
		Timestamp:   time.Now(),
		Country:     cfg.HarvestConf.Country,
	}
	if err := store.Save(snap); err != nil {
		logger.Fatal().Err(err).Msg("Failed to persist harvested pool.")
	}

	csvPath := filepath.Join(cfg.PoolConf.DataDir, "working_proxies.csv")
	if err := storage.ExportCSV(csvPath, best); err != nil {
		l.Warn().Err(err).Str("path", csvPath).Msg("CSV export failed.")
	}

	fastest := best[0]
	l.Info().
		Int("working", len(best)).
		Str("fastest", fastest.Address).
		Dur("latency", fastest.Latency).
		Int("score", fastest.Score).
		Msg("Harvest complete.")
}
