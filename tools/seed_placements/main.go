package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adslotgate/internal/config"
	"github.com/patrickwarner/adslotgate/internal/db"
	"github.com/patrickwarner/adslotgate/internal/models"
	"github.com/patrickwarner/adslotgate/internal/observability"
)

var (
	file       = flag.String("file", "", "JSON array of placements to seed (defaults to the demo set)")
	skipReload = flag.Bool("skip-reload", false, "skip automatic reload after seeding")
)

// demoPlacements covers the common layouts of a listing site.
func demoPlacements() []models.Placement {
	return []models.Placement{
		{
			ID:             "detailpage-content2",
			AdType:         "doubleclick",
			SlotID:         "/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2",
			SizeMapping:    "[[[728,300],[[728,90]]],[[0,0],[[300,100],[320,50]]]]",
			MaxXResolution: "1024",
		},
		{
			ID:             "listing-top",
			AdType:         "doubleclick",
			SlotID:         "/4467/AS24_WEBSITE_DE/listing_top",
			Sizes:          "[[728,90],[970,250]]",
			MinXResolution: "767",
		},
		{
			ID:             "listing-sky",
			AdType:         "doubleclick",
			SlotID:         "/4467/AS24_WEBSITE_DE/listing_sky",
			Sizes:          "[[160,600],[300,600]]",
			MinXResolution: "1279",
			MinYResolution: "599",
		},
	}
}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	pls := demoPlacements()
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal("read placements file", zap.Error(err))
		}
		pls = nil
		if err := json.Unmarshal(data, &pls); err != nil {
			logger.Fatal("decode placements file", zap.Error(err))
		}
	}

	cfg := config.Load()
	ctx := context.Background()
	pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	for _, p := range pls {
		if err := p.Validate(); err != nil {
			logger.Fatal("invalid placement", zap.String("placement", p.ID), zap.Error(err))
		}
		if _, err := pg.UpsertPlacement(ctx, p); err != nil {
			logger.Fatal("upsert placement", zap.String("placement", p.ID), zap.Error(err))
		}
	}
	fmt.Printf("seeded %d placements\n", len(pls))

	if !*skipReload {
		if err := callReloadEndpoint(cfg); err != nil {
			logger.Error("reload endpoint failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "Warning: failed to reload server data: %v\n", err)
		} else {
			fmt.Println("server data reloaded")
		}
	}
}

func callReloadEndpoint(cfg config.Config) error {
	reloadURL := fmt.Sprintf("http://localhost:%s/reload", cfg.Port)
	req, err := http.NewRequest(http.MethodPost, reloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
