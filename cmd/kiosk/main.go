// Command kiosk is a line-oriented ordering terminal. It keeps the cart
// locally and talks to the rewards ledger over HTTP.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"loyalty-cart/cart"
	"loyalty-cart/client"
	"loyalty-cart/config"
)

func main() {
	catalogPath := flag.String("catalog", "catalog.json", "menu and rewards catalog")
	configPath := flag.String("config", config.DefaultPath, "config file")
	verbose := flag.Bool("v", false, "log background tasks")
	flag.Parse()

	zc := zap.NewDevelopmentConfig()
	if !*verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		logger.Fatal("load catalog", zap.String("path", *catalogPath), zap.Error(err))
	}

	ledger := client.New(cfg.LedgerURL)
	tasks := cart.NewTaskQueue(cfg.RefundQueue, 2, 15*time.Second, logger)
	defer tasks.Close()

	engine := cart.NewEngine(cart.NewSession(), ledger,
		cart.WithPricing(cart.NewPricing(cfg.TaxRate, cfg.DeliveryFee)),
		cart.WithLogger(logger),
		cart.WithTaskQueue(tasks),
	)
	defer engine.Close()

	k := newKiosk(engine, ledger, cat, os.Stdout)
	k.run(os.Stdin)
}

// Catalog is the read-only menu file. Reward entries carry "points".
type Catalog struct {
	Menu    []cart.Item `json:"menu"`
	Rewards []cart.Item `json:"rewards"`
}

func loadCatalog(path string) (Catalog, error) {
	var c Catalog
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func (c Catalog) find(id string) (cart.Item, bool) {
	for _, it := range c.Menu {
		if it.ID == id {
			return it, true
		}
	}
	for _, it := range c.Rewards {
		if it.ID == id {
			return it, true
		}
	}
	return cart.Item{}, false
}
