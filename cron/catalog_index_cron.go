package cron

import (
	"context"
	"fmt"
	"log"

	"clipvault/catalog"

	"github.com/robfig/cron/v3"
)

// CatalogIndexCron keeps the clip catalog in sync with disk. A full rescan of
// every camera runs on the configured interval; a fast pass every 15 seconds
// rescans only cameras flagged dirty by assembly or deletion.
type CatalogIndexCron struct {
	cron            *cron.Cron
	indexer         *catalog.Indexer
	catalog         *catalog.Catalog
	cameras         []string
	intervalMinutes int
}

// NewCatalogIndexCron creates the catalog index cron for the given cameras
func NewCatalogIndexCron(indexer *catalog.Indexer, cat *catalog.Catalog, cameras []string, intervalMinutes int) *CatalogIndexCron {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	return &CatalogIndexCron{
		cron:            cron.New(cron.WithSeconds()),
		indexer:         indexer,
		catalog:         cat,
		cameras:         cameras,
		intervalMinutes: intervalMinutes,
	}
}

// Start begins both scan schedules and blocks until ctx is cancelled
func (c *CatalogIndexCron) Start(ctx context.Context) error {
	log.Printf("Starting catalog index cron job (full scan every %d minutes)", c.intervalMinutes)

	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %dm", c.intervalMinutes), c.runFullScan); err != nil {
		return err
	}
	if _, err := c.cron.AddFunc("*/15 * * * * *", c.runDirtyScan); err != nil {
		return err
	}

	c.cron.Start()

	// Build the first snapshot immediately so the API has data from the start
	c.runFullScan()

	<-ctx.Done()
	c.Stop()
	return nil
}

// Stop stops the catalog index cron job
func (c *CatalogIndexCron) Stop() {
	log.Println("Stopping catalog index cron job")
	c.cron.Stop()
}

func (c *CatalogIndexCron) runFullScan() {
	c.indexer.ScanAll(c.cameras)
}

// runDirtyScan refreshes only cameras whose clip set changed since the last
// pass, so new clips show up in the API without waiting for the full rescan.
func (c *CatalogIndexCron) runDirtyScan() {
	for _, camera := range c.catalog.ConsumeDirty() {
		count, err := c.indexer.ScanCamera(camera)
		if err != nil {
			log.Printf("[%s] ⚠️ Dirty rescan failed: %v", camera, err)
			continue
		}
		log.Printf("[%s] 🔄 Dirty rescan indexed %d clips", camera, count)
	}
}
