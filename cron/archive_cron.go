package cron

import (
	"log"
	"os"
	"time"

	"clipvault/catalog"
	"clipvault/storage"

	"github.com/robfig/cron/v3"
)

// StartArchiveCron initializes a cron job that runs every 5 minutes to:
// 1. Walk the clip catalog for every camera
// 2. Check whether each clip already exists in the remote bucket
// 3. Upload missing clips and their thumbnails
// Uploads survive restarts because the existence check runs against the
// bucket, not local state.
func StartArchiveCron(cat *catalog.Catalog, archiver *storage.Archiver) {
	go func() {
		// Initial delay before first run (5 seconds)
		time.Sleep(5 * time.Second)

		// Run immediately once at startup
		syncClipsToArchive(cat, archiver)

		schedule := cron.New()
		_, err := schedule.AddFunc("@every 5m", func() {
			syncClipsToArchive(cat, archiver)
		})
		if err != nil {
			log.Fatalf("Error scheduling archive cron: %v", err)
		}

		schedule.Start()
		log.Println("archive : Clip archive cron job started - will run every 5 minutes")
	}()
}

// syncClipsToArchive uploads every catalogued clip the bucket does not have yet
func syncClipsToArchive(cat *catalog.Catalog, archiver *storage.Archiver) {
	uploaded := 0
	skipped := 0
	failed := 0

	for _, camera := range cat.Cameras() {
		for _, rec := range cat.ListCamera(camera) {
			key := storage.RemoteKey(camera, rec.Filename)
			if archiver.ObjectExists(key) {
				skipped++
				continue
			}

			if _, err := archiver.UploadFile(rec.VideoPath, key); err != nil {
				log.Printf("archive : Error uploading %s/%s: %v", camera, rec.Filename, err)
				failed++
				continue
			}
			uploaded++

			// Thumbnail rides along; a clip without one is still archived
			if rec.ThumbnailPath != "" {
				if _, err := os.Stat(rec.ThumbnailPath); err == nil {
					thumbKey := storage.RemoteKey(camera, storage.ThumbsDirName+"/"+rec.ID+".jpg")
					if _, err := archiver.UploadFile(rec.ThumbnailPath, thumbKey); err != nil {
						log.Printf("archive : Error uploading thumbnail for %s/%s: %v", camera, rec.ID, err)
					}
				}
			}
		}
	}

	if uploaded > 0 || failed > 0 {
		log.Printf("archive : Sync complete - %d uploaded, %d already archived, %d failed", uploaded, skipped, failed)
	}
}
