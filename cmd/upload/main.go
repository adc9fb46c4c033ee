package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"clipvault/clips"
	"clipvault/storage"
)

// upload backfills the remote archive from local clip storage, one camera or
// all of them. The running service archives on a schedule; this exists for
// first-time syncs and for hosts where the service ran without archiving.
func main() {
	camera := flag.String("camera", "", "Camera name (directory name) to upload")
	srcDir := flag.String("src", "./data", "Storage root containing camera directories")
	allCameras := flag.Bool("all", false, "Upload every camera directory found in the storage root")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: .env file not found at %s, using environment variables", *envFile)
	}

	if os.Getenv("ARCHIVE_ACCESS_KEY") == "" || os.Getenv("ARCHIVE_SECRET_KEY") == "" {
		log.Fatal("Error: archive credentials not set in environment variables")
	}

	archiver, err := storage.NewArchiver(storage.ArchiveConfig{
		Endpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
		Bucket:    os.Getenv("ARCHIVE_BUCKET"),
		AccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
		SecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
		Region:    os.Getenv("ARCHIVE_REGION"),
		BaseURL:   os.Getenv("ARCHIVE_BASE_URL"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize archive client: %v", err)
	}

	if *allCameras {
		uploadAllCameras(archiver, *srcDir)
	} else if *camera != "" {
		uploadSingleCamera(archiver, *camera, *srcDir)
	} else {
		log.Fatal("Either provide a camera name with -camera or use -all to upload all cameras")
	}
}

func uploadSingleCamera(archiver *storage.Archiver, camera, srcDir string) {
	paths := storage.PathsFor(srcDir, camera)
	if _, err := os.Stat(paths.ClipsDir); os.IsNotExist(err) {
		log.Fatalf("Camera clip directory does not exist: %s", paths.ClipsDir)
	}

	log.Printf("Uploading clips for camera %s from %s", camera, paths.ClipsDir)
	uploaded, skipped, failed := uploadCameraClips(archiver, camera, paths)
	log.Printf("Camera %s complete: %d uploaded, %d already archived, %d failed", camera, uploaded, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func uploadAllCameras(archiver *storage.Archiver, srcDir string) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		log.Fatalf("Failed to read storage root: %v", err)
	}

	totalUploaded := 0
	totalFailed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		camera := entry.Name()
		paths := storage.PathsFor(srcDir, camera)
		if _, err := os.Stat(paths.ClipsDir); err != nil {
			continue // not a camera directory
		}

		log.Printf("Processing camera directory: %s", camera)
		uploaded, skipped, failed := uploadCameraClips(archiver, camera, paths)
		log.Printf("Camera %s: %d uploaded, %d already archived, %d failed", camera, uploaded, skipped, failed)
		totalUploaded += uploaded
		totalFailed += failed
	}

	log.Printf("Upload complete. Successfully uploaded %d clips, failed to upload %d clips", totalUploaded, totalFailed)
}

func uploadCameraClips(archiver *storage.Archiver, camera string, paths storage.CameraPaths) (uploaded, skipped, failed int) {
	entries, err := os.ReadDir(paths.ClipsDir)
	if err != nil {
		log.Printf("Failed to read clips for %s: %v", camera, err)
		return 0, 0, 1
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".mp4") || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := clips.DecodeClipName(name); err != nil {
			log.Printf("Skipping %s: not a clip filename", name)
			continue
		}

		key := storage.RemoteKey(camera, name)
		if archiver.ObjectExists(key) {
			skipped++
			continue
		}

		localPath := filepath.Join(paths.ClipsDir, name)
		if _, err := archiver.UploadFile(localPath, key); err != nil {
			log.Printf("Failed to upload %s: %v", name, err)
			failed++
			continue
		}
		uploaded++

		thumbName := strings.TrimSuffix(name, ".mp4") + ".jpg"
		thumbPath := filepath.Join(paths.ThumbsDir, thumbName)
		if _, err := os.Stat(thumbPath); err == nil {
			thumbKey := storage.RemoteKey(camera, storage.ThumbsDirName+"/"+thumbName)
			if _, err := archiver.UploadFile(thumbPath, thumbKey); err != nil {
				log.Printf("Failed to upload thumbnail %s: %v", thumbName, err)
			}
		}
	}
	return uploaded, skipped, failed
}
