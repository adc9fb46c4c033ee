package storage

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ArchiveConfig holds credentials for an S3-compatible offsite archive
type ArchiveConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	BaseURL   string // public URL prefix for archived objects
}

const (
	// Number of attempts for the upload retry loop
	maxUploadAttempts = 3
)

// Archiver copies finished clips to S3-compatible storage so they survive
// local eviction. Uploads run one part at a time to keep a single HTTP
// connection on constrained uplinks.
type Archiver struct {
	config   ArchiveConfig
	session  *session.Session
	client   *s3.S3
	uploader *s3manager.Uploader
}

// NewArchiver creates an archiver for the configured bucket
func NewArchiver(config ArchiveConfig) (*Archiver, error) {
	if config.Region == "" {
		config.Region = "auto"
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	client := s3.New(sess)

	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 1
	})

	return &Archiver{
		config:   config,
		session:  sess,
		client:   client,
		uploader: uploader,
	}, nil
}

// RemoteKey builds the object key for a camera's file
func RemoteKey(camera, filename string) string {
	return path.Join(camera, filename)
}

// UploadFile uploads one local file under the given object key, retrying
// with backoff. Returns the public URL.
func (a *Archiver) UploadFile(localPath, remotePath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %v", localPath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %v", err)
	}

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mp4":
		contentType = "video/mp4"
	case ".ts":
		contentType = "video/mp2t"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	}

	metadata := map[string]*string{
		"OriginalFileName": aws.String(filepath.Base(localPath)),
		"UploadedAt":       aws.String(time.Now().Format(time.RFC3339)),
		"FileSize":         aws.String(fmt.Sprintf("%d", fileInfo.Size())),
	}

	log.Printf("☁️ Uploading %s (%.2f MB) to archive as %s", filepath.Base(localPath), float64(fileInfo.Size())/1024/1024, remotePath)

	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		if _, err := file.Seek(0, 0); err != nil {
			return "", fmt.Errorf("failed to seek to beginning of file: %v", err)
		}

		_, lastErr = a.uploader.Upload(&s3manager.UploadInput{
			Bucket:      aws.String(a.config.Bucket),
			Key:         aws.String(remotePath),
			Body:        file,
			ContentType: aws.String(contentType),
			Metadata:    metadata,
		})

		if lastErr == nil {
			break
		}

		log.Printf("⚠️ Upload attempt %d/%d failed for %s: %v", attempt, maxUploadAttempts, localPath, lastErr)
		time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to upload file after %d attempts: %v", maxUploadAttempts, lastErr)
	}

	publicURL := fmt.Sprintf("%s/%s", strings.TrimRight(a.config.BaseURL, "/"), remotePath)
	return publicURL, nil
}

// ObjectExists reports whether an object key is already present in the
// bucket. Used to skip re-uploads after a restart.
func (a *Archiver) ObjectExists(remotePath string) bool {
	_, err := a.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(remotePath),
	})
	return err == nil
}
