// Package archive stores downloaded captures in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appConfig "pktremote/config"
	"pktremote/internal/models"
	"pktremote/pkg/utils"
)

// ChecksumMetadataKey is the object metadata entry holding the BLAKE3 digest
// of an uploaded capture.
const ChecksumMetadataKey = "blake3"

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

var ErrNoBucket = errors.New("no archive bucket configured")

type Client struct {
	s3Client *s3.Client
	uploader *manager.Uploader
	config   *appConfig.Config
}

func New(ctx context.Context, cfg *appConfig.Config) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, ErrNoBucket
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.ApiURL != "" {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3Client: s3Client,
		uploader: manager.NewUploader(s3Client),
		config:   cfg,
	}, nil
}

// Info reports how many captures the bucket holds and the span of their
// upload times. Objects that are not captures are ignored.
func (c *Client) Info(ctx context.Context) (*models.ArchiveInfo, error) {
	bucketName := c.config.BucketName

	locationResp, err := c.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket location: %w", err)
	}

	region := string(locationResp.LocationConstraint)
	if region == "" {
		region = c.config.Region
	}

	var count, totalSize int64
	var oldest, newest time.Time

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if !utils.IsCapture(aws.ToString(obj.Key)) {
				continue
			}
			count++
			totalSize += aws.ToInt64(obj.Size)
			if obj.LastModified == nil {
				continue
			}
			if oldest.IsZero() || obj.LastModified.Before(oldest) {
				oldest = *obj.LastModified
			}
			if obj.LastModified.After(newest) {
				newest = *obj.LastModified
			}
		}
	}

	info := &models.ArchiveInfo{
		BucketName:     bucketName,
		Region:         region,
		CaptureCount:   count,
		TotalSizeBytes: totalSize,
		TotalSizeHuman: utils.FormatBytes(totalSize),
		APIEndpoint:    c.config.ApiURL,
	}
	if count > 0 {
		info.OldestCapture = utils.FormatTime(oldest)
		info.NewestCapture = utils.FormatTime(newest)
	}
	return info, nil
}

// Prune deletes archived captures and capture bundles under folder that were
// uploaded more than daysOld days ago. With dryRun nothing is deleted.
func (c *Client) Prune(ctx context.Context, folder string, daysOld int, dryRun bool) (*models.PruneResult, error) {
	if daysOld < 0 {
		return nil, fmt.Errorf("days must not be negative: %d", daysOld)
	}

	bucketName := c.config.BucketName
	cutoffDate := time.Now().AddDate(0, 0, -daysOld)

	prefix := folder
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}

	var toDelete []types.ObjectIdentifier
	var deletedFiles []string
	var totalSize int64

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !prunable(key) || obj.LastModified == nil || !obj.LastModified.Before(cutoffDate) {
				continue
			}
			toDelete = append(toDelete, types.ObjectIdentifier{Key: obj.Key})
			deletedFiles = append(deletedFiles, key)
			totalSize += aws.ToInt64(obj.Size)
		}
	}

	deletedCount := len(toDelete)
	if !dryRun {
		deletedCount = 0
		for _, batch := range batches(toDelete, deleteBatchSize) {
			_, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucketName),
				Delete: &types.Delete{Objects: batch},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to delete objects batch: %w", err)
			}
			deletedCount += len(batch)
		}
	}

	return &models.PruneResult{
		BucketName:     bucketName,
		Folder:         folder,
		DaysOld:        daysOld,
		DryRun:         dryRun,
		DeletedFiles:   deletedFiles,
		DeletedCount:   deletedCount,
		TotalSizeBytes: totalSize,
		TotalSizeHuman: utils.FormatBytes(totalSize),
		OperationTime:  utils.FormatTime(time.Now()),
		CutoffDate:     utils.FormatTime(cutoffDate),
	}, nil
}

// UploadCaptures uploads files under destination. With bundle the files are
// first packed into one zip. Every object carries the BLAKE3 digest of its
// content in its metadata.
func (c *Client) UploadCaptures(ctx context.Context, files []string, destination string, bundle, dryRun bool) (*models.UploadResult, error) {
	startTime := time.Now()

	if err := utils.ValidatePaths(files); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	result := &models.UploadResult{
		BucketName:      c.config.BucketName,
		DestinationPath: destination,
		OperationTime:   utils.FormatTime(startTime),
		DryRun:          dryRun,
	}

	sources := files
	if bundle {
		archivePath := filepath.Join(os.TempDir(), utils.GenerateArchiveName(startTime, ".zip"))
		archived, err := utils.CreateArchive(files, archivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
		defer utils.CleanupTempFile(archivePath)
		slog.Debug("Capture bundle created",
			"path", archivePath,
			"files", len(files),
			"size", utils.FormatBytes(archived.CompressedSize),
			"ratio", archived.CompressionRatio)

		result.ArchiveCreated = true
		result.ArchivePath = archivePath
		sources = []string{archivePath}
	}

	for _, path := range sources {
		item, err := c.uploadFile(ctx, path, destination, dryRun)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", path, err)
		}
		if bundle {
			item.LocalPath = strings.Join(files, ", ")
			item.IsArchived = true
		}
		result.Items = append(result.Items, *item)
		result.TotalSizeBytes += item.Size
	}

	result.TotalFiles = len(result.Items)
	result.TotalSizeHuman = utils.FormatBytes(result.TotalSizeBytes)
	result.UploadDuration = time.Since(startTime).String()
	return result, nil
}

func (c *Client) uploadFile(ctx context.Context, localPath, destination string, dryRun bool) (*models.UploadItem, error) {
	checksum, err := utils.FileChecksum(localPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	item := &models.UploadItem{
		LocalPath:  localPath,
		RemotePath: RemoteKey(destination, filepath.Base(localPath)),
		Size:       info.Size(),
		Checksum:   checksum,
	}
	if dryRun {
		return item, nil
	}

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(item.RemotePath),
		Body:        file,
		ContentType: aws.String(ContentType(localPath)),
		Metadata:    map[string]string{ChecksumMetadataKey: checksum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return item, nil
}

// RemoteKey joins destination and filename into an object key.
func RemoteKey(destination, filename string) string {
	destination = strings.TrimPrefix(destination, "/")
	if destination == "" {
		return filename
	}
	if !strings.HasSuffix(destination, "/") {
		destination += "/"
	}
	return destination + filename
}

var contentTypes = map[string]string{
	".dng":  "image/x-adobe-dng",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".json": "application/json",
	".zip":  "application/zip",
}

func ContentType(filename string) string {
	if contentType, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

func prunable(key string) bool {
	return utils.IsCapture(key) || strings.EqualFold(filepath.Ext(key), ".zip")
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
