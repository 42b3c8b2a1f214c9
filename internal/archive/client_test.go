package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pktremote/config"
)

func TestRemoteKey(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		filename    string
		expected    string
	}{
		{"No destination", "", "a.dng", "a.dng"},
		{"Folder", "captures", "a.dng", "captures/a.dng"},
		{"Trailing slash", "captures/", "a.dng", "captures/a.dng"},
		{"Leading slash", "/captures/2024", "a.dng", "captures/2024/a.dng"},
		{"Root only", "/", "a.dng", "a.dng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemoteKey(tt.destination, tt.filename); got != tt.expected {
				t.Errorf("RemoteKey(%q, %q) = %s, want %s", tt.destination, tt.filename, got, tt.expected)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"pktriggercord_20240601_120000.dng": "image/x-adobe-dng",
		"PREVIEW.JPG":                       "image/jpeg",
		"bundle.zip":                        "application/zip",
		"unknown.bin":                       "application/octet-stream",
	}
	for filename, expected := range tests {
		if got := ContentType(filename); got != expected {
			t.Errorf("ContentType(%s) = %s, want %s", filename, got, expected)
		}
	}
}

func TestPrunable(t *testing.T) {
	tests := map[string]bool{
		"captures/a.dng":    true,
		"captures/a.jpg":    true,
		"captures/b.zip":    true,
		"captures/notes.md": false,
		"captures/":         false,
	}
	for key, expected := range tests {
		if got := prunable(key); got != expected {
			t.Errorf("prunable(%s) = %v, want %v", key, got, expected)
		}
	}
}

func TestBatches(t *testing.T) {
	items := make([]int, 2500)
	got := batches(items, deleteBatchSize)
	if len(got) != 3 || len(got[0]) != 1000 || len(got[1]) != 1000 || len(got[2]) != 500 {
		t.Errorf("batches() sizes = %d batches, want 1000/1000/500", len(got))
	}
	if len(batches([]int(nil), deleteBatchSize)) != 0 {
		t.Error("batches() of nothing should be empty")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Region: "us-east-1"})
	if !errors.Is(err, ErrNoBucket) {
		t.Errorf("New() error = %v, want %v", err, ErrNoBucket)
	}
}

func TestUploadCapturesDryRun(t *testing.T) {
	cfg := &config.Config{BucketName: "captures", Region: "us-east-1", ApiURL: "http://127.0.0.1:1"}
	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	capture := filepath.Join(t.TempDir(), "pktriggercord_20240601_120000.dng")
	if err := os.WriteFile(capture, []byte("raw sensor data"), 0644); err != nil {
		t.Fatalf("Failed to create capture: %v", err)
	}

	result, err := client.UploadCaptures(context.Background(), []string{capture}, "captures/2024", false, true)
	if err != nil {
		t.Fatalf("UploadCaptures() error = %v", err)
	}
	if !result.DryRun || result.TotalFiles != 1 || result.TotalSizeBytes != 15 {
		t.Errorf("result = %+v, want one 15 byte dry run item", result)
	}
	item := result.Items[0]
	if item.RemotePath != "captures/2024/pktriggercord_20240601_120000.dng" {
		t.Errorf("RemotePath = %s", item.RemotePath)
	}
	if len(item.Checksum) != 64 {
		t.Errorf("Checksum = %q, want 64 hex characters", item.Checksum)
	}
}

// Integration tests below need a real S3 endpoint and are skipped by default.
// Set S3_INTEGRATION_TEST=true to run them.

func integrationClient(t *testing.T) (*Client, *config.Config) {
	t.Helper()
	if os.Getenv("S3_INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test; set S3_INTEGRATION_TEST=true to run")
	}

	cfg := &config.Config{
		BucketName: os.Getenv("TEST_BUCKET_NAME"),
		Region:     os.Getenv("TEST_REGION"),
		ApiURL:     os.Getenv("TEST_API_URL"),
		AccessKey:  os.Getenv("TEST_ACCESS_KEY"),
		SecretKey:  os.Getenv("TEST_SECRET_KEY"),
	}
	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, cfg
}

func TestInfo(t *testing.T) {
	client, cfg := integrationClient(t)

	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.BucketName != cfg.BucketName {
		t.Errorf("BucketName = %s, want %s", info.BucketName, cfg.BucketName)
	}
}

func TestPrune(t *testing.T) {
	client, cfg := integrationClient(t)

	result, err := client.Prune(context.Background(), "test", 30, true)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.BucketName != cfg.BucketName {
		t.Errorf("BucketName = %s, want %s", result.BucketName, cfg.BucketName)
	}
	if result.Folder != "test" || result.DaysOld != 30 || !result.DryRun {
		t.Errorf("result = %+v, want dry run of test/ older than 30 days", result)
	}
}

func TestUploadCaptures(t *testing.T) {
	client, cfg := integrationClient(t)

	dir := t.TempDir()
	content := []byte("test content for capture upload")
	capture := filepath.Join(dir, "pktriggercord_20240601_120000.dng")
	if err := os.WriteFile(capture, content, 0644); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}

	destination := "test-" + time.Now().Format("20060102-150405")
	result, err := client.UploadCaptures(context.Background(), []string{capture}, destination, false, false)
	if err != nil {
		t.Fatalf("UploadCaptures() error = %v", err)
	}
	if result.BucketName != cfg.BucketName {
		t.Errorf("BucketName = %s, want %s", result.BucketName, cfg.BucketName)
	}
	if result.TotalFiles != 1 || result.TotalSizeBytes != int64(len(content)) {
		t.Errorf("result = %d files, %d bytes, want 1 file, %d bytes", result.TotalFiles, result.TotalSizeBytes, len(content))
	}
}
