package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"pktremote/internal/models"
)

// CaptureExtensions lists the file types written by camera sessions.
var CaptureExtensions = []string{".dng", ".jpg"}

func IsCapture(path string) bool {
	return slices.Contains(CaptureExtensions, strings.ToLower(filepath.Ext(path)))
}

// ListCaptures returns the capture files directly inside dir, sorted by name.
// Capture names embed their timestamp, so the order is chronological. A
// missing directory holds no captures.
func ListCaptures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read capture directory %s: %w", dir, err)
	}

	var captures []string
	for _, entry := range entries {
		if entry.IsDir() || !IsCapture(entry.Name()) {
			continue
		}
		captures = append(captures, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(captures)
	return captures, nil
}

// ExpandCaptures replaces every directory in paths with the captures it
// holds. Plain files are kept whatever their extension.
func ExpandCaptures(paths []string) ([]string, error) {
	if err := ValidatePaths(paths); err != nil {
		return nil, err
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		captures, err := ListCaptures(path)
		if err != nil {
			return nil, err
		}
		files = append(files, captures...)
	}
	return files, nil
}

// CreateArchive packs the given files into a zip at outputPath. Entries are
// stored under their base name.
func CreateArchive(files []string, outputPath string) (*models.ArchiveBundle, error) {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	zipWriter := zip.NewWriter(outFile)
	defer zipWriter.Close()

	var originalSize int64
	createdAt := time.Now()

	for _, path := range files {
		size, err := addToArchive(zipWriter, path)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
		originalSize += size
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	fileInfo, err := outFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive info: %w", err)
	}
	compressedSize := fileInfo.Size()

	compressionRatio := 0.0
	if originalSize > 0 {
		compressionRatio = float64(compressedSize) / float64(originalSize)
	}

	return &models.ArchiveBundle{
		ArchivePath:      outputPath,
		OriginalPaths:    files,
		CompressedSize:   compressedSize,
		OriginalSize:     originalSize,
		CompressionRatio: compressionRatio,
		CreatedAt:        createdAt,
	}, nil
}

func addToArchive(zipWriter *zip.Writer, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = filepath.ToSlash(filepath.Base(path))
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(writer, file)
}

// GenerateArchiveName names a capture bundle after the time it was made.
func GenerateArchiveName(t time.Time, extension string) string {
	return fmt.Sprintf("pktriggercord_%s%s", t.Format("20060102_150405"), extension)
}

func ValidatePaths(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("path does not exist: %s", path)
			}
			return fmt.Errorf("cannot access path %s: %w", path, err)
		}
	}
	return nil
}

func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to cleanup temporary file %s: %w", path, err)
	}
	return nil
}
