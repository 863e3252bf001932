package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileSource is the subset of Service the downloader needs.
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

// DownloadOptions controls how files are pulled from Google Drive.
// FolderPath is resolved from the drive root when FolderID is empty.
type DownloadOptions struct {
	FolderID    string
	FolderPath  string
	DownloadDir string
}

// Downloader copies sales sheets from a Drive folder to local disk.
type Downloader struct {
	source FileSource
}

func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// DownloadFolder downloads all CSV and XLSX files of the folder into
// DownloadDir and returns their local paths in listing order.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	folderID := opts.FolderID
	if folderID == "" {
		if strings.Trim(opts.FolderPath, "/ ") == "" {
			return nil, fmt.Errorf("folder id or folder path is required")
		}
		resolved, err := d.source.FindFolderByPath(ctx, opts.FolderPath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", opts.FolderPath).Str("folder_id", resolved).Msg("resolved drive folder")
		folderID = resolved
	}

	files, err := d.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isSalesSheet(f.Name) {
			log.Debug().Str("file", f.Name).Msg("skipping non sales sheet")
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(f.Name))
		if err := d.downloadTo(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) downloadTo(ctx context.Context, fileID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if err := d.source.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		_ = os.Remove(localPath)
		return err
	}
	return out.Close()
}

func isSalesSheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
