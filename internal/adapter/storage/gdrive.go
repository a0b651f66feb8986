package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/semmidev/oraexport/internal/config"
)

const gdriveChunkSize = 32 * 1024 * 1024

type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(ctx context.Context, cfg *config.UploadTarget) (*GDriveStorage, error) {
	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

// Upload is resumable, in chunks, which large dumps need.
func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(file, googleapi.ChunkSize(gdriveChunkSize)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", g.folderID)

	files, err := g.find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", g.folderID, escapeQuery(remoteName))

	files, err := g.find(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	// Drive allows duplicate names in one folder; remove them all.
	for _, file := range files {
		if err := g.service.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

func (g *GDriveStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false and createdTime < '%s'",
		g.folderID,
		cutoffTime.UTC().Format(time.RFC3339))

	files, err := g.find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list old files: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}

func (g *GDriveStorage) find(ctx context.Context, query string) ([]*drive.File, error) {
	var files []*drive.File
	err := g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, createdTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	return files, err
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
