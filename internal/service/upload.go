package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// sqliteMagic is the 16-byte header every SQLite database file starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// ErrNotSQLite is returned when an uploaded file does not carry the SQLite
// file header.
var ErrNotSQLite = errors.New("file is not a SQLite database")

// UploadService turns uploaded SQLite files into queryable connections.
type UploadService struct {
	uploadDir   string
	connections *ConnectionService
}

// NewUploadService creates a new upload service
func NewUploadService(uploadDir string, connections *ConnectionService) *UploadService {
	// Ensure upload directory exists
	os.MkdirAll(uploadDir, 0o755)
	return &UploadService{uploadDir: uploadDir, connections: connections}
}

// SaveSQLite persists an uploaded database file and registers it as a
// SQLite connection named after the original file. The stored copy gets a
// generated name to avoid collisions between uploads.
func (s *UploadService) SaveSQLite(ctx context.Context, originalName string, file io.Reader) (*domain.ConnectionInfo, error) {
	ext := strings.ToLower(filepath.Ext(originalName))

	// Reject files that do not carry the SQLite header before anything is
	// written; a corrupt upload must not become a connection.
	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(file, header); err != nil || !bytes.Equal(header, sqliteMagic) {
		return nil, ErrNotSQLite
	}

	uniqueName := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	destPath := filepath.Join(s.uploadDir, uniqueName)

	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(header); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		absPath = destPath
	}

	name := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if name == "" {
		name = "uploaded-database"
	}

	info, err := s.connections.Create(ctx, domain.ConnectionCreate{
		Name:         name,
		DatabaseType: domain.DatabaseTypeSQLite,
		Database:     absPath,
	})
	if err != nil {
		os.Remove(destPath)
		return nil, err
	}

	return info, nil
}
