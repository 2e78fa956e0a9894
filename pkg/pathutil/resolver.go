// Package pathutil provides centralized path management for the database and
// Beancount export files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for the database, mapping files and exports.
type PathResolver struct {
	dataRoot     string
	databasePath string
	exportDir    string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataRoot is the root directory for local state (e.g., ~/vereniging/eboekhouden)
	DataRoot string
	// DatabasePath is the path to the SQLite database file
	DatabasePath string
	// ExportDir is the root directory of the Beancount export
	ExportDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {DataRoot}/.sync/sync.db
// If ExportDir is empty, it defaults to {DataRoot}/beancount
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataRoot, ".sync", "sync.db")
	}

	exportDir := config.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(config.DataRoot, "beancount")
	}

	return &PathResolver{
		dataRoot:     config.DataRoot,
		databasePath: dbPath,
		exportDir:    exportDir,
	}
}

// GetDataRoot returns the data root directory.
func (p *PathResolver) GetDataRoot() string {
	return p.dataRoot
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetExportDir returns the Beancount export directory.
func (p *PathResolver) GetExportDir() string {
	return p.exportDir
}

// GetMappingFilePath returns the default ledger mapping file path.
// Example: ./data/ledger-mapping.yaml
func (p *PathResolver) GetMappingFilePath() string {
	return filepath.Join(p.dataRoot, "ledger-mapping.yaml")
}

// GetAccountsFilePath returns the file holding the account open directives.
func (p *PathResolver) GetAccountsFilePath() string {
	return filepath.Join(p.exportDir, "accounts.beancount")
}

// GetMainFilePath returns the Beancount entry file that includes the others.
func (p *PathResolver) GetMainFilePath() string {
	return filepath.Join(p.exportDir, "main.beancount")
}

// GetYearDir returns the export directory path for a year.
// Example: ./data/beancount/2024
func (p *PathResolver) GetYearDir(year string) string {
	return filepath.Join(p.exportDir, year)
}

// GetMonthFilePath returns the export file path for a month.
// yearMonth should be in YYYY-MM format.
// Example: ./data/beancount/2024/2024-01.beancount
func (p *PathResolver) GetMonthFilePath(yearMonth string) (string, error) {
	parts := strings.Split(yearMonth, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid year-month format: %s. Expected YYYY-MM", yearMonth)
	}

	year := parts[0]
	yearDir := p.GetYearDir(year)
	filename := fmt.Sprintf("%s.beancount", yearMonth)

	return filepath.Join(yearDir, filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
