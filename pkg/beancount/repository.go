package beancount

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/verenigingen/eboekhouden-sync/pkg/pathutil"
)

// Repository stores the exported ledger as Beancount files.
type Repository interface {
	// WriteMonthFile replaces a monthly file with the given transactions
	WriteMonthFile(yearMonth string, transactions []string) error

	// ReadMonthFile returns a monthly file, or "" when it was never written
	ReadMonthFile(yearMonth string) (string, error)

	// ListMonths lists the exported months in order
	ListMonths() ([]string, error)

	// WriteAccounts replaces the accounts file with open directives
	WriteAccounts(openDate string, accounts []string, currency string) error

	// WriteMain writes the entry file including accounts and monthly files
	WriteMain(title, currency string) error
}

// FileSystemRepository writes one file per month under a year directory,
// next to accounts.beancount and main.beancount.
type FileSystemRepository struct {
	pathResolver *pathutil.PathResolver
	now          func() time.Time
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(pathResolver *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{
		pathResolver: pathResolver,
		now:          time.Now,
	}
}

// WriteMonthFile overwrites a monthly file. Exports are regenerated from the
// database, so nothing from a previous run is kept.
func (r *FileSystemRepository) WriteMonthFile(yearMonth string, transactions []string) error {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return fmt.Errorf("failed to get month file path: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s\n; Generated at %s\n\n", yearMonth, r.now().Format(time.RFC3339))
	for _, txn := range transactions {
		sb.WriteString(strings.TrimRight(txn, "\n"))
		sb.WriteString("\n\n")
	}

	return r.writeFile(filePath, sb.String())
}

func (r *FileSystemRepository) ReadMonthFile(yearMonth string) (string, error) {
	filePath, err := r.pathResolver.GetMonthFilePath(yearMonth)
	if err != nil {
		return "", fmt.Errorf("failed to get month file path: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", yearMonth, err)
	}
	return string(data), nil
}

// ListMonths returns the YYYY-MM keys of all monthly files on disk.
func (r *FileSystemRepository) ListMonths() ([]string, error) {
	pattern := filepath.Join(r.pathResolver.GetExportDir(), "[0-9][0-9][0-9][0-9]", "*.beancount")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list month files: %w", err)
	}

	months := make([]string, 0, len(paths))
	for _, p := range paths {
		month := strings.TrimSuffix(filepath.Base(p), ".beancount")
		if _, err := time.Parse("2006-01", month); err != nil {
			continue
		}
		months = append(months, month)
	}
	sort.Strings(months)
	return months, nil
}

// WriteAccounts replaces the accounts file with one open directive per account.
func (r *FileSystemRepository) WriteAccounts(openDate string, accounts []string, currency string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; Accounts\n; Generated at %s\n\n", r.now().Format(time.RFC3339))
	for _, account := range accounts {
		fmt.Fprintf(&sb, "%s open %s %s\n", openDate, account, currency)
	}
	return r.writeFile(r.pathResolver.GetAccountsFilePath(), sb.String())
}

// WriteMain writes the entry file with an include per monthly file on disk,
// so months exported by earlier runs stay part of the ledger.
func (r *FileSystemRepository) WriteMain(title, currency string) error {
	months, err := r.ListMonths()
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "option \"title\" %s\noption \"operating_currency\" %q\n\n", quote(title), currency)
	sb.WriteString("include \"accounts.beancount\"\n")
	for _, month := range months {
		fmt.Fprintf(&sb, "include %q\n", month[:4]+"/"+month+".beancount")
	}
	return r.writeFile(r.pathResolver.GetMainFilePath(), sb.String())
}

func (r *FileSystemRepository) writeFile(filePath, content string) error {
	if err := r.pathResolver.EnsureParentDir(filePath); err != nil {
		return fmt.Errorf("failed to ensure parent directory: %w", err)
	}

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
