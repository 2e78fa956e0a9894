package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{DataRoot: "/srv/data"})

	assert.Equal(t, "/srv/data/.sync/sync.db", p.GetDatabasePath())
	assert.Equal(t, "/srv/data/beancount", p.GetExportDir())
	assert.Equal(t, "/srv/data/beancount/accounts.beancount", p.GetAccountsFilePath())
	assert.Equal(t, "/srv/data/ledger-mapping.yaml", p.GetMappingFilePath())
}

func TestNewOverrides(t *testing.T) {
	p := New(Config{DataRoot: "/srv/data", DatabasePath: "/var/lib/sync.db", ExportDir: "/srv/books"})

	assert.Equal(t, "/var/lib/sync.db", p.GetDatabasePath())
	assert.Equal(t, "/srv/books/main.beancount", p.GetMainFilePath())
}

func TestGetMonthFilePath(t *testing.T) {
	p := New(Config{DataRoot: "/srv/data"})

	tests := []struct {
		yearMonth string
		want      string
		wantErr   bool
	}{
		{"2024-01", "/srv/data/beancount/2024/2024-01.beancount", false},
		{"2024-1", "", true},
		{"24-01", "", true},
		{"2024-01-05", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.yearMonth, func(t *testing.T) {
			got, err := p.GetMonthFilePath(tt.yearMonth)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := New(Config{DataRoot: root})

	file := filepath.Join(root, "a", "b", "c.txt")
	require.NoError(t, p.EnsureParentDir(file))
	assert.True(t, p.FileExists(filepath.Join(root, "a", "b")))
	assert.False(t, p.FileExists(file))
}
