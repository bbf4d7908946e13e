package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Add Match Index!":          "add_match_index",
		"Müşteri İndeksi":           "musteri_indeksi",
		"  ılçe / şehir  kolonları": "ilce_sehir_kolonlari",
		"2026 ğüncelleme":           "2026_guncelleme",
		"!!!":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), in)
	}
}

func TestCreateSQLMigrationBumpsTakenVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first, err := createSQLMigration(dir, "add notes", CreateOptions{}, at)
	require.NoError(t, err)
	second, err := createSQLMigration(dir, "add more notes", CreateOptions{}, at)
	require.NoError(t, err)

	assert.Equal(t, "20260504100000_add_notes.sql", filepath.Base(first))
	assert.Equal(t, "20260504100001_add_more_notes.sql", filepath.Base(second))
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationNoTransaction(t *testing.T) {
	dir := t.TempDir()
	path, err := createSQLMigration(dir, "concurrent index", CreateOptions{NoTransaction: true}, time.Now())
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- +goose NO TRANSACTION\n"))
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := createSQLMigration(t.TempDir(), " ?? ", CreateOptions{}, time.Now())
	assert.Error(t, err)
	_, err = createSQLMigration("", "x", CreateOptions{}, time.Now())
	assert.Error(t, err)
}
