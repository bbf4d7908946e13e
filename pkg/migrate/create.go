package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const versionLayout = "20060102150405"

// CreateOptions tune the generated file.
type CreateOptions struct {
	// NoTransaction marks the migration for statements Postgres refuses to
	// run inside a transaction, such as CREATE INDEX CONCURRENTLY.
	NoTransaction bool
}

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
func CreateSQLMigration(dir, name string, opts CreateOptions) (string, error) {
	return createSQLMigration(dir, name, opts, time.Now())
}

func createSQLMigration(dir, name string, opts CreateOptions, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextFreeVersion(dir, now.UTC())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, version+"_"+slug+".sql")
	if err := os.WriteFile(path, []byte(migrationTemplate(slug, opts)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// slugify folds Turkish letters to ASCII and joins words with underscores,
// so "Müşteri İndeksi" becomes "musteri_indeksi".
func slugify(name string) string {
	name = strings.NewReplacer("ı", "i", "İ", "I").Replace(name)
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(words, "_")
}

// nextFreeVersion bumps the timestamp one second at a time until no
// existing migration in dir uses it.
func nextFreeVersion(dir string, at time.Time) (string, error) {
	for i := 0; i < 60; i++ {
		version := at.Add(time.Duration(i) * time.Second).Format(versionLayout)
		taken, err := filepath.Glob(filepath.Join(dir, version+"_*.sql"))
		if err != nil {
			return "", fmt.Errorf("scan %q: %w", dir, err)
		}
		if len(taken) == 0 {
			return version, nil
		}
	}
	return "", fmt.Errorf("no free migration version near %s", at.Format(versionLayout))
}

func migrationTemplate(slug string, opts CreateOptions) string {
	var b strings.Builder
	if opts.NoTransaction {
		b.WriteString("-- +goose NO TRANSACTION\n")
	}
	fmt.Fprintf(&b, "-- +goose Up\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n", slug)
	fmt.Fprintf(&b, "-- +goose Down\n-- +goose StatementBegin\n-- revert %s\n-- +goose StatementEnd\n", slug)
	return b.String()
}
