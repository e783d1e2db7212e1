package schema

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^(\d+)_[a-z0-9_]+\.(up|down)\.sql$`)

func migrationFiles(t *testing.T) []string {
	t.Helper()
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names, "No .sql migration files embedded")
	return names
}

// TestMigrationsNotEmpty ensures that all migration .sql files are not empty.
// This is a basic sanity check to catch accidental empty files.
func TestMigrationsNotEmpty(t *testing.T) {
	for _, name := range migrationFiles(t) {
		content, err := fs.ReadFile(FS, name)
		require.NoError(t, err, "Failed to read migration file: %s", name)
		require.NotEmpty(t, strings.TrimSpace(string(content)), "Migration file is empty: %s", name)
	}
}

// TestMigrationFileNames ensures every migration follows golang-migrate's
// NNN_description.{up,down}.sql convention and comes in pairs.
func TestMigrationFileNames(t *testing.T) {
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range migrationFiles(t) {
		m := migrationName.FindStringSubmatch(name)
		require.NotNil(t, m, "File name %q does not match NNN_description.{up,down}.sql", name)
		if m[2] == "up" {
			ups[m[1]] = true
		} else {
			downs[m[1]] = true
		}
	}
	require.Equal(t, ups, downs, "every up migration needs a down migration")
}
