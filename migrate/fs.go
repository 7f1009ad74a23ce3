package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// FromFS builds a migration list from the .sql files in dir of fsys,
// ordered by filename. The filename, minus the .sql suffix and any numeric
// ordering prefix, becomes the description.
//
// Works with an embedded filesystem or os.DirFS:
//
//	//go:embed migrations/*.sql
//	var migrationsFS embed.FS
//
//	migrations, err := migrate.FromFS(migrationsFS, "migrations")
//
// Filename order is version order, so prefixes must sort correctly
// ("001_..." through "999_...") and files must never be renumbered once
// applied anywhere.
func FromFS(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Description: descriptionFromFilename(name),
			SQL:         string(data),
		})
	}
	return migrations, nil
}

// descriptionFromFilename strips the .sql suffix and a leading numeric
// prefix. "003_add_index.sql" -> "add_index".
func descriptionFromFilename(name string) string {
	base := strings.TrimSuffix(name, ".sql")
	if i := strings.Index(base, "_"); i > 0 {
		if _, err := strconv.Atoi(base[:i]); err == nil {
			return base[i+1:]
		}
	}
	return base
}
