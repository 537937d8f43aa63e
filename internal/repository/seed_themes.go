package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/themeflow/server/internal/models"
)

//go:embed themes/*-theme.json
var systemThemes embed.FS

// SystemThemeNames returns the names of the builtin theme documents
func SystemThemeNames() []string {
	entries, err := systemThemes.ReadDir("themes")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), "-theme.json"))
	}
	return names
}

// SystemThemeDocument returns the raw builtin document for name
func SystemThemeDocument(name string) ([]byte, error) {
	return systemThemes.ReadFile(path.Join("themes", name+"-theme.json"))
}

// SeedSystemThemes stores the builtin theme documents if they don't exist
func SeedSystemThemes(ctx context.Context, repo ThemeDocumentRepository) error {
	for _, name := range SystemThemeNames() {
		// Check if theme already exists
		existing, err := repo.GetByName(ctx, name)
		if err == nil && existing != nil {
			continue
		}
		if err != nil && !errors.Is(err, models.ErrThemeNotFound) {
			return err
		}

		data, err := SystemThemeDocument(name)
		if err != nil {
			return fmt.Errorf("read builtin theme %s: %w", name, err)
		}

		if err := repo.Upsert(ctx, &models.StoredTheme{
			Name:     name,
			Format:   models.FormatJSON,
			Document: string(data),
			IsSystem: true,
		}); err != nil {
			return fmt.Errorf("seed theme %s: %w", name, err)
		}
	}

	return nil
}
