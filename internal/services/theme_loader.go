package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/repository"
)

const maxThemeDocumentSize = 4 << 20

// RawTheme is an undecoded theme document and where it came from
type RawTheme struct {
	Data   []byte
	Format models.DocumentFormat
	Origin string
}

// ThemeLoader fetches theme documents by name.
// A missing document is reported with an error wrapping models.ErrThemeNotFound.
type ThemeLoader interface {
	Fetch(ctx context.Context, name string) (*RawTheme, error)
	Kind() string
}

// ThemeFileName is the conventional document name of a theme
func ThemeFileName(name string, format models.DocumentFormat) string {
	return name + "-theme." + string(format)
}

// HTTPAuth configures optional authentication of theme fetches.
// A static Token wins over client credentials.
type HTTPAuth struct {
	Token        string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// HTTPLoader fetches {baseURL}/{name}-theme.json
type HTTPLoader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLoader creates a loader for baseURL. When auth carries credentials the
// client attaches an OAuth2 bearer token to every request.
func NewHTTPLoader(ctx context.Context, baseURL string, auth HTTPAuth, timeout time.Duration) *HTTPLoader {
	client := &http.Client{Timeout: timeout}

	switch {
	case auth.Token != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token}))
		client.Timeout = timeout
	case auth.TokenURL != "" && auth.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
			Scopes:       auth.Scopes,
		}
		client = cc.Client(ctx)
		client.Timeout = timeout
	}

	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Kind identifies the loader in logs and metrics
func (l *HTTPLoader) Kind() string { return "http" }

// Fetch downloads the theme document
func (l *HTTPLoader) Fetch(ctx context.Context, name string) (*RawTheme, error) {
	url := l.baseURL + "/" + ThemeFileName(name, models.FormatJSON)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", url, models.ErrThemeNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThemeDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxThemeDocumentSize {
		return nil, fmt.Errorf("read %s: document exceeds %d bytes", url, maxThemeDocumentSize)
	}

	return &RawTheme{Data: data, Format: formatFromContentType(resp.Header.Get("Content-Type")), Origin: url}, nil
}

func formatFromContentType(contentType string) models.DocumentFormat {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch {
	case strings.HasSuffix(mediaType, "json"):
		return models.FormatJSON
	case strings.HasSuffix(mediaType, "yaml"), strings.HasSuffix(mediaType, "yml"):
		return models.FormatYAML
	}
	return ""
}

// FileLoader reads {dir}/{name}-theme.{json,yaml,yml}
type FileLoader struct {
	dir string
}

// NewFileLoader creates a loader over dir
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// Kind identifies the loader in logs and metrics
func (l *FileLoader) Kind() string { return "file" }

// Dir returns the directory the loader reads from
func (l *FileLoader) Dir() string { return l.dir }

// Fetch reads the first existing document for name
func (l *FileLoader) Fetch(ctx context.Context, name string) (*RawTheme, error) {
	for _, ext := range []string{"json", "yaml", "yml"} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(l.dir, name+"-theme."+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return &RawTheme{Data: data, Format: models.FormatFromExtension(ext), Origin: path}, nil
	}
	return nil, fmt.Errorf("theme %s in %s: %w", name, l.dir, models.ErrThemeNotFound)
}

// ThemeNameFromPath extracts the theme name from a document file name.
// It reports false for files that are not theme documents.
func ThemeNameFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if models.FormatFromExtension(ext) == "" {
		return "", false
	}
	name, ok := strings.CutSuffix(strings.TrimSuffix(base, ext), "-theme")
	if !ok || models.ValidateThemeName(name) != nil {
		return "", false
	}
	return name, true
}

// RepositoryLoader reads theme documents stored in the database
type RepositoryLoader struct {
	repo repository.ThemeDocumentRepository
}

// NewRepositoryLoader creates a loader over repo
func NewRepositoryLoader(repo repository.ThemeDocumentRepository) *RepositoryLoader {
	return &RepositoryLoader{repo: repo}
}

// Kind identifies the loader in logs and metrics
func (l *RepositoryLoader) Kind() string { return "db" }

// Fetch reads the stored document
func (l *RepositoryLoader) Fetch(ctx context.Context, name string) (*RawTheme, error) {
	stored, err := l.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RawTheme{Data: []byte(stored.Document), Format: stored.Format, Origin: "db:" + name}, nil
}

// ChainLoader tries loaders in order and falls through only on missing documents
type ChainLoader struct {
	loaders []ThemeLoader
}

// NewChainLoader creates a loader over loaders
func NewChainLoader(loaders ...ThemeLoader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

// Kind identifies the loader in logs and metrics
func (l *ChainLoader) Kind() string {
	kinds := make([]string, len(l.loaders))
	for i, ld := range l.loaders {
		kinds[i] = ld.Kind()
	}
	return strings.Join(kinds, "+")
}

// Loaders returns the chained loaders
func (l *ChainLoader) Loaders() []ThemeLoader {
	return l.loaders
}

// Fetch returns the first document found
func (l *ChainLoader) Fetch(ctx context.Context, name string) (*RawTheme, error) {
	for _, ld := range l.loaders {
		raw, err := ld.Fetch(ctx, name)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, models.ErrThemeNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("theme %s: %w", name, models.ErrThemeNotFound)
}
