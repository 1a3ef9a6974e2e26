package mixfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the displayable identity of an audio asset.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Format string
}

// Describe reads the embedded tags of an audio asset. Assets without
// tags fall back to the bare filename as the title.
func Describe(uri string) (Metadata, error) {
	path := strings.TrimPrefix(uri, "file://")

	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{Title: fallback}, nil
	}

	md := Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Format: string(m.Format()),
	}
	if md.Title == "" {
		md.Title = fallback
	}
	return md, nil
}
