package i18n

import (
	"context"
	"embed"
	"io/fs"
	"os"
)

// Source yields the raw JSON dictionary for one language.
type Source interface {
	Load(ctx context.Context, lang Language) ([]byte, error)
}

//go:embed locales/*.json
var embeddedLocales embed.FS

// fsSource reads "<lang>.json" from a filesystem.
type fsSource struct {
	fsys fs.FS
}

// Embedded returns the dictionaries compiled into the binary.
func Embedded() Source {
	sub, err := fs.Sub(embeddedLocales, "locales")
	if err != nil {
		// Only possible if the embed pattern above changes.
		panic(err)
	}
	return fsSource{fsys: sub}
}

// Dir reads dictionaries from a directory on disk.
func Dir(path string) Source {
	return fsSource{fsys: os.DirFS(path)}
}

func (s fsSource) Load(_ context.Context, lang Language) ([]byte, error) {
	return fs.ReadFile(s.fsys, string(lang)+".json")
}
