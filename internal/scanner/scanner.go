package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

type Kind int

const (
	KindPDF Kind = iota
	KindText
	KindCSV
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindText:
		return "text"
	case KindCSV:
		return "csv"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var ErrNoFiles = errors.New("no importable files found")

var extensions = map[string]Kind{
	".pdf": KindPDF,
	".txt": KindText,
	".md":  KindText,
	".csv": KindCSV,
}

type File struct {
	Path    string
	RelPath string
	Kind    Kind
}

// KindOf reports the import kind for path by extension.
func KindOf(path string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

type DirectoryScanner struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *DirectoryScanner {
	if log == nil {
		log = logger.Discard()
	}
	return &DirectoryScanner{logger: log}
}

// FindImportable walks dir and returns the files an import can handle, sorted
// by path. Hidden directories are skipped.
func (s *DirectoryScanner) FindImportable(ctx context.Context, dir string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			s.logger.Debug("Scanning directory: %s", path)
			return nil
		}

		kind, ok := KindOf(path)
		if !ok {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		s.logger.Trace("Found %s file: %s", kind, relPath)
		files = append(files, File{Path: path, RelPath: relPath, Kind: kind})
		return nil
	})

	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s or its subdirectories", ErrNoFiles, dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	s.logger.Debug("Found %d importable files in %s", len(files), dir)
	return files, nil
}
