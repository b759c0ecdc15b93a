package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/pdf"
	"github.com/kpauljoseph/deckdrill/internal/scanner"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/utils"
)

const DefaultConcurrency = 2

var (
	ErrEmptyText = errors.New("nothing to import")
	ErrNoText    = errors.New("no text found in document")
)

// API is the import half of the study server client.
type API interface {
	UploadFile(ctx context.Context, deckID, filename string, content io.Reader) (*api.UploadResult, error)
	ProcessChunk(ctx context.Context, deckID, fileID string, index int) (*api.ChunkResult, error)
	ProcessText(ctx context.Context, deckID, text, batchID string) (int, error)
}

// Progress is reported after every processed chunk.
type Progress struct {
	File              string
	Done              int
	Total             int
	FlashcardsCreated int
}

type Options struct {
	ChunkSize   int
	Concurrency int
	MaxPDFPages int
	// Progress may be called from several goroutines, one call at a time.
	Progress func(Progress)
	// Documents replaces the default PDF reader.
	Documents pdf.TextSource
}

type Importer struct {
	api         API
	chunker     *pdf.Chunker
	documents   pdf.TextSource
	scanner     *scanner.DirectoryScanner
	concurrency int
	progress    func(Progress)
	progressMu  sync.Mutex
	logger      *logger.Logger
}

func New(client API, opts Options, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	docs := opts.Documents
	if docs == nil {
		docs = pdf.NewProcessor(opts.MaxPDFPages, log)
	}
	return &Importer{
		api:         client,
		chunker:     pdf.NewChunker(opts.ChunkSize),
		documents:   docs,
		scanner:     scanner.New(log),
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		logger:      log,
	}
}

func (im *Importer) report(p Progress) {
	if im.progress == nil {
		return
	}
	im.progressMu.Lock()
	defer im.progressMu.Unlock()
	im.progress(p)
}

// ImportFile uploads path and has the server process it chunk by chunk. Chunks
// go one at a time and in order; the server builds cards from them in sequence.
func (im *Importer) ImportFile(ctx context.Context, deckID, path string) (*Report, error) {
	report := newReport()
	defer report.finish()

	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	up, err := im.api.UploadFile(ctx, deckID, name, f)
	if err != nil {
		return report, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	im.logger.Info("Uploaded %s: %d chunks to process", name, up.TotalChunks)

	for i := 0; i < up.TotalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := im.api.ProcessChunk(ctx, deckID, up.FileID, i)
		if err != nil {
			return report, fmt.Errorf("failed to process chunk %d of %s: %w", i+1, name, err)
		}
		report.Chunks++
		report.FlashcardsCreated += res.FlashcardsCreated
		im.logger.Debug("Chunk %d/%d of %s: %d flashcards", i+1, up.TotalChunks, name, res.FlashcardsCreated)
		im.report(Progress{File: name, Done: i + 1, Total: up.TotalChunks, FlashcardsCreated: report.FlashcardsCreated})

		if res.IsLast {
			break
		}
	}

	report.Files = 1
	return report, nil
}

// ImportText splits text into chunks and sends each distinct chunk once. All
// requests of one call share a batch id.
func (im *Importer) ImportText(ctx context.Context, deckID, name, text string) (*Report, error) {
	report := newReport()
	defer report.finish()

	var chunks []string
	seen := make(map[string]struct{})
	for _, c := range im.chunker.Split(text) {
		h := utils.ContentHash(c)
		if _, dup := seen[h]; dup {
			report.Skipped++
			continue
		}
		seen[h] = struct{}{}
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return report, ErrEmptyText
	}

	batchID := uuid.NewString()
	im.logger.Info("Importing %s as %d chunks (batch %s, %d duplicates skipped)", name, len(chunks), batchID, report.Skipped)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			created, err := im.api.ProcessText(gctx, deckID, chunk, batchID)
			if err != nil {
				return fmt.Errorf("failed to process chunk %d of %s: %w", i+1, name, err)
			}

			mu.Lock()
			report.Chunks++
			report.FlashcardsCreated += created
			p := Progress{File: name, Done: report.Chunks, Total: len(chunks), FlashcardsCreated: report.FlashcardsCreated}
			mu.Unlock()

			im.logger.Trace("Chunk %d of %s: %d flashcards", i+1, name, created)
			im.report(p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Files = 1
	return report, nil
}

// ImportPDF pulls the text out of a PDF and imports it.
func (im *Importer) ImportPDF(ctx context.Context, deckID, path string) (*Report, error) {
	pages, err := im.documents.ExtractText(ctx, path)
	if err != nil {
		r := newReport()
		r.finish()
		return r, err
	}
	if len(pages) == 0 {
		r := newReport()
		r.finish()
		return r, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return im.ImportText(ctx, deckID, filepath.Base(path), pdf.JoinPages(pages))
}

// ImportDir imports every supported file under dir. A failing file is recorded
// and the run moves on; only cancellation stops it early.
func (im *Importer) ImportDir(ctx context.Context, deckID, dir string) (*Report, error) {
	report := newReport()
	defer report.finish()

	files, err := im.scanner.FindImportable(ctx, dir)
	if err != nil {
		return report, err
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		im.logger.Info("Importing (%d/%d): %s", i+1, len(files), f.RelPath)

		var r *Report
		switch f.Kind {
		case scanner.KindPDF:
			r, err = im.ImportPDF(ctx, deckID, f.Path)
		case scanner.KindText:
			r, err = im.importTextFile(ctx, deckID, f.Path)
		default:
			r, err = im.ImportFile(ctx, deckID, f.Path)
		}
		report.merge(r)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			im.logger.Error("Error importing %s: %v", f.RelPath, err)
			report.Failed = append(report.Failed, FileError{Path: f.RelPath, Err: err})
		}
	}

	return report, nil
}

func (im *Importer) importTextFile(ctx context.Context, deckID, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		r := newReport()
		r.finish()
		return r, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return im.ImportText(ctx, deckID, filepath.Base(path), string(data))
}

// Report sums up an import run.
type Report struct {
	Files             int
	Chunks            int
	FlashcardsCreated int
	Skipped           int
	Failed            []FileError
	StartTime         time.Time
	EndTime           time.Time
}

type FileError struct {
	Path string
	Err  error
}

func newReport() *Report {
	return &Report{StartTime: time.Now()}
}

func (r *Report) finish() {
	r.EndTime = time.Now()
}

func (r *Report) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *Report) merge(o *Report) {
	if o == nil {
		return
	}
	r.Files += o.Files
	r.Chunks += o.Chunks
	r.FlashcardsCreated += o.FlashcardsCreated
	r.Skipped += o.Skipped
	r.Failed = append(r.Failed, o.Failed...)
}

// Print writes the report through log, one line per figure.
func (r *Report) Print(log *logger.Logger) {
	log.Info("Import complete:")
	log.Info("- Files processed: %d", r.Files)
	log.Info("- Chunks sent: %d", r.Chunks)
	log.Info("- Flashcards created: %d", r.FlashcardsCreated)
	if r.Skipped > 0 {
		log.Info("- Duplicate chunks skipped: %d", r.Skipped)
	}
	for _, f := range r.Failed {
		log.Warn("- Failed: %s: %v", f.Path, f.Err)
	}
	log.Info("- Time taken: %s", r.Duration().Round(time.Millisecond))
}
