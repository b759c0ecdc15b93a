package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

const DefaultMaxPages = 300

var ErrTooManyPages = errors.New("pdf has too many pages")

type PageSize struct {
	Width  float64
	Height float64
}

// Info is what pdfcpu can tell about a file without rendering it.
type Info struct {
	Path  string
	Pages int
	Sizes []PageSize
}

type PageText struct {
	PageNum int
	Text    string
}

// Processor validates PDFs and pulls their text out page by page.
type Processor struct {
	maxPages int
	logger   *logger.Logger
}

func NewProcessor(maxPages int, log *logger.Logger) *Processor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Processor{
		maxPages: maxPages,
		logger:   log,
	}
}

func (p *Processor) Inspect(pdfPath string) (*Info, error) {
	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %s: %w", pdfPath, err)
	}

	info := &Info{Path: pdfPath, Pages: len(dims)}
	for _, d := range dims {
		info.Sizes = append(info.Sizes, PageSize{Width: d.Width, Height: d.Height})
	}
	return info, nil
}

// ExtractText returns the non-blank pages of pdfPath. Page numbers are 1-based.
func (p *Processor) ExtractText(ctx context.Context, pdfPath string) ([]PageText, error) {
	info, err := p.Inspect(pdfPath)
	if err != nil {
		return nil, err
	}
	if info.Pages > p.maxPages {
		return nil, fmt.Errorf("%w: %s has %d pages, limit is %d", ErrTooManyPages, pdfPath, info.Pages, p.maxPages)
	}

	p.logger.Debug("Extracting text from %s (%d pages)", pdfPath, info.Pages)

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []PageText

	//Page numbers are zero indexed in the fitz package.
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			text, err := doc.Text(pageNum)
			if err != nil {
				p.logger.Warn("Couldn't extract text from page %d of %s: %v", pageNum+1, pdfPath, err)
				continue
			}

			text = strings.TrimSpace(text)
			if text == "" {
				p.logger.Trace("Page %d is blank", pageNum+1)
				continue
			}

			pages = append(pages, PageText{PageNum: pageNum + 1, Text: text})
		}
	}

	p.logger.Debug("Found text on %d of %d pages", len(pages), info.Pages)
	return pages, nil
}

// JoinPages glues page text together with paragraph breaks.
func JoinPages(pages []PageText) string {
	parts := make([]string, 0, len(pages))
	for _, pg := range pages {
		parts = append(parts, pg.Text)
	}
	return strings.Join(parts, "\n\n")
}
