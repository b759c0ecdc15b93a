package pdf

import (
	"context"
)

// TextSource turns a document into page text for import.
type TextSource interface {
	Inspect(pdfPath string) (*Info, error)
	ExtractText(ctx context.Context, pdfPath string) ([]PageText, error)
}
