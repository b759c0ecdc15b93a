package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kpauljoseph/deckdrill/internal/pdf"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/utils"
)

// import_preview shows what an import would send to the server without
// contacting it: page sizes, extracted text and the chunks it is cut into.
func main() {
	pdfPath := flag.String("file", "", "Path to PDF file")
	chunkSize := flag.Int("chunk-size", pdf.DefaultChunkSize, "characters per chunk")
	maxPages := flag.Int("max-pages", pdf.DefaultMaxPages, "refuse documents with more pages")
	showText := flag.Bool("text", false, "print the text of every page")
	flag.Parse()

	if *pdfPath == "" {
		fmt.Println("Please provide a PDF file path using -file flag")
		os.Exit(1)
	}

	fmt.Printf("Analyzing PDF: %s\n", *pdfPath)

	processor := pdf.NewProcessor(*maxPages, logger.New(logger.WithPrefix("[import_preview] ")))

	info, err := processor.Inspect(*pdfPath)
	if err != nil {
		fmt.Printf("Error getting page dimensions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pages: %d\n", info.Pages)
	for i, dim := range info.Sizes {
		fmt.Printf("Page %d: %.3f x %.3f points\n", i+1, dim.Width, dim.Height)
	}

	pages, err := processor.ExtractText(context.Background(), *pdfPath)
	if err != nil {
		fmt.Printf("Error extracting text: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nPages with text: %d of %d\n", len(pages), info.Pages)
	if *showText {
		for _, p := range pages {
			fmt.Printf("\n--- Page %d ---\n%s\n", p.PageNum, p.Text)
		}
	}

	chunks := pdf.NewChunker(*chunkSize).Split(pdf.JoinPages(pages))
	seen := make(map[string]int)
	fmt.Printf("\nChunks (%d characters max): %d\n", *chunkSize, len(chunks))
	for i, chunk := range chunks {
		hash := utils.ContentHash(chunk)
		dup := ""
		if first, ok := seen[hash]; ok {
			dup = fmt.Sprintf(" (duplicate of chunk %d, skipped on import)", first)
		} else {
			seen[hash] = i + 1
		}
		fmt.Printf("Chunk %d: %d characters, hash %s%s\n", i+1, len([]rune(chunk)), hash[:12], dup)
	}
}
