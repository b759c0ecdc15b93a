package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/kpauljoseph/deckdrill/pkg/models"
)

// UploadFile sends a file for server-side chunking. The server answers with the
// number of chunks the client must then request one by one.
func (c *Client) UploadFile(ctx context.Context, deckID, filename string, content io.Reader) (*UploadResult, error) {
	const op = "upload file"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("deck_id", deckID); err != nil {
		return nil, fmt.Errorf("%s: failed to write form: %w", op, err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to write form: %w", op, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: failed to finish form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/import/upload-file", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		FileID      models.ID `json:"file_id"`
		TotalChunks *int      `json:"total_chunks"`
	}
	if err := c.send(op, req, &resp); err != nil {
		return nil, err
	}
	if resp.FileID == "" {
		return nil, &DataShapeError{Op: op, Field: "file_id"}
	}
	if resp.TotalChunks == nil || *resp.TotalChunks < 0 {
		return nil, &DataShapeError{Op: op, Field: "total_chunks"}
	}
	return &UploadResult{FileID: string(resp.FileID), TotalChunks: *resp.TotalChunks}, nil
}

func (c *Client) ProcessChunk(ctx context.Context, deckID, fileID string, index int) (*ChunkResult, error) {
	body := map[string]interface{}{
		"file_id":     fileID,
		"chunk_index": index,
		"deck_id":     deckID,
	}
	var resp ChunkResult
	if err := c.doJSON(ctx, "process chunk", http.MethodPost, "/import/process-chunk", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcessText turns free text into flashcards. batchID groups the requests of
// one import run.
func (c *Client) ProcessText(ctx context.Context, deckID, text, batchID string) (int, error) {
	body := map[string]string{
		"deck_id":  deckID,
		"text":     text,
		"batch_id": batchID,
	}
	var resp struct {
		FlashcardsCreated int `json:"flashcards_created"`
	}
	if err := c.doJSON(ctx, "process text", http.MethodPost, "/import/process-text", body, &resp); err != nil {
		return 0, err
	}
	return resp.FlashcardsCreated, nil
}
