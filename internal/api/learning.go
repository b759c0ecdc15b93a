package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

func (c *Client) LearningPath(ctx context.Context, deckID string) ([]LearningStep, error) {
	const op = "load learning path"

	var resp struct {
		Steps json.RawMessage `json:"steps"`
	}
	if err := c.doJSON(ctx, op, http.MethodGet, "/learning/api/path/"+url.PathEscape(deckID), nil, &resp); err != nil {
		return nil, err
	}
	if !isArray(resp.Steps) {
		return nil, &DataShapeError{Op: op, Field: "steps"}
	}
	var steps []LearningStep
	if err := json.Unmarshal(resp.Steps, &steps); err != nil {
		return nil, &DataShapeError{Op: op, Field: "steps", Err: err}
	}
	return steps, nil
}

// GenerateContent asks the server to produce (or return cached) study material
// for a content step.
func (c *Client) GenerateContent(ctx context.Context, stepID string) (string, error) {
	const op = "generate content"

	var resp struct {
		Content *string `json:"content"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/learning/api/generate/"+url.PathEscape(stepID), nil, &resp); err != nil {
		return "", err
	}
	if resp.Content == nil {
		return "", &DataShapeError{Op: op, Field: "content"}
	}
	return *resp.Content, nil
}

func (c *Client) Quiz(ctx context.Context, stepID string) ([]QuizQuestion, error) {
	const op = "load quiz"

	var resp struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := c.doJSON(ctx, op, http.MethodGet, "/learning/api/quiz/"+url.PathEscape(stepID), nil, &resp); err != nil {
		return nil, err
	}
	if !isArray(resp.Questions) {
		return nil, &DataShapeError{Op: op, Field: "questions"}
	}
	var questions []QuizQuestion
	if err := json.Unmarshal(resp.Questions, &questions); err != nil {
		return nil, &DataShapeError{Op: op, Field: "questions", Err: err}
	}
	return questions, nil
}

// SubmitQuiz reports a finished quiz and returns whether the step is passed.
func (c *Client) SubmitQuiz(ctx context.Context, stepID string, correct, total int) (bool, error) {
	var resp struct {
		Passed bool `json:"passed"`
	}
	body := map[string]int{"correct": correct, "total": total}
	path := "/learning/api/quiz/" + url.PathEscape(stepID) + "/submit"
	if err := c.doJSON(ctx, "submit quiz", http.MethodPost, path, body, &resp); err != nil {
		return false, err
	}
	return resp.Passed, nil
}
