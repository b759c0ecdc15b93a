package api

import (
	"encoding/json"
	"time"

	"github.com/kpauljoseph/deckdrill/pkg/models"
)

type StudyPage struct {
	Cards      []models.Card
	Total      int
	TotalPages int
	PerPage    int
	Page       int
}

// ProgressUpdate is the server's authoritative view of a card after an answer.
type ProgressUpdate struct {
	State          models.CardState
	Retrievability *float64
	DueDate        *time.Time
}

type UploadResult struct {
	FileID      string `json:"file_id"`
	TotalChunks int    `json:"total_chunks"`
}

type ChunkResult struct {
	FlashcardsCreated int  `json:"flashcards_created"`
	IsLast            bool `json:"is_last"`
}

type LearningStep struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	Completed bool   `json:"completed"`
}

func (s *LearningStep) UnmarshalJSON(data []byte) error {
	type plain LearningStep
	aux := struct {
		*plain
		ID models.ID `json:"id"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.ID = string(aux.ID)
	return nil
}

const (
	StepKindContent = "content"
	StepKindQuiz    = "quiz"
)

type QuizQuestion struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (q *QuizQuestion) UnmarshalJSON(data []byte) error {
	type plain QuizQuestion
	aux := struct {
		*plain
		ID models.ID `json:"id"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q.ID = string(aux.ID)
	return nil
}

type StateCounts struct {
	New       int `json:"new"`
	Learning  int `json:"learning"`
	Mastered  int `json:"mastered"`
	Forgotten int `json:"forgotten"`
}

func (s StateCounts) Total() int {
	return s.New + s.Learning + s.Mastered + s.Forgotten
}

type DailyReviews struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Correct int    `json:"correct"`
}

// Accuracy is zero for a day without reviews.
func (d DailyReviews) Accuracy() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Correct) / float64(d.Total)
}

type Stats struct {
	TotalCards  int            `json:"total_cards"`
	DueToday    int            `json:"due_today"`
	StateCounts StateCounts    `json:"state_counts"`
	Reviews     []DailyReviews `json:"reviews"`
}
