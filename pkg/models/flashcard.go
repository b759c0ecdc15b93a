package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CardState mirrors the server's scheduling state. The client never computes it.
type CardState int

const (
	StateNew CardState = iota
	StateLearning
	StateMastered
	StateForgotten
)

// MinIncorrectAnswers is what the editors ask for; the study core copes with fewer.
const MinIncorrectAnswers = 3

func (s CardState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateMastered:
		return "mastered"
	case StateForgotten:
		return "forgotten"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Card struct {
	ID               string     `json:"id"`
	DeckID           string     `json:"deck_id,omitempty"`
	Question         string     `json:"question"`
	CorrectAnswer    string     `json:"correct_answer"`
	IncorrectAnswers []string   `json:"incorrect_answers"`
	State            CardState  `json:"state"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Retrievability   *float64   `json:"retrievability,omitempty"`

	unparsedDueDate string
}

// UnmarshalJSON accepts numeric ids and the common due date layouts. A due date
// in any other layout is dropped; UnparsedDueDate keeps it for logging.
func (c *Card) UnmarshalJSON(data []byte) error {
	type plain Card
	aux := struct {
		*plain
		ID      ID              `json:"id"`
		DeckID  ID              `json:"deck_id"`
		DueDate json.RawMessage `json:"due_date"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ID = string(aux.ID)
	c.DeckID = string(aux.DeckID)
	c.DueDate, c.unparsedDueDate = DecodeTime(aux.DueDate)
	return nil
}

// UnparsedDueDate is the due date text the server sent when it could not be read.
func (c Card) UnparsedDueDate() string {
	return c.unparsedDueDate
}

// Options returns every answer choice, correct one first. Callers shuffle.
func (c Card) Options() []string {
	opts := make([]string, 0, len(c.IncorrectAnswers)+1)
	opts = append(opts, c.CorrectAnswer)
	return append(opts, c.IncorrectAnswers...)
}

// Validate reports problems an editor should fix before saving. A short list of
// incorrect answers is reported but is not fatal to studying.
func (c Card) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.Question) == "" {
		problems = append(problems, "question is empty")
	}
	if strings.TrimSpace(c.CorrectAnswer) == "" {
		problems = append(problems, "correct answer is empty")
	}
	if len(c.IncorrectAnswers) < MinIncorrectAnswers {
		problems = append(problems, fmt.Sprintf("only %d incorrect answers, at least %d recommended",
			len(c.IncorrectAnswers), MinIncorrectAnswers))
	}
	for _, a := range c.IncorrectAnswers {
		if a == c.CorrectAnswer {
			problems = append(problems, fmt.Sprintf("incorrect answer %q duplicates the correct answer", a))
		}
	}
	return problems
}

type Deck struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CardCount int    `json:"card_count"`
	DueCount  int    `json:"due_count"`
}

func (d *Deck) UnmarshalJSON(data []byte) error {
	type plain Deck
	aux := struct {
		*plain
		ID ID `json:"id"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.ID = string(aux.ID)
	return nil
}

// CardInput is the editable part of a card, used for create and edit.
type CardInput struct {
	DeckID           string   `json:"deck_id"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (in CardInput) Card() Card {
	return Card{
		DeckID:           in.DeckID,
		Question:         in.Question,
		CorrectAnswer:    in.CorrectAnswer,
		IncorrectAnswers: in.IncorrectAnswers,
	}
}
