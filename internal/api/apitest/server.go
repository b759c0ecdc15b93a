// Package apitest runs an in-memory study server for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

// Route names accepted by Fail and Calls.
const (
	RouteStudy          = "study"
	RouteProgress       = "update_progress"
	RouteDueCount       = "due_count"
	RouteDeleteCard     = "delete_card"
	RouteListDecks      = "list_decks"
	RouteCreateDeck     = "create_deck"
	RouteRenameDeck     = "rename_deck"
	RouteDeleteDeck     = "delete_deck"
	RouteBulkDeleteDeck = "bulk_delete_decks"
	RouteListCards      = "list_cards"
	RouteCreateCard     = "create_card"
	RouteEditCard       = "edit_card"
	RouteBulkMove       = "bulk_move"
	RouteBulkDeleteCard = "bulk_delete_cards"
	RouteUpload         = "upload_file"
	RouteChunk          = "process_chunk"
	RouteText           = "process_text"
	RoutePath           = "learning_path"
	RouteGenerate       = "generate"
	RouteQuiz           = "quiz"
	RouteQuizSubmit     = "quiz_submit"
	RouteStatsOverview  = "stats_overview"
	RouteStatsDeck      = "stats_deck"
)

// UploadChunkBytes is how many uploaded bytes make one server-side chunk.
const UploadChunkBytes = 100

type failure struct {
	status int
	body   string
	once   bool
}

type upload struct {
	deckID string
	name   string
	chunks int
}

type ProgressCall struct {
	CardID    string
	IsCorrect bool
	At        time.Time
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int
	decks     map[string]*models.Deck
	deckOrder []string
	cards     map[string]*models.Card
	cardOrder []string
	failures  map[string]failure
	calls     map[string]int
	progress  []ProgressCall
	uploads   map[string]upload
	texts     []string
	batches   map[string]int
	steps     map[string][]api.LearningStep
	quizzes   map[string][]api.QuizQuestion
	now       func() time.Time
}

func New() *Server {
	s := &Server{
		decks:    make(map[string]*models.Deck),
		cards:    make(map[string]*models.Card),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
		uploads:  make(map[string]upload),
		batches:  make(map[string]int),
		steps:    make(map[string][]api.LearningStep),
		quizzes:  make(map[string][]api.QuizQuestion),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /deck/study/{deckId}", RouteStudy, s.study)
	s.handle(mux, "POST /flashcard/update_progress", RouteProgress, s.updateProgress)
	s.handle(mux, "DELETE /flashcard/delete/{id}", RouteDeleteCard, s.deleteCard)
	s.handle(mux, "GET /deck/api/list", RouteListDecks, s.listDecks)
	s.handle(mux, "POST /deck/create", RouteCreateDeck, s.createDeck)
	s.handle(mux, "POST /deck/rename/{id}", RouteRenameDeck, s.renameDeck)
	s.handle(mux, "DELETE /deck/delete/{id}", RouteDeleteDeck, s.deleteDeck)
	s.handle(mux, "POST /deck/bulk-delete", RouteBulkDeleteDeck, s.bulkDeleteDecks)
	mux.HandleFunc("GET /deck/api/{first}/{second}", s.deckAPI)
	s.handle(mux, "POST /flashcard/create", RouteCreateCard, s.createCard)
	s.handle(mux, "POST /flashcard/edit/{id}", RouteEditCard, s.editCard)
	s.handle(mux, "POST /flashcard/bulk-move", RouteBulkMove, s.bulkMove)
	s.handle(mux, "POST /flashcard/bulk-delete", RouteBulkDeleteCard, s.bulkDeleteCards)
	s.handle(mux, "POST /import/upload-file", RouteUpload, s.uploadFile)
	s.handle(mux, "POST /import/process-chunk", RouteChunk, s.processChunk)
	s.handle(mux, "POST /import/process-text", RouteText, s.processText)
	s.handle(mux, "GET /learning/api/path/{deckId}", RoutePath, s.learningPath)
	s.handle(mux, "POST /learning/api/generate/{stepId}", RouteGenerate, s.generate)
	s.handle(mux, "GET /learning/api/quiz/{stepId}", RouteQuiz, s.quiz)
	s.handle(mux, "POST /learning/api/quiz/{stepId}/submit", RouteQuizSubmit, s.submitQuiz)
	s.handle(mux, "GET /stats/api/overview", RouteStatsOverview, s.statsOverview)
	s.handle(mux, "GET /stats/api/deck/{deckId}", RouteStatsDeck, s.deckStats)

	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) handle(mux *http.ServeMux, pattern, route string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, s.wrap(route, h))
}

// deckAPI serves /deck/api/due-count/{deckId} and /deck/api/{deckId}/flashcards.
// ServeMux cannot hold both patterns since neither is more specific.
func (s *Server) deckAPI(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "due-count":
		r.SetPathValue("deckId", second)
		s.wrap(RouteDueCount, s.dueCount)(w, r)
	case second == "flashcards":
		r.SetPathValue("deckId", first)
		s.wrap(RouteListCards, s.listCards)(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		f, failing := s.failures[route]
		if failing && f.once {
			delete(s.failures, route)
		}
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		h(w, r)
	}
}

// Fail makes every request to route answer with status and body until Recover.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// FailOnce fails only the next request to route.
func (s *Server) FailOnce(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body, once: true}
}

func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Progress() []ProgressCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressCall(nil), s.progress...)
}

func (s *Server) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Batches returns how many process-text requests each batch id sent.
func (s *Server) Batches() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.batches))
	for k, v := range s.batches {
		out[k] = v
	}
	return out
}

func (s *Server) AddDeck(name string) models.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addDeckLocked(name)
}

func (s *Server) addDeckLocked(name string) *models.Deck {
	s.nextID++
	d := &models.Deck{ID: fmt.Sprintf("d%d", s.nextID), Name: name}
	s.decks[d.ID] = d
	s.deckOrder = append(s.deckOrder, d.ID)
	return d
}

// AddCard stores c in deckID. An empty ID is assigned.
func (s *Server) AddCard(deckID string, c models.Card) models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addCardLocked(deckID, c)
}

func (s *Server) addCardLocked(deckID string, c models.Card) *models.Card {
	if c.ID == "" {
		s.nextID++
		c.ID = fmt.Sprintf("c%d", s.nextID)
	}
	c.DeckID = deckID
	if c.IncorrectAnswers == nil {
		c.IncorrectAnswers = []string{}
	}
	s.cards[c.ID] = &c
	s.cardOrder = append(s.cardOrder, c.ID)
	return &c
}

// AddCards adds n generated cards, all in the given state.
func (s *Server) AddCards(deckID string, n int, state models.CardState) []models.Card {
	out := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.AddCard(deckID, models.Card{
			Question:         fmt.Sprintf("question %d", i+1),
			CorrectAnswer:    fmt.Sprintf("answer %d", i+1),
			IncorrectAnswers: []string{"wrong a", "wrong b", "wrong c"},
			State:            state,
		}))
	}
	return out
}

func (s *Server) Card(id string) (models.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return models.Card{}, false
	}
	return *c, true
}

func (s *Server) Deck(id string) (models.Deck, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[id]
	if !ok {
		return models.Deck{}, false
	}
	return *d, true
}

func (s *Server) CardsIn(deckID string) []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardsInLocked(deckID)
}

func (s *Server) cardsInLocked(deckID string) []models.Card {
	var out []models.Card
	for _, id := range s.cardOrder {
		if c, ok := s.cards[id]; ok && c.DeckID == deckID {
			out = append(out, *c)
		}
	}
	return out
}

func (s *Server) SetLearningPath(deckID string, steps []api.LearningStep, quizzes map[string][]api.QuizQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[deckID] = steps
	for stepID, qs := range quizzes {
		s.quizzes[stepID] = qs
	}
}

func (s *Server) isDue(c *models.Card) bool {
	return c.DueDate == nil || !c.DueDate.After(s.now())
}

func (s *Server) study(w http.ResponseWriter, r *http.Request) {
	deckID := r.PathValue("deckId")
	dueOnly, _ := strconv.ParseBool(r.URL.Query().Get("due_only"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	s.mu.Lock()
	if _, ok := s.decks[deckID]; !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "deck not found"})
		return
	}
	var eligible []models.Card
	for _, c := range s.cardsInLocked(deckID) {
		c := c
		if dueOnly && !s.isDue(&c) {
			continue
		}
		eligible = append(eligible, c)
	}
	s.mu.Unlock()

	total := len(eligible)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	pageCards := eligible[start:end]
	if pageCards == nil {
		pageCards = []models.Card{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flashcards": pageCards,
		"pagination": map[string]int{"total_pages": totalPages, "per_page": perPage, "page": page},
		"total":      total,
	})
}

func (s *Server) updateProgress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FlashcardID string `json:"flashcard_id"`
		IsCorrect   bool   `json:"is_correct"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[body.FlashcardID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "flashcard not found"})
		return
	}

	now := s.now()
	var retrievability float64
	var due time.Time
	if body.IsCorrect {
		switch c.State {
		case models.StateNew, models.StateForgotten:
			c.State = models.StateLearning
		case models.StateLearning:
			c.State = models.StateMastered
		}
		retrievability = 0.9
		due = now.Add(24 * time.Hour)
	} else {
		c.State = models.StateForgotten
		retrievability = 0.4
		due = now.Add(10 * time.Minute)
	}
	c.Retrievability = &retrievability
	c.DueDate = &due
	s.progress = append(s.progress, ProgressCall{CardID: c.ID, IsCorrect: body.IsCorrect, At: now})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"state":          c.State,
		"retrievability": retrievability,
		"due_date":       due,
	})
}

func (s *Server) dueCount(w http.ResponseWriter, r *http.Request) {
	deckID := r.PathValue("deckId")
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.cardOrder {
		if c := s.cards[id]; c != nil && c.DeckID == deckID && s.isDue(c) {
			n++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "due_count": n})
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "flashcard not found"})
		return
	}
	delete(s.cards, id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decks := []models.Deck{}
	for _, id := range s.deckOrder {
		d, ok := s.decks[id]
		if !ok {
			continue
		}
		out := *d
		for _, c := range s.cardsInLocked(id) {
			c := c
			out.CardCount++
			if s.isDue(&c) {
				out.DueCount++
			}
		}
		decks = append(decks, out)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "decks": decks})
}

func (s *Server) createDeck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decks {
		if strings.EqualFold(d.Name, body.Name) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "a deck with that name already exists"})
			return
		}
	}
	d := s.addDeckLocked(body.Name)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deck": d})
}

func (s *Server) renameDeck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "deck not found"})
		return
	}
	d.Name = body.Name
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) deleteDeckLocked(id string) bool {
	if _, ok := s.decks[id]; !ok {
		return false
	}
	delete(s.decks, id)
	for cid, c := range s.cards {
		if c.DeckID == id {
			delete(s.cards, cid)
		}
	}
	return true
}

func (s *Server) deleteDeck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deleteDeckLocked(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "deck not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) bulkDeleteDecks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeckIDs []string `json:"deck_ids"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range body.DeckIDs {
		if s.deleteDeckLocked(id) {
			deleted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := s.cardsInLocked(r.PathValue("deckId"))
	if cards == nil {
		cards = []models.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "flashcards": cards})
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var in models.CardInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[in.DeckID]; !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "deck not found"})
		return
	}
	c := s.addCardLocked(in.DeckID, in.Card())
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "flashcard": c})
}

func (s *Server) editCard(w http.ResponseWriter, r *http.Request) {
	var in models.CardInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "flashcard not found"})
		return
	}
	c.Question = in.Question
	c.CorrectAnswer = in.CorrectAnswer
	c.IncorrectAnswers = in.IncorrectAnswers
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "flashcard": c})
}

func (s *Server) bulkMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FlashcardIDs []string `json:"flashcard_ids"`
		TargetDeckID string   `json:"target_deck_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[body.TargetDeckID]; !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "target deck not found"})
		return
	}
	moved := 0
	for _, id := range body.FlashcardIDs {
		if c, ok := s.cards[id]; ok {
			c.DeckID = body.TargetDeckID
			moved++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "moved": moved})
}

func (s *Server) bulkDeleteCards(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FlashcardIDs []string `json:"flashcard_ids"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range body.FlashcardIDs {
		if _, ok := s.cards[id]; ok {
			delete(s.cards, id)
			deleted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing file"})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "unreadable file"})
		return
	}
	if len(content) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "file is empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	fileID := fmt.Sprintf("f%d", s.nextID)
	chunks := (len(content) + UploadChunkBytes - 1) / UploadChunkBytes
	s.uploads[fileID] = upload{deckID: r.FormValue("deck_id"), name: header.Filename, chunks: chunks}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "file_id": fileID, "total_chunks": chunks})
}

func (s *Server) processChunk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileID     string `json:"file_id"`
		ChunkIndex int    `json:"chunk_index"`
		DeckID     string `json:"deck_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.uploads[body.FileID]
	if !ok || body.ChunkIndex < 0 || body.ChunkIndex >= up.chunks {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "unknown chunk"})
		return
	}
	s.addCardLocked(up.deckID, models.Card{
		Question:      fmt.Sprintf("%s part %d", up.name, body.ChunkIndex+1),
		CorrectAnswer: "imported",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"flashcards_created": 1,
		"is_last":            body.ChunkIndex == up.chunks-1,
	})
}

func (s *Server) processText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeckID  string `json:"deck_id"`
		Text    string `json:"text"`
		BatchID string `json:"batch_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "text is empty"})
		return
	}
	s.texts = append(s.texts, body.Text)
	s.batches[body.BatchID]++
	s.addCardLocked(body.DeckID, models.Card{Question: firstLine(body.Text), CorrectAnswer: "imported"})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "flashcards_created": 1})
}

func (s *Server) learningPath(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps, ok := s.steps[r.PathValue("deckId")]
	if !ok {
		steps = []api.LearningStep{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "steps": steps})
}

func (s *Server) findStepLocked(stepID string) *api.LearningStep {
	for deckID := range s.steps {
		for i := range s.steps[deckID] {
			if s.steps[deckID][i].ID == stepID {
				return &s.steps[deckID][i]
			}
		}
	}
	return nil
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.findStepLocked(r.PathValue("stepId"))
	if step == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "step not found"})
		return
	}
	if step.Kind == api.StepKindContent {
		step.Completed = true
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "content": "Generated content for " + step.Title})
}

func (s *Server) quiz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs, ok := s.quizzes[r.PathValue("stepId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "quiz not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "questions": qs})
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Correct int `json:"correct"`
		Total   int `json:"total"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.findStepLocked(r.PathValue("stepId"))
	if step == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "step not found"})
		return
	}
	passed := body.Total > 0 && body.Correct*10 >= body.Total*7
	if passed {
		step.Completed = true
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "passed": passed})
}

func (s *Server) statsFor(deckID string) api.Stats {
	var stats api.Stats
	ids := make(map[string]bool)
	for _, id := range s.cardOrder {
		c, ok := s.cards[id]
		if !ok || (deckID != "" && c.DeckID != deckID) {
			continue
		}
		ids[id] = true
		stats.TotalCards++
		if s.isDue(c) {
			stats.DueToday++
		}
		switch c.State {
		case models.StateNew:
			stats.StateCounts.New++
		case models.StateLearning:
			stats.StateCounts.Learning++
		case models.StateMastered:
			stats.StateCounts.Mastered++
		case models.StateForgotten:
			stats.StateCounts.Forgotten++
		}
	}

	byDay := make(map[string]*api.DailyReviews)
	var days []string
	for _, p := range s.progress {
		if deckID != "" && !ids[p.CardID] {
			continue
		}
		day := p.At.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &api.DailyReviews{Date: day}
			byDay[day] = d
			days = append(days, day)
		}
		d.Total++
		if p.IsCorrect {
			d.Correct++
		}
	}
	stats.Reviews = []api.DailyReviews{}
	for _, day := range days {
		stats.Reviews = append(stats.Reviews, *byDay[day])
	}
	return stats
}

func (s *Server) statsOverview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.statsFor("")
	s.mu.Unlock()
	writeStats(w, stats)
}

func (s *Server) deckStats(w http.ResponseWriter, r *http.Request) {
	deckID := r.PathValue("deckId")
	s.mu.Lock()
	_, ok := s.decks[deckID]
	stats := s.statsFor(deckID)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "deck not found"})
		return
	}
	writeStats(w, stats)
}

func writeStats(w http.ResponseWriter, stats api.Stats) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"total_cards":  stats.TotalCards,
		"due_today":    stats.DueToday,
		"state_counts": stats.StateCounts,
		"reviews":      stats.Reviews,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
