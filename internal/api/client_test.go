package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/api/apitest"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

func apiTestLogger() *logger.Logger {
	log := logger.New(
		logger.WithOutput(GinkgoWriter),
		logger.WithPrefix("[api-test] "),
		logger.WithFlags(0),
	)
	log.SetLevel(logger.LevelTrace)
	return log
}

var _ = Describe("Client", func() {
	var (
		server *apitest.Server
		client *api.Client
		ctx    context.Context
		deck   models.Deck
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		server = apitest.New()
		client, err = api.New(api.Options{BaseURL: server.URL + "/", Logger: apiTestLogger()})
		Expect(err).NotTo(HaveOccurred())
		deck = server.AddDeck("Biology")
	})

	AfterEach(func() {
		server.Close()
	})

	It("should require a base URL", func() {
		_, err := api.New(api.Options{BaseURL: "  "})
		Expect(err).To(HaveOccurred())
	})

	Context("study pages", func() {
		BeforeEach(func() {
			server.AddCards(deck.ID, 30, models.StateNew)
		})

		It("should page through the deck", func() {
			first, err := client.StudyPage(ctx, deck.ID, false, 1, 25)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Cards).To(HaveLen(25))
			Expect(first.Total).To(Equal(30))
			Expect(first.TotalPages).To(Equal(2))
			Expect(first.PerPage).To(Equal(25))

			second, err := client.StudyPage(ctx, deck.ID, false, 2, 25)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Cards).To(HaveLen(5))
			Expect(second.Page).To(Equal(2))
		})

		It("should classify a missing deck as a not-found network error", func() {
			_, err := client.StudyPage(ctx, "nope", false, 1, 25)
			var netErr *api.NetworkError
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(netErr.StatusCode).To(Equal(http.StatusNotFound))
			Expect(errors.Is(err, api.ErrNotFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("deck not found"))
		})

		It("should reject a payload whose flashcards field is not an array", func() {
			bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"flashcards":{"id":"x"},"pagination":{"total_pages":1},"total":1}`))
			}))
			defer bad.Close()
			c, err := api.New(api.Options{BaseURL: bad.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.StudyPage(ctx, "d1", true, 1, 25)
			var shapeErr *api.DataShapeError
			Expect(errors.As(err, &shapeErr)).To(BeTrue())
			Expect(shapeErr.Field).To(Equal("flashcards"))
		})

		It("should accept numeric ids and the common due date layouts", func() {
			var logs strings.Builder
			c, err := api.New(api.Options{
				BaseURL: server.URL,
				Logger:  logger.New(logger.WithOutput(&logs), logger.WithFlags(0)),
			})
			Expect(err).NotTo(HaveOccurred())
			server.FailOnce(apitest.RouteStudy, http.StatusOK, `{
				"flashcards":[
					{"id":7,"deck_id":3,"question":"q7","correct_answer":"a","due_date":"2024-05-01 10:00:00"},
					{"id":"c8","question":"q8","correct_answer":"a","due_date":"2024-05-02"},
					{"id":9,"question":"q9","correct_answer":"a","due_date":"next tuesday"}
				],
				"pagination":{"total_pages":1,"per_page":25,"page":1},
				"total":3}`)

			page, err := c.StudyPage(ctx, deck.ID, false, 1, 25)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Cards).To(HaveLen(3))

			Expect(page.Cards[0].ID).To(Equal("7"))
			Expect(page.Cards[0].DeckID).To(Equal("3"))
			Expect(page.Cards[0].DueDate).NotTo(BeNil())
			Expect(*page.Cards[0].DueDate).To(Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

			Expect(page.Cards[1].ID).To(Equal("c8"))
			Expect(*page.Cards[1].DueDate).To(Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)))

			Expect(page.Cards[2].ID).To(Equal("9"))
			Expect(page.Cards[2].DueDate).To(BeNil())
			Expect(logs.String()).To(ContainSubstring(`WARN: load study page: ignoring due date "next tuesday" for card 9`))
		})

		It("should report transport failures as network errors", func() {
			server.Close()
			_, err := client.StudyPage(ctx, deck.ID, false, 1, 25)
			var netErr *api.NetworkError
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(netErr.StatusCode).To(BeZero())
		})
	})

	Context("progress updates", func() {
		It("should return the server's view of the card", func() {
			card := server.AddCard(deck.ID, models.Card{Question: "q", CorrectAnswer: "a"})

			update, err := client.UpdateProgress(ctx, card.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(update.State).To(Equal(models.StateLearning))
			Expect(update.Retrievability).NotTo(BeNil())
			Expect(update.DueDate).NotTo(BeNil())
			Expect(server.Progress()).To(HaveLen(1))
		})

		It("should surface success:false as a server logic error", func() {
			server.Fail(apitest.RouteProgress, http.StatusOK, `{"success":false,"error":"card locked"}`)
			_, err := client.UpdateProgress(ctx, "c1", true)
			var logicErr *api.ServerLogicError
			Expect(errors.As(err, &logicErr)).To(BeTrue())
			Expect(logicErr.Message).To(Equal("card locked"))
		})

		It("should read a due date without a zone", func() {
			server.FailOnce(apitest.RouteProgress, http.StatusOK,
				`{"success":true,"state":1,"due_date":"2024-05-01 10:00:00"}`)
			update, err := client.UpdateProgress(ctx, "c1", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(update.DueDate).NotTo(BeNil())
			Expect(update.DueDate.Hour()).To(Equal(10))
		})

		It("should drop a due date it cannot read", func() {
			server.FailOnce(apitest.RouteProgress, http.StatusOK,
				`{"success":true,"state":1,"due_date":12}`)
			update, err := client.UpdateProgress(ctx, "c1", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(update.State).To(Equal(models.StateLearning))
			Expect(update.DueDate).To(BeNil())
		})

		It("should flag a reply without a state", func() {
			server.Fail(apitest.RouteProgress, http.StatusOK, `{"success":true}`)
			_, err := client.UpdateProgress(ctx, "c1", true)
			var shapeErr *api.DataShapeError
			Expect(errors.As(err, &shapeErr)).To(BeTrue())
			Expect(shapeErr.Field).To(Equal("state"))
		})
	})

	It("should count due cards", func() {
		server.AddCards(deck.ID, 3, models.StateNew)
		n, err := client.DueCount(ctx, deck.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})

	It("should route due counts and card lists that share the /deck/api prefix", func() {
		server.AddCards(deck.ID, 2, models.StateNew)

		n, err := client.DueCount(ctx, deck.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		cards, err := client.ListFlashcards(ctx, deck.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(cards).To(HaveLen(2))

		Expect(server.Calls(apitest.RouteDueCount)).To(Equal(1))
		Expect(server.Calls(apitest.RouteListCards)).To(Equal(1))

		resp, err := http.Get(server.URL + "/deck/api/" + deck.ID + "/other")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should send the bearer token and a request id", func() {
		var auth, requestID string
		capture := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			requestID = r.Header.Get("X-Request-ID")
			w.Write([]byte(`{"success":true,"due_count":0}`))
		}))
		defer capture.Close()

		c, err := api.New(api.Options{BaseURL: capture.URL, Token: "secret"})
		Expect(err).NotTo(HaveOccurred())
		_, err = c.DueCount(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(auth).To(Equal("Bearer secret"))
		Expect(requestID).To(HaveLen(36))
	})

	Context("decks", func() {
		It("should create, rename, list and delete decks", func() {
			created, err := client.CreateDeck(ctx, "Chemistry")
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeEmpty())

			Expect(client.RenameDeck(ctx, created.ID, "Organic Chemistry")).To(Succeed())

			decks, err := client.ListDecks(ctx)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, d := range decks {
				names = append(names, d.Name)
			}
			Expect(names).To(ConsistOf("Biology", "Organic Chemistry"))

			Expect(client.DeleteDeck(ctx, created.ID)).To(Succeed())
			_, ok := server.Deck(created.ID)
			Expect(ok).To(BeFalse())
		})

		It("should reject duplicate names with the server's message", func() {
			_, err := client.CreateDeck(ctx, "biology")
			Expect(err).To(MatchError(ContainSubstring("already exists")))
		})

		It("should not send an empty deck name", func() {
			_, err := client.CreateDeck(ctx, "   ")
			Expect(err).To(HaveOccurred())
			Expect(server.Calls(apitest.RouteCreateDeck)).To(BeZero())
		})

		It("should bulk delete decks", func() {
			other := server.AddDeck("History")
			n, err := client.BulkDeleteDecks(ctx, []string{deck.ID, other.ID, "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Context("flashcards", func() {
		It("should create, edit, list, move and delete cards", func() {
			card, err := client.CreateFlashcard(ctx, models.CardInput{
				DeckID:           deck.ID,
				Question:         "Powerhouse of the cell?",
				CorrectAnswer:    "Mitochondria",
				IncorrectAnswers: []string{"Nucleus", "Ribosome", "Golgi"},
			})
			Expect(err).NotTo(HaveOccurred())

			edited, err := client.UpdateFlashcard(ctx, card.ID, models.CardInput{
				DeckID:           deck.ID,
				Question:         "Powerhouse of the cell?",
				CorrectAnswer:    "The mitochondria",
				IncorrectAnswers: []string{"Nucleus", "Ribosome", "Golgi"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.CorrectAnswer).To(Equal("The mitochondria"))

			cards, err := client.ListFlashcards(ctx, deck.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(1))

			target := server.AddDeck("Cells")
			moved, err := client.MoveFlashcards(ctx, []string{card.ID}, target.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(Equal(1))
			Expect(server.CardsIn(target.ID)).To(HaveLen(1))

			Expect(client.DeleteFlashcard(ctx, card.ID)).To(Succeed())
			err = client.DeleteFlashcard(ctx, card.ID)
			Expect(errors.Is(err, api.ErrNotFound)).To(BeTrue())
		})

		It("should bulk delete cards", func() {
			cards := server.AddCards(deck.ID, 3, models.StateNew)
			n, err := client.BulkDeleteFlashcards(ctx, []string{cards[0].ID, cards[2].ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(server.CardsIn(deck.ID)).To(HaveLen(1))
		})
	})

	Context("imports", func() {
		It("should upload a file and process its chunks", func() {
			content := strings.Repeat("x", apitest.UploadChunkBytes*2+10)
			up, err := client.UploadFile(ctx, deck.ID, "/tmp/notes.txt", strings.NewReader(content))
			Expect(err).NotTo(HaveOccurred())
			Expect(up.TotalChunks).To(Equal(3))

			res, err := client.ProcessChunk(ctx, deck.ID, up.FileID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsLast).To(BeTrue())
			Expect(res.FlashcardsCreated).To(Equal(1))
		})

		It("should process free text", func() {
			n, err := client.ProcessText(ctx, deck.ID, "Cells divide by mitosis.", "batch-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(server.Batches()).To(HaveKeyWithValue("batch-1", 1))
		})
	})

	Context("learning and stats", func() {
		BeforeEach(func() {
			server.SetLearningPath(deck.ID, []api.LearningStep{
				{ID: "s1", Title: "Cells", Kind: api.StepKindContent},
				{ID: "s2", Title: "Cells quiz", Kind: api.StepKindQuiz},
			}, map[string][]api.QuizQuestion{
				"s2": {{ID: "q1", Question: "Unit of life?", CorrectAnswer: "Cell", IncorrectAnswers: []string{"Atom"}}},
			})
		})

		It("should walk a learning path", func() {
			steps, err := client.LearningPath(ctx, deck.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(HaveLen(2))

			content, err := client.GenerateContent(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(ContainSubstring("Cells"))

			qs, err := client.Quiz(ctx, "s2")
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(HaveLen(1))

			passed, err := client.SubmitQuiz(ctx, "s2", 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(passed).To(BeTrue())
		})

		It("should accept numeric step and question ids", func() {
			server.FailOnce(apitest.RoutePath, http.StatusOK,
				`{"success":true,"steps":[{"id":4,"title":"Intro","kind":"content","completed":true}]}`)
			steps, err := client.LearningPath(ctx, deck.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal([]api.LearningStep{{ID: "4", Title: "Intro", Kind: api.StepKindContent, Completed: true}}))

			server.FailOnce(apitest.RouteQuiz, http.StatusOK,
				`{"success":true,"questions":[{"id":11,"question":"Q","correct_answer":"A","incorrect_answers":["B"]}]}`)
			qs, err := client.Quiz(ctx, "4")
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(HaveLen(1))
			Expect(qs[0].ID).To(Equal("11"))
			Expect(qs[0].IncorrectAnswers).To(Equal([]string{"B"}))
		})

		It("should load overview and deck stats", func() {
			cards := server.AddCards(deck.ID, 2, models.StateNew)
			_, err := client.UpdateProgress(ctx, cards[0].ID, true)
			Expect(err).NotTo(HaveOccurred())

			overview, err := client.StatsOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(overview.TotalCards).To(Equal(2))
			Expect(overview.StateCounts.Learning).To(Equal(1))
			Expect(overview.Reviews).To(HaveLen(1))
			Expect(overview.Reviews[0].Accuracy()).To(Equal(1.0))

			deckStats, err := client.DeckStats(ctx, deck.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(deckStats.StateCounts.Total()).To(Equal(2))
		})
	})
})
