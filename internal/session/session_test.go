package session_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/deckdrill/internal/api"
	"github.com/kpauljoseph/deckdrill/internal/api/apitest"
	"github.com/kpauljoseph/deckdrill/internal/session"
	"github.com/kpauljoseph/deckdrill/pkg/models"
)

var _ = Describe("Session", func() {
	var (
		ctx     context.Context
		backend *fakeBackend
		rec     *recorder
		cfg     session.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &recorder{}
		cfg = session.Config{DeckID: "d1", PageSize: 25}
	})

	newSession := func() *session.Session {
		s := session.New(backend, cfg, rec, sessionTestLogger())
		DeferCleanup(s.Close)
		return s
	}

	answer := func(s *session.Session, correct bool) {
		card, ok := s.Current()
		Expect(ok).To(BeTrue())
		choice := card.CorrectAnswer
		if !correct {
			choice = card.IncorrectAnswers[0]
		}
		Expect(s.Dispatch(ctx, session.Submit{Answer: choice})).To(Succeed())
		if s.Phase() != session.PhaseComplete {
			Expect(s.Dispatch(ctx, session.Next{})).To(Succeed())
		}
	}

	answerAll := func(s *session.Session, correct bool) {
		for i := 0; s.Phase() != session.PhaseComplete; i++ {
			Expect(i).To(BeNumerically("<", 1000), "session never completed")
			answer(s, correct)
		}
	}

	Context("paging through a deck", func() {
		BeforeEach(func() {
			backend = newFakeBackend(makeCards(30, models.StateNew))
		})

		It("should load page 2 only once the first 25 cards are answered", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(backend.pages()).To(Equal([]int{1}))

			for i := 0; i < 24; i++ {
				answer(s, true)
			}
			Expect(backend.pages()).To(Equal([]int{1}))

			card, _ := s.Current()
			Expect(s.Dispatch(ctx, session.Submit{Answer: card.CorrectAnswer})).To(Succeed())
			Expect(backend.pages()).To(Equal([]int{1}))

			Expect(s.Dispatch(ctx, session.Next{})).To(Succeed())
			Expect(backend.pages()).To(Equal([]int{1, 2}))

			card, ok := s.Current()
			Expect(ok).To(BeTrue())
			Expect(card.ID).To(Equal("c26"))
		})

		It("should keep score equal to the completed set and never revisit a card", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())

			prev := 0
			for s.Phase() != session.PhaseComplete {
				answer(s, true)
				snap := s.Snapshot()
				Expect(snap.Score).To(Equal(len(snap.CompletedIDs)))
				Expect(snap.Score).To(BeNumerically(">=", prev))
				Expect(snap.Score).To(BeNumerically("<=", snap.TotalExpected))
				prev = snap.Score
			}

			Expect(prev).To(Equal(30))
			Expect(rec.shownIDs()).To(HaveLen(30))
			seen := map[string]bool{}
			for _, id := range rec.shownIDs() {
				Expect(seen).NotTo(HaveKey(id))
				seen[id] = true
			}
			Expect(backend.progress()).To(HaveLen(30))
			Eventually(s.Done()).Should(BeClosed())
		})

		It("should complete after wrong answers too", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			answerAll(s, false)

			summary, ok := s.Summary()
			Expect(ok).To(BeTrue())
			Expect(summary.Score).To(Equal(30))
			Expect(summary.Total).To(Equal(30))
			Expect(rec.completedCount()).To(Equal(1))
		})

		It("should stall on a failed page and pick up again on retry", func() {
			backend.pageErr[2] = errBoom
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			for i := 0; i < 24; i++ {
				answer(s, true)
			}
			card, _ := s.Current()
			Expect(s.Dispatch(ctx, session.Submit{Answer: card.CorrectAnswer})).To(Succeed())

			err := s.Dispatch(ctx, session.Next{})
			Expect(err).To(MatchError(errBoom))
			Expect(s.Phase()).To(Equal(session.PhaseStalled))
			Expect(s.Err()).To(MatchError(errBoom))
			Expect(rec.failures).To(HaveLen(1))
			Expect(s.Snapshot().Score).To(Equal(25))

			Expect(s.Dispatch(ctx, session.Submit{Answer: "x"})).To(MatchError(session.ErrNotAllowed))

			backend.mu.Lock()
			delete(backend.pageErr, 2)
			backend.mu.Unlock()

			Expect(s.Dispatch(ctx, session.Retry{})).To(Succeed())
			Expect(s.Phase()).To(Equal(session.PhaseIdle))
			card, _ = s.Current()
			Expect(card.ID).To(Equal("c26"))
			Expect(s.Err()).NotTo(HaveOccurred())
		})
	})

	Context("starting", func() {
		It("should stall when the first page fails and recover on retry", func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			backend.pageErr[1] = errBoom
			s := newSession()

			Expect(s.Dispatch(ctx, session.Start{})).To(MatchError(errBoom))
			Expect(s.Phase()).To(Equal(session.PhaseStalled))

			backend.mu.Lock()
			delete(backend.pageErr, 1)
			backend.mu.Unlock()

			Expect(s.Dispatch(ctx, session.Retry{})).To(Succeed())
			card, ok := s.Current()
			Expect(ok).To(BeTrue())
			Expect(card.ID).To(Equal("c1"))
		})

		It("should complete an empty deck straight away", func() {
			backend = newFakeBackend(nil)
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Phase()).To(Equal(session.PhaseComplete))
			Expect(rec.shownIDs()).To(BeEmpty())
			Expect(rec.completedCount()).To(Equal(1))
		})

		It("should not start twice", func() {
			backend = newFakeBackend(makeCards(2, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Start{})).To(MatchError(session.ErrNotAllowed))
			Expect(backend.pages()).To(HaveLen(1))
		})

		It("should drop input while the first page is loading", func() {
			backend = newFakeBackend(makeCards(2, models.StateNew))
			backend.block = make(chan struct{})
			backend.entered = make(chan struct{}, 4)
			s := newSession()

			started := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				started <- s.Dispatch(ctx, session.Start{})
			}()
			Eventually(backend.entered).Should(Receive())

			Expect(s.Phase()).To(Equal(session.PhaseLoading))
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(MatchError(session.ErrBusy))
			Expect(s.Dispatch(ctx, session.Skip{})).To(MatchError(session.ErrBusy))

			close(backend.block)
			Eventually(started).Should(Receive(BeNil()))
			Expect(s.Phase()).To(Equal(session.PhaseIdle))
			Expect(backend.progress()).To(BeEmpty())
		})
	})

	Context("answering", func() {
		BeforeEach(func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
		})

		It("should count a card once no matter how often it is submitted", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(Succeed())
			Expect(s.Phase()).To(Equal(session.PhaseCorrect))

			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(MatchError(session.ErrNotAllowed))
			Expect(s.Snapshot().Score).To(Equal(1))
			Expect(backend.progress()).To(Equal([]string{"c1"}))
		})

		It("should ignore a second submit while the first is being saved", func() {
			backend.progressBlock = make(chan struct{})
			backend.progressEntered = make(chan struct{}, 4)
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())

			submitted := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				submitted <- s.Dispatch(ctx, session.Submit{Answer: "answer 1"})
			}()
			Eventually(backend.progressEntered).Should(Receive())

			Expect(s.Phase()).To(Equal(session.PhaseSubmitting))
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(MatchError(session.ErrBusy))
			Expect(s.Dispatch(ctx, session.Submit{Answer: "wrong a"})).To(MatchError(session.ErrBusy))
			Expect(s.Dispatch(ctx, session.Next{})).To(MatchError(session.ErrBusy))

			close(backend.progressBlock)
			Eventually(submitted).Should(Receive(BeNil()))

			Expect(s.Phase()).To(Equal(session.PhaseCorrect))
			Expect(backend.progress()).To(HaveLen(1))
			Expect(s.Snapshot().Score).To(Equal(1))
			Expect(rec.graded).To(HaveLen(1))
		})

		It("should grade a wrong answer and still count it", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "Answer 1"})).To(Succeed())

			Expect(s.Phase()).To(Equal(session.PhaseIncorrect))
			Expect(rec.graded).To(HaveLen(1))
			Expect(rec.graded[0].Correct).To(BeFalse())
			Expect(rec.graded[0].Card.State).To(Equal(models.StateForgotten))
			Expect(rec.graded[0].AutoAdvance).To(BeZero())
			Expect(s.Snapshot().Score).To(Equal(1))
		})

		It("should keep going when progress cannot be saved", func() {
			backend.progressErr = errBoom
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(Succeed())

			Expect(rec.graded).To(HaveLen(1))
			Expect(rec.graded[0].ProgressError).To(MatchError(errBoom))
			Expect(rec.graded[0].Card.State).To(Equal(models.StateNew))

			snap := s.Snapshot()
			Expect(snap.Score).To(Equal(1))
			Expect(snap.CompletedIDs).To(ConsistOf("c1"))
			Expect(snap.Cards[0].State).To(Equal(models.StateNew))
		})

		It("should reject Next before an answer", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Next{})).To(MatchError(session.ErrNotAllowed))
		})

		It("should show what comes next", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(rec.shown).To(HaveLen(1))
			Expect(rec.shown[0].UpNext).NotTo(BeNil())
			Expect(rec.shown[0].UpNext.ID).To(Equal("c2"))
			Expect(rec.shown[0].Total).To(Equal(3))
		})
	})

	Context("due-only sessions", func() {
		BeforeEach(func() {
			cards := makeCards(5, models.StateNew)
			cards[1].State = models.StateMastered
			cards[3].State = models.StateMastered
			backend = newFakeBackend(cards)
			cfg.DueOnly = true
		})

		It("should skip mastered cards", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			answerAll(s, true)
			Expect(rec.shownIDs()).To(Equal([]string{"c1", "c3", "c5"}))
		})

		It("should report the server's due count at the end", func() {
			backend.dueCount = 7
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			answerAll(s, true)

			summary, ok := s.Summary()
			Expect(ok).To(BeTrue())
			Expect(summary.DueOnly).To(BeTrue())
			Expect(summary.DueCount).NotTo(BeNil())
			Expect(*summary.DueCount).To(Equal(7))
			Expect(summary.DueCountErr).NotTo(HaveOccurred())
		})

		It("should still complete when the due count fails", func() {
			backend.dueErr = errBoom
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			answerAll(s, true)

			summary, ok := s.Summary()
			Expect(ok).To(BeTrue())
			Expect(summary.DueCount).To(BeNil())
			Expect(summary.DueCountErr).To(MatchError(errBoom))
			Expect(s.Phase()).To(Equal(session.PhaseComplete))
		})
	})

	Context("skipping", func() {
		It("should move forward and wrap around", func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Skip{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Skip{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Skip{})).To(Succeed())
			Expect(rec.shownIDs()).To(Equal([]string{"c1", "c2", "c3", "c1"}))
			Expect(s.Snapshot().Score).To(BeZero())
		})

		It("should stay on the only card left", func() {
			backend = newFakeBackend(makeCards(1, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Skip{})).To(Succeed())
			card, ok := s.Current()
			Expect(ok).To(BeTrue())
			Expect(card.ID).To(Equal("c1"))
			Expect(s.Phase()).To(Equal(session.PhaseIdle))
		})
	})

	Context("deleting", func() {
		It("should complete when the last card is deleted", func() {
			backend = newFakeBackend(makeCards(1, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.DeleteCurrent{})).To(Succeed())

			Expect(s.Phase()).To(Equal(session.PhaseComplete))
			Expect(backend.deleted).To(Equal([]string{"c1"}))
			summary, ok := s.Summary()
			Expect(ok).To(BeTrue())
			Expect(summary.Score).To(BeZero())
			Expect(summary.Total).To(BeZero())
		})

		It("should show the following card and shrink the total", func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.DeleteCurrent{})).To(Succeed())

			card, _ := s.Current()
			Expect(card.ID).To(Equal("c2"))
			snap := s.Snapshot()
			Expect(snap.TotalExpected).To(Equal(2))
			Expect(snap.Cards).To(HaveLen(2))

			answerAll(s, true)
			Expect(s.Snapshot().Score).To(Equal(2))
		})

		It("should keep the score when an answered card is deleted", func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(Succeed())
			Expect(s.Dispatch(ctx, session.DeleteCurrent{})).To(Succeed())

			snap := s.Snapshot()
			Expect(snap.Score).To(Equal(1))
			Expect(snap.TotalExpected).To(Equal(3))
			card, _ := s.Current()
			Expect(card.ID).To(Equal("c2"))
		})

		It("should leave the card on screen when the delete fails", func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			backend.deleteErr = errBoom
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())

			Expect(s.Dispatch(ctx, session.DeleteCurrent{})).To(MatchError(errBoom))
			Expect(s.Phase()).To(Equal(session.PhaseIdle))
			card, _ := s.Current()
			Expect(card.ID).To(Equal("c1"))
			Expect(rec.failures).To(HaveLen(1))
		})
	})

	Context("auto-advance", func() {
		BeforeEach(func() {
			backend = newFakeBackend(makeCards(3, models.StateNew))
			cfg.AutoAdvance = 20 * time.Millisecond
		})

		It("should move on by itself after a correct answer", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(Succeed())
			Expect(rec.graded[0].AutoAdvance).To(Equal(20 * time.Millisecond))

			Eventually(s.Phase).Should(Equal(session.PhaseIdle))
			card, _ := s.Current()
			Expect(card.ID).To(Equal("c2"))
		})

		It("should wait after a wrong answer", func() {
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "nope"})).To(Succeed())
			Consistently(s.Phase, 100*time.Millisecond).Should(Equal(session.PhaseIncorrect))
		})

		It("should not advance twice when Next beats the timer", func() {
			cfg.AutoAdvance = 50 * time.Millisecond
			s := newSession()
			Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(Succeed())
			Expect(s.Dispatch(ctx, session.Next{})).To(Succeed())

			Consistently(rec.shownIDs, 150*time.Millisecond).Should(Equal([]string{"c1", "c2"}))
		})
	})

	It("should reject everything once closed", func() {
		backend = newFakeBackend(makeCards(2, models.StateNew))
		s := newSession()
		Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
		s.Close()
		Expect(s.Done()).To(BeClosed())
		Expect(s.Dispatch(ctx, session.Submit{Answer: "answer 1"})).To(MatchError(session.ErrClosed))
	})

	It("should name its phases", func() {
		Expect(session.PhaseSubmitting.String()).To(Equal("submitting"))
		Expect(session.Phase(42).String()).To(Equal("phase(42)"))
	})
})

var _ = Describe("Grade", func() {
	DescribeTable("exact comparison",
		func(selected, correct string, want bool) {
			Expect(session.Grade(selected, correct)).To(Equal(want))
		},
		Entry("identical", "Paris", "Paris", true),
		Entry("different case", "paris", "Paris", false),
		Entry("trailing space", "Paris ", "Paris", false),
		Entry("empty selection", "", "Paris", false),
	)
})

var _ = Describe("Loader", func() {
	It("should refuse a second load while one is running", func() {
		backend := newFakeBackend(makeCards(30, models.StateNew))
		backend.block = make(chan struct{})
		backend.entered = make(chan struct{}, 4)
		loader := session.NewLoader(backend, "d1", false, 25, sessionTestLogger())

		first := make(chan *api.StudyPage, 1)
		go func() {
			defer GinkgoRecover()
			p, err := loader.LoadFirstPage(context.Background())
			Expect(err).NotTo(HaveOccurred())
			first <- p
		}()
		Eventually(backend.entered).Should(Receive())
		Expect(loader.Loading()).To(BeTrue())

		_, err := loader.LoadNextPage(context.Background(), 2)
		Expect(err).To(MatchError(session.ErrBusy))

		close(backend.block)
		var p *api.StudyPage
		Eventually(first).Should(Receive(&p))
		Expect(p.Cards).To(HaveLen(25))
		Expect(backend.pages()).To(Equal([]int{1}))
		Eventually(loader.Loading).Should(BeFalse())
	})

	It("should wrap source errors with the page number", func() {
		backend := newFakeBackend(makeCards(3, models.StateNew))
		backend.pageErr[1] = errBoom
		loader := session.NewLoader(backend, "d1", false, 25, nil)

		_, err := loader.LoadFirstPage(context.Background())
		Expect(err).To(MatchError(errBoom))
		Expect(err.Error()).To(ContainSubstring("page 1"))
		Expect(loader.Loading()).To(BeFalse())
	})
})

var _ = Describe("Session against the study server", func() {
	It("should study a paged deck end to end", func() {
		server := apitest.New()
		defer server.Close()
		deck := server.AddDeck("Chemistry")
		server.AddCards(deck.ID, 30, models.StateNew)

		client, err := api.New(api.Options{BaseURL: server.URL, Logger: sessionTestLogger()})
		Expect(err).NotTo(HaveOccurred())

		rec := &recorder{}
		s := session.New(client, session.Config{DeckID: deck.ID, PageSize: 25}, rec, sessionTestLogger())
		defer s.Close()

		ctx := context.Background()
		Expect(s.Dispatch(ctx, session.Start{})).To(Succeed())
		for i := 0; s.Phase() != session.PhaseComplete; i++ {
			Expect(i).To(BeNumerically("<", 100))
			card, ok := s.Current()
			Expect(ok).To(BeTrue())
			Expect(s.Dispatch(ctx, session.Submit{Answer: card.CorrectAnswer})).To(Succeed())
			if s.Phase() != session.PhaseComplete {
				Expect(s.Dispatch(ctx, session.Next{})).To(Succeed())
			}
		}

		Expect(server.Progress()).To(HaveLen(30))
		Expect(server.Calls(apitest.RouteStudy)).To(Equal(2))
		for _, c := range server.CardsIn(deck.ID) {
			Expect(c.State).To(Equal(models.StateLearning))
		}
	})
})
