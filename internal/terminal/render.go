package terminal

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/kpauljoseph/deckdrill/internal/session"
)

const DefaultWidth = 72

type Option func(*Renderer)

func WithWidth(width int) Option {
	return func(r *Renderer) {
		if width >= 20 {
			r.width = width
		}
	}
}

// WithShuffle replaces the answer shuffler; tests pass one that keeps order.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(r *Renderer) {
		r.shuffle = shuffle
	}
}

// Renderer paints session events as text. Events may arrive from the
// auto-advance timer, so every write holds the lock.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	shuffle func(n int, swap func(i, j int))
	options []string
	cardID  string
}

var _ session.Observer = (*Renderer)(nil)

func NewRenderer(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{out: out, width: DefaultWidth, shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option returns the answer shown as number n (1-based).
func (r *Renderer) Option(n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.options) {
		return "", false
	}
	return r.options[n-1], true
}

func (r *Renderer) CardShown(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.Card.ID != r.cardID {
		options := v.Card.Options()
		r.shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		r.options = options
		r.cardID = v.Card.ID
	}

	inner := r.width - 4
	var b strings.Builder
	border := "+" + strings.Repeat("-", r.width-2) + "+\n"
	b.WriteString(border)
	header := fmt.Sprintf("Card %d | score %d/%d | %s", v.Index+1, v.Score, v.Total, v.Card.State)
	if v.TotalPages > 1 {
		header += fmt.Sprintf(" | page %d/%d", v.Page, v.TotalPages)
	}
	writeBoxLine(&b, runewidth.Truncate(header, inner, "..."), inner)
	b.WriteString(border)
	for _, line := range Wrap(v.Card.Question, inner) {
		writeBoxLine(&b, line, inner)
	}
	b.WriteString(border)
	for i, opt := range r.options {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, runewidth.Truncate(opt, r.width-6, "..."))
	}
	if v.UpNext != nil {
		fmt.Fprintf(&b, "Up next: %s\n", runewidth.Truncate(v.UpNext.Question, r.width-9, "..."))
	}
	b.WriteString("[1-9] answer  [s] skip  [d] delete  [q] quit\n")
	io.WriteString(r.out, b.String())
}

func (r *Renderer) AnswerGraded(res session.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.Correct {
		fmt.Fprintf(r.out, "Correct! (%d/%d)\n", res.Score, res.Total)
	} else {
		fmt.Fprintf(r.out, "Wrong. The answer was: %s (%d/%d)\n", res.Card.CorrectAnswer, res.Score, res.Total)
	}
	if res.ProgressError != nil {
		fmt.Fprintf(r.out, "Progress was not saved: %v\n", res.ProgressError)
	}
	if res.AutoAdvance > 0 {
		fmt.Fprintf(r.out, "Next card in %s...\n", res.AutoAdvance)
	} else if res.Score < res.Total {
		io.WriteString(r.out, "Press Enter for the next card.\n")
	}
}

func (r *Renderer) Failed(err error, retryable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Error: %v\n", err)
	if retryable {
		io.WriteString(r.out, "Press r to retry or q to quit.\n")
	}
}

func (r *Renderer) Completed(s session.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options = nil
	r.cardID = ""

	fmt.Fprintf(r.out, "Session complete: %d/%d\n", s.Score, s.Total)
	switch {
	case s.DueCount != nil:
		fmt.Fprintf(r.out, "%d cards still due in this deck.\n", *s.DueCount)
	case s.DueCountErr != nil:
		io.WriteString(r.out, "Could not refresh the due count.\n")
	}
}

// Notice prints a one-line message between events.
func (r *Renderer) Notice(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func writeBoxLine(b *strings.Builder, text string, inner int) {
	b.WriteString("| ")
	b.WriteString(runewidth.FillRight(text, inner))
	b.WriteString(" |\n")
}

// Wrap breaks text into lines no wider than width display cells. East Asian
// wide characters count double; a word wider than width is cut.
func Wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, w := range words {
			for runewidth.StringWidth(w) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				head := runewidth.Truncate(w, width, "")
				if head == "" {
					break
				}
				lines = append(lines, head)
				w = w[len(head):]
			}
			if w == "" {
				continue
			}
			switch {
			case line == "":
				line = w
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(w) <= width:
				line += " " + w
			default:
				lines = append(lines, line)
				line = w
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
