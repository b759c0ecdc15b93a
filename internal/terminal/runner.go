package terminal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/kpauljoseph/deckdrill/internal/session"
	"github.com/kpauljoseph/deckdrill/pkg/logger"
)

// Runner drives a session from line-based keyboard input.
type Runner struct {
	session  *session.Session
	renderer *Renderer
	logger   *logger.Logger
}

func NewRunner(s *session.Session, r *Renderer, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{session: s, renderer: r, logger: log}
}

type lineResult struct {
	line string
	err  error
}

// Run starts the session and feeds it keys until it completes, the user quits,
// input ends or ctx is cancelled. The session is closed on return.
func (rn *Runner) Run(ctx context.Context, in io.Reader) error {
	defer rn.session.Close()

	lines := make(chan lineResult)
	stop := make(chan struct{})
	defer close(stop)
	go readLines(in, lines, stop)

	if err := rn.session.Dispatch(ctx, session.Start{}); err != nil && rn.session.Phase() != session.PhaseStalled {
		return err
	}

	confirmDelete := false
	for {
		select {
		case <-rn.session.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case lr := <-lines:
			if lr.err != nil {
				if errors.Is(lr.err, io.EOF) {
					return nil
				}
				return lr.err
			}

			key := strings.ToLower(strings.TrimSpace(lr.line))
			if confirmDelete {
				confirmDelete = false
				if key == "y" || key == "yes" {
					rn.dispatch(ctx, session.DeleteCurrent{})
				} else {
					rn.renderer.Notice("Delete cancelled.")
				}
				continue
			}

			switch key {
			case "q", "quit":
				rn.renderer.Notice("Bye.")
				return nil
			case "", "n":
				rn.dispatch(ctx, session.Next{})
			case "s":
				rn.dispatch(ctx, session.Skip{})
			case "r":
				rn.dispatch(ctx, session.Retry{})
			case "d":
				if _, ok := rn.session.Current(); !ok {
					continue
				}
				confirmDelete = true
				rn.renderer.Notice("Delete this card for good? (y/N)")
			default:
				n, err := strconv.Atoi(key)
				if err != nil || n < 1 || n > 9 {
					rn.renderer.Notice("Unknown key %q.", key)
					continue
				}
				answer, ok := rn.renderer.Option(n)
				if !ok {
					rn.renderer.Notice("There is no option %d.", n)
					continue
				}
				rn.dispatch(ctx, session.Submit{Answer: answer})
			}
		}
	}
}

// dispatch sends a to the session. Failures the observer already reported are
// only logged here.
func (rn *Runner) dispatch(ctx context.Context, a session.Action) {
	err := rn.session.Dispatch(ctx, a)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrBusy):
		rn.renderer.Notice("Still working, please wait.")
	case errors.Is(err, session.ErrNotAllowed):
		rn.logger.Debug("Ignored %T in phase %s", a, rn.session.Phase())
	default:
		rn.logger.Debug("%T failed: %v", a, err)
	}
}

func readLines(in io.Reader, out chan<- lineResult, stop <-chan struct{}) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		select {
		case out <- lineResult{line: sc.Text()}:
		case <-stop:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case out <- lineResult{err: err}:
	case <-stop:
	}
}
