package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/conorfennell/repomind/internal/review"
	"github.com/conorfennell/repomind/internal/storage"
)

const defaultWidth = 80

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Review flashcards in the terminal",
	Long: `Review flashcards one at a time. Each card shows its question first.

Keys (followed by Enter):
  f, <enter>  flip the card
  y / n       grade the revealed answer as correct or incorrect
  p / s       go to the previous card or skip to the next one
  x           shuffle the deck and start over
  r           reset to the original order
  q           quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		tagID, _ := cmd.Flags().GetString("tag")
		shuffle, _ := cmd.Flags().GetBool("shuffle")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cards, err := a.db.ListCards(cmd.Context(), storage.CardFilter{SessionID: sessionID, TagID: tagID})
		if err != nil {
			return err
		}

		ui := newStudyUI(cmd.InOrStdin(), cmd.OutOrStdout(), terminalWidth())
		engine := review.NewEngine(a.db,
			review.WithNotifier(func(err error) {
				a.log.WithError(err).Warn("review write failed")
				ui.notice(err)
			}),
			review.WithWriteTimeout(a.cfg.Review.WriteTimeout),
		)
		if err := engine.Start(cards); err != nil {
			if errors.Is(err, review.ErrEmptyDeck) {
				fmt.Fprintln(cmd.OutOrStdout(), "No cards to study.")
				return nil
			}
			return err
		}
		if shuffle {
			if err := engine.Shuffle(); err != nil {
				return err
			}
		}
		defer engine.Wait()
		return ui.run(engine)
	},
}

func init() {
	rootCmd.AddCommand(studyCmd)

	studyCmd.Flags().StringP("session", "s", "", "only study cards of this session")
	studyCmd.Flags().StringP("tag", "t", "", "only study cards with this tag")
	studyCmd.Flags().Bool("shuffle", false, "shuffle the deck before starting")
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// studyUI drives a review.Engine from line-oriented input.
type studyUI struct {
	in    *bufio.Scanner
	out   io.Writer
	width int

	mu      sync.Mutex
	notices []string
}

func newStudyUI(in io.Reader, out io.Writer, width int) *studyUI {
	return &studyUI{in: bufio.NewScanner(in), out: out, width: width}
}

// notice may be called from the engine's write goroutine.
func (u *studyUI) notice(err error) {
	var werr *review.PersistenceWriteError
	msg := err.Error()
	if errors.As(err, &werr) {
		msg = fmt.Sprintf("Could not save progress for card %s. Your session continues.", werr.CardID)
	}
	u.mu.Lock()
	u.notices = append(u.notices, msg)
	u.mu.Unlock()
}

func (u *studyUI) flushNotices() {
	u.mu.Lock()
	pending := u.notices
	u.notices = nil
	u.mu.Unlock()
	for _, msg := range pending {
		fmt.Fprintln(u.out, colorize.YellowString("! %s", msg))
	}
}

func (u *studyUI) run(engine *review.Engine) error {
	for {
		state := engine.State()
		u.flushNotices()
		if state.Complete {
			u.summary(state)
			return nil
		}
		u.render(state)

		if !u.in.Scan() {
			return u.in.Err()
		}
		var err error
		switch strings.ToLower(strings.TrimSpace(u.in.Text())) {
		case "", "f":
			err = engine.Flip()
		case "y":
			err = engine.Answer(true)
		case "n":
			err = engine.Answer(false)
		case "p":
			err = engine.GoPrevious()
		case "s":
			err = engine.GoNext()
		case "x":
			err = engine.Shuffle()
		case "r":
			err = engine.Reset()
		case "q":
			u.summary(engine.State())
			return nil
		default:
			fmt.Fprintln(u.out, colorize.YellowString("Unknown key. Use f, y, n, p, s, x, r or q."))
			continue
		}
		if errors.Is(err, review.ErrInvalidGrade) {
			fmt.Fprintln(u.out, colorize.YellowString("Flip the card before grading it."))
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (u *studyUI) render(state review.State) {
	card := state.Card
	if card == nil {
		return
	}
	header := colorize.New(colorize.FgCyan, colorize.Bold).SprintfFunc()
	dim := colorize.New(colorize.Faint).SprintfFunc()

	fmt.Fprintln(u.out, strings.Repeat("─", min(u.width, defaultWidth)))
	fmt.Fprintln(u.out, header("Card %d/%d", state.Index+1, state.Total)+dim("  %s  reviewed %d/%d", card.Difficulty, state.Reviewed, state.Total))
	if pct, ok := card.Accuracy(); ok {
		fmt.Fprintln(u.out, dim("accuracy %d%% over %d reviews", pct, card.TimesReviewed))
	}
	fmt.Fprintln(u.out)
	fmt.Fprintln(u.out, colorize.New(colorize.Bold).Sprint("Q: ")+wrap(card.Question, u.width-3))
	if state.Flipped {
		fmt.Fprintln(u.out)
		fmt.Fprintln(u.out, colorize.GreenString("A: ")+wrap(card.Answer, u.width-3))
	}
	fmt.Fprintln(u.out)
	switch {
	case state.Reviewing && state.Flipped:
		fmt.Fprint(u.out, "Correct? [y/n] ")
	case state.Flipped:
		fmt.Fprint(u.out, "[f]lip [p]rev [s]kip [q]uit ")
	default:
		fmt.Fprint(u.out, "[f]lip [p]rev [s]kip [x] shuffle [r]eset [q]uit ")
	}
}

func (u *studyUI) summary(state review.State) {
	fmt.Fprintln(u.out)
	if state.Complete {
		fmt.Fprintln(u.out, colorize.New(colorize.FgGreen, colorize.Bold).Sprint("Session complete!"))
	}
	fmt.Fprintf(u.out, "Reviewed %d of %d cards, %d correct. Score: %d%%\n",
		state.Reviewed, state.Total, state.Correct, state.Score())
}

// wrap breaks text on spaces so no line exceeds width. Existing line breaks
// are kept.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		col := 0
		for j, word := range strings.Fields(line) {
			n := len([]rune(word))
			if j > 0 {
				if col+1+n > width {
					b.WriteByte('\n')
					col = 0
				} else {
					b.WriteByte(' ')
					col++
				}
			}
			b.WriteString(word)
			col += n
		}
	}
	return b.String()
}
