package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-service/internal/challenge"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
)

const playHelp = `Commands: :n next, :p previous, :g N go to question N, :t time left, :s submit.
Any other line answers the current question. Syntax answers end with a line holding a single ".".`

// NewPlayCmd runs one participant through the timed challenge in the terminal.
func NewPlayCmd(configPath, apiURL *string) *cobra.Command {
	var (
		section   string
		name      string
		studentID string
		refresh   bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take the timed challenge as a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			p := &player{
				out:   cmd.OutOrStdout(),
				lines: readLines(cmd.InOrStdin()),
			}
			return p.run(cmd.Context(), cfg, *apiURL, logger, playArgs{
				section: section, name: name, studentID: studentID, refresh: refresh,
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "C, Python or Other")
	cmd.Flags().StringVar(&name, "name", "", "participant name")
	cmd.Flags().StringVar(&studentID, "student-id", "", "student id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the local question snapshot")
	return cmd
}

type playArgs struct {
	section   string
	name      string
	studentID string
	refresh   bool
}

type player struct {
	out   io.Writer
	lines <-chan string
	// resumed wakes the countdown after the process was stopped. Nil
	// subscribes to SIGCONT.
	resumed <-chan os.Signal
	now     func() time.Time
	tick    time.Duration
}

func (p *player) run(ctx context.Context, cfg config.Config, apiURL string, logger *zap.Logger, args playArgs) error {
	if ctx == nil {
		ctx = context.Background()
	}
	api := newAPIClient(cfg, apiURL, logger)
	snapshots, err := challenge.NewFileSnapshots(cfg.Challenge.CachePath)
	if err != nil {
		return err
	}
	if p.resumed == nil {
		sig := make(chan os.Signal, 1)
		notifyResume(sig)
		defer signal.Stop(sig)
		p.resumed = sig
	}

	failed := make(chan error, 1)
	handoff := challenge.NewHandoff()
	session := challenge.NewSession(api, challenge.NewQuestionCache(api, snapshots, logger.Named("cache")), handoff, challenge.SessionOptions{
		Duration:     config.TTLDuration(cfg.Challenge.Duration, challenge.DefaultDuration),
		TickInterval: p.tick,
		Now:          p.now,
		Logger:       logger.Named("session"),
		OnSubmitError: func(err error) {
			fmt.Fprintf(p.out, "\nTime is up but the submission failed: %v\nType :s to try again.\n", err)
			select {
			case failed <- err:
			default:
			}
		},
	})
	defer session.Close()

	if err := p.chooseSection(session, args.section); err != nil {
		return err
	}
	name, err := p.ask("Name: ", args.name)
	if err != nil {
		return err
	}
	studentID, err := p.ask("Student ID: ", args.studentID)
	if err != nil {
		return err
	}
	if err := session.Register(ctx, name, studentID); err != nil {
		return err
	}

	loaded, err := session.Begin(ctx, args.refresh)
	if err != nil {
		return err
	}
	if loaded.Warning != nil {
		fmt.Fprintf(p.out, "Warning: %v\n", loaded.Warning)
	}
	if len(loaded.Questions) == 0 {
		return fmt.Errorf("no questions available for section %s", session.Snapshot().ParticipantSection)
	}
	fmt.Fprintf(p.out, "%d questions, %s on the clock.\n%s\n", len(loaded.Questions), formatClock(session.TimeLeft()), playHelp)

	if err := p.answerLoop(ctx, session, handoff, failed); err != nil {
		return err
	}
	result, ok := handoff.Take()
	if !ok {
		return fmt.Errorf("challenge ended without a result")
	}
	p.printResult(result)
	return nil
}

func (p *player) chooseSection(session *challenge.Session, preset string) error {
	for {
		raw, err := p.ask("Section (C, Python, Other): ", preset)
		if err != nil {
			return err
		}
		preset = ""
		section, err := domain.ParseSection(raw)
		if err == nil {
			err = session.SelectSection(section)
		}
		if err == nil {
			return nil
		}
		fmt.Fprintf(p.out, "%v\n", err)
	}
}

// ask returns preset when set, otherwise the next input line.
func (p *player) ask(prompt, preset string) (string, error) {
	if strings.TrimSpace(preset) != "" {
		return preset, nil
	}
	fmt.Fprint(p.out, prompt)
	line, ok := <-p.lines
	if !ok {
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(line), nil
}

func (p *player) answerLoop(ctx context.Context, session *challenge.Session, handoff *challenge.Handoff, failed <-chan error) error {
	p.show(session)
	var pending []string
	collecting := false
	lines := p.lines

	for {
		select {
		case <-handoff.Ready():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-p.resumed:
			session.OnVisibilityChange(true)
		case err := <-failed:
			// nobody is left to type :s
			if lines == nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				// input closed: hand in what we have
				lines = nil
				if _, err := session.Submit(ctx); err != nil {
					return err
				}
				continue
			}
			q, _, _ := session.Current()
			if collecting {
				if strings.TrimSpace(line) == "." {
					collecting = false
					p.record(session, q.ID, strings.Join(pending, "\n"))
					pending = nil
					continue
				}
				pending = append(pending, line)
				continue
			}
			if !strings.HasPrefix(line, ":") {
				if q.Type() == domain.TypeSyntax {
					collecting = true
					pending = append(pending[:0], line)
					continue
				}
				p.record(session, q.ID, line)
				continue
			}
			if err := p.command(ctx, session, strings.TrimSpace(line)); err != nil {
				fmt.Fprintf(p.out, "%v\n", err)
			}
		}
	}
}

func (p *player) record(session *challenge.Session, questionID, answer string) {
	if err := session.SetAnswer(questionID, answer); err != nil {
		fmt.Fprintf(p.out, "%v\n", err)
		return
	}
	_, idx, _ := session.Current()
	if idx+1 < len(session.Questions()) {
		_ = session.Navigate(idx + 1)
	}
	p.show(session)
}

func (p *player) command(ctx context.Context, session *challenge.Session, line string) error {
	fields := strings.Fields(line)
	_, idx, _ := session.Current()
	switch fields[0] {
	case ":n":
		if err := session.Navigate(idx + 1); err != nil {
			return err
		}
	case ":p":
		if err := session.Navigate(idx - 1); err != nil {
			return err
		}
	case ":g":
		if len(fields) < 2 {
			return fmt.Errorf("usage: :g N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("usage: :g N")
		}
		if err := session.Navigate(n - 1); err != nil {
			return err
		}
	case ":t":
		fmt.Fprintf(p.out, "%s left, %d/%d answered\n", formatClock(session.TimeLeft()), session.AnsweredCount(), len(session.Questions()))
		return nil
	case ":s":
		fmt.Fprintln(p.out, "Submitting...")
		_, err := session.Submit(ctx)
		return err
	default:
		fmt.Fprintln(p.out, playHelp)
		return nil
	}
	p.show(session)
	return nil
}

func (p *player) show(session *challenge.Session) {
	q, idx, ok := session.Current()
	if !ok {
		return
	}
	total := len(session.Questions())
	fmt.Fprintf(p.out, "\n[%d/%d] %s (%d pts) %s left\n", idx+1, total, q.Title, q.Points, formatClock(session.TimeLeft()))
	if q.Description != "" {
		fmt.Fprintln(p.out, q.Description)
	}
	switch body := q.Body.(type) {
	case domain.SyntaxBody:
		fmt.Fprintf(p.out, "--- %s ---\n%s\n---\n", body.Language, body.BuggyCode)
	case domain.MCQBody:
		if body.CodeSnippet != "" {
			fmt.Fprintf(p.out, "--- %s ---\n%s\n---\n", body.Language, body.CodeSnippet)
		}
		for i, option := range body.Options {
			fmt.Fprintf(p.out, "  %d) %s\n", i, option)
		}
	case domain.CaseStudyBody:
		fmt.Fprintln(p.out, body.Scenario)
	}
	if current := session.Answer(q.ID); current != "" {
		fmt.Fprintf(p.out, "Current answer: %s\n", current)
	}
}

func (p *player) printResult(result domain.Result) {
	correct, incorrect, skipped := result.Tally()
	fmt.Fprintf(p.out, "\nWell done, %s!\n", result.Name)
	fmt.Fprintf(p.out, "Score: %d/%d (%d%%)\n", result.Score, result.TotalPoints, result.Percentage())
	fmt.Fprintf(p.out, "Correct: %d  Incorrect: %d  Skipped: %d\n", correct, incorrect, skipped)
	fmt.Fprintf(p.out, "Time taken: %s\n", formatClock(time.Duration(result.TimeTaken)*time.Second))
}

// readLines feeds input lines to a channel that closes at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// formatClock renders d as MM:SS.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
