package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/evaluator"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSessionClosed     = errors.New("session closed")
	ErrNoSuchQuestion    = errors.New("question index out of range")
)

// State is a step of the participant flow.
type State int

const (
	StateUnregistered State = iota
	StateSectionSelected
	StateAwaitingDetails
	StateInChallenge
	StateSubmitting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateSectionSelected:
		return "section-selected"
	case StateAwaitingDetails:
		return "awaiting-details"
	case StateInChallenge:
		return "in-challenge"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the remote participant store.
type Backend interface {
	RegistrationOpen(ctx context.Context) (bool, error)
	CreateParticipant(ctx context.Context, reg domain.Registration) (string, error)
	SubmitParticipant(ctx context.Context, id string, sub domain.Submission) error
}

// QuestionLoader yields the participant-facing question list.
type QuestionLoader interface {
	Load(ctx context.Context, section domain.Section, force bool) (LoadResult, error)
}

// ResultsSink receives the results bundle once the challenge completes.
type ResultsSink interface {
	Deliver(result domain.Result)
}

// SessionState is what survives a page reload within one browser session.
type SessionState struct {
	ParticipantID      string         `json:"participantId"`
	ParticipantName    string         `json:"participantName"`
	ParticipantSection domain.Section `json:"participantSection"`
}

// SessionOptions configures a Session. Zero values fall back to defaults.
type SessionOptions struct {
	Duration     time.Duration
	TickInterval time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
	// OnTick receives the remaining time on every timer recomputation.
	OnTick func(left time.Duration)
	// OnSubmitError is told about failed automatic submissions.
	OnSubmitError func(err error)
}

// Session drives one participant from section choice to results.
type Session struct {
	backend  Backend
	loader   QuestionLoader
	sink     ResultsSink
	logger   *zap.Logger
	now      func() time.Time
	duration time.Duration
	interval time.Duration
	onTick   func(time.Duration)
	onError  func(error)

	mu        sync.Mutex
	state     State
	section   domain.Section
	id        string
	name      string
	startedAt time.Time
	questions []domain.Question
	current   int
	answers   map[string]string
	timer     *Timer
	// gen changes on Close; completions from an older generation are dropped.
	gen    uint64
	closed bool
	runCtx context.Context
	cancel context.CancelFunc
}

func NewSession(backend Backend, loader QuestionLoader, sink ResultsSink, opts SessionOptions) *Session {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		backend:  backend,
		loader:   loader,
		sink:     sink,
		logger:   opts.Logger,
		now:      opts.Now,
		duration: opts.Duration,
		interval: opts.TickInterval,
		onTick:   opts.OnTick,
		onError:  opts.OnSubmitError,
		answers:  make(map[string]string),
		runCtx:   runCtx,
		cancel:   cancel,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the persisted participant identity.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{ParticipantID: s.id, ParticipantName: s.name, ParticipantSection: s.section}
}

// SelectSection picks the participant's track. It may be changed until registration starts.
func (s *Session) SelectSection(section domain.Section) error {
	if !section.Selectable() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSection, section)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnregistered && s.state != StateSectionSelected {
		return fmt.Errorf("%w: select section in %s", ErrInvalidTransition, s.state)
	}
	s.section = section
	s.state = StateSectionSelected
	return nil
}

// Register creates the participant remotely. The session only enters the
// challenge once the participant id is known.
func (s *Session) Register(ctx context.Context, name, studentID string) error {
	name, studentID = strings.TrimSpace(name), strings.TrimSpace(studentID)
	if name == "" || studentID == "" {
		return fmt.Errorf("%w: name and student id are required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateSectionSelected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: register in %s", ErrInvalidTransition, state)
	}
	s.state = StateAwaitingDetails
	gen, section := s.gen, s.section
	s.mu.Unlock()

	startedAt := s.now()
	id, err := s.register(ctx, domain.Registration{
		Name:      name,
		StudentID: studentID,
		Section:   section,
		StartedAt: domain.MillisOf(startedAt),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSessionClosed
	}
	if err != nil {
		s.state = StateSectionSelected
		return err
	}
	s.id, s.name, s.startedAt = id, name, startedAt
	s.state = StateInChallenge
	s.logger.Info("participant registered", zap.String("id", id), zap.String("section", string(section)))
	return nil
}

func (s *Session) register(ctx context.Context, reg domain.Registration) (string, error) {
	open, err := s.backend.RegistrationOpen(ctx)
	if err != nil {
		return "", fmt.Errorf("check registration: %w", err)
	}
	if !open {
		return "", domain.ErrRegistrationClosed
	}
	id, err := s.backend.CreateParticipant(ctx, reg)
	if err != nil {
		return "", fmt.Errorf("register participant: %w", err)
	}
	return id, nil
}

// Begin loads the question list and starts the countdown on first call.
// Later calls refresh the questions without restarting the timer.
func (s *Session) Begin(ctx context.Context, force bool) (LoadResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return LoadResult{}, ErrSessionClosed
	}
	if s.state != StateInChallenge {
		state := s.state
		s.mu.Unlock()
		return LoadResult{}, fmt.Errorf("%w: begin in %s", ErrInvalidTransition, state)
	}
	gen, section := s.gen, s.section
	s.mu.Unlock()

	result, err := s.loader.Load(ctx, section, force)
	if err != nil {
		return LoadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the session may have been submitted or torn down while loading
	if s.gen != gen {
		return LoadResult{}, ErrSessionClosed
	}
	if s.state != StateInChallenge {
		return LoadResult{}, fmt.Errorf("%w: load completed in %s", ErrInvalidTransition, s.state)
	}
	s.questions = result.Questions
	if s.current >= len(s.questions) {
		s.current = 0
	}
	if s.timer == nil {
		s.timer = NewTimer(s.duration, s.now(), TimerOptions{
			Interval: s.interval,
			Now:      s.now,
			OnTick:   s.onTick,
			OnExpire: s.expire,
		})
		go s.timer.Run(s.runCtx)
	}
	if result.Warning != nil {
		s.logger.Warn("serving cached questions", zap.Error(result.Warning))
	}
	return result, nil
}

// Questions returns the loaded question list.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Question(nil), s.questions...)
}

// Navigate moves to any question index.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return fmt.Errorf("%w: %d", ErrNoSuchQuestion, index)
	}
	s.current = index
	return nil
}

// Current returns the question on screen and its index.
func (s *Session) Current() (domain.Question, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return domain.Question{}, 0, false
	}
	return s.questions[s.current], s.current, true
}

// SetAnswer records raw answer text in memory. Nothing is sent until Submit.
func (s *Session) SetAnswer(questionID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInChallenge {
		return fmt.Errorf("%w: answer in %s", ErrInvalidTransition, s.state)
	}
	s.answers[questionID] = answer
	return nil
}

// Answer returns the recorded answer for a question.
func (s *Session) Answer(questionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[questionID]
}

// AnsweredCount counts loaded questions with a non-blank answer.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.questions {
		if strings.TrimSpace(s.answers[q.ID]) != "" {
			n++
		}
	}
	return n
}

// TimeLeft reports the remaining budget, the full duration before Begin.
func (s *Session) TimeLeft() time.Duration {
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	if timer == nil {
		return s.duration
	}
	return timer.TimeLeft()
}

// Submit evaluates and stores the answers. Only the first caller submits: a
// second caller while a submission is in flight, or after completion, gets
// false and no error. On failure the session returns to the challenge with
// answers intact.
func (s *Session) Submit(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	switch s.state {
	case StateSubmitting, StateCompleted:
		s.mu.Unlock()
		return false, nil
	case StateInChallenge:
	default:
		state := s.state
		s.mu.Unlock()
		return false, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, state)
	}
	s.state = StateSubmitting

	answers, score, total := evaluator.EvaluateAll(s.questions, s.answers)
	elapsed := s.duration
	if s.timer != nil {
		elapsed = s.timer.Elapsed()
	}
	sub := domain.Submission{
		Answers:     answers,
		Score:       score,
		TotalPoints: total,
		CompletedAt: domain.MillisOf(s.now()),
		TimeTaken:   int(elapsed.Round(time.Second) / time.Second),
		Submitted:   true,
	}
	gen, id, name := s.gen, s.id, s.name
	s.mu.Unlock()

	err := s.backend.SubmitParticipant(ctx, id, sub)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	if err != nil {
		s.state = StateInChallenge
		s.mu.Unlock()
		s.logger.Warn("submission failed", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("submit answers: %w", err)
	}
	s.state = StateCompleted
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.logger.Info("challenge submitted", zap.String("id", id), zap.Int("score", score), zap.Int("total_points", total))
	if s.sink != nil {
		s.sink.Deliver(domain.Result{
			Answers:     answers,
			Score:       score,
			TotalPoints: total,
			TimeTaken:   sub.TimeTaken,
			Name:        name,
		})
	}
	return true, nil
}

// expire is the timer's auto-submit.
func (s *Session) expire() {
	if _, err := s.Submit(s.runCtx); err != nil && !errors.Is(err, ErrSessionClosed) {
		if s.onError != nil {
			s.onError(err)
		}
	}
}

// OnVisibilityChange corrects the countdown when the host becomes visible.
func (s *Session) OnVisibilityChange(visible bool) {
	if !visible {
		return
	}
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	if timer != nil {
		timer.Wake()
	}
}

// Close tears the session down. In-flight loads and submissions that finish
// afterwards are ignored, and the timer will not fire.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	s.closed = true
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	s.cancel()
}

// Handoff is a ResultsSink whose result can be taken exactly once.
type Handoff struct {
	mu     sync.Mutex
	result *domain.Result
	ready  chan struct{}
	once   sync.Once
}

func NewHandoff() *Handoff {
	return &Handoff{ready: make(chan struct{})}
}

func (h *Handoff) Deliver(result domain.Result) {
	h.mu.Lock()
	h.result = &result
	h.mu.Unlock()
	h.once.Do(func() { close(h.ready) })
}

// Ready is closed once a result has been delivered.
func (h *Handoff) Ready() <-chan struct{} {
	return h.ready
}

// Take returns the delivered result and clears it. Later calls report false.
func (h *Handoff) Take() (domain.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result == nil {
		return domain.Result{}, false
	}
	result := *h.result
	h.result = nil
	return result, true
}
