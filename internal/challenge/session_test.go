package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

type fakeBackend struct {
	mu      sync.Mutex
	closed  bool
	regErr  error
	subErr  error
	entered chan struct{}
	release chan struct{}
	submits []domain.Submission
}

func (b *fakeBackend) RegistrationOpen(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed, nil
}

func (b *fakeBackend) CreateParticipant(context.Context, domain.Registration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.regErr != nil {
		return "", b.regErr
	}
	return "participant-1", nil
}

func (b *fakeBackend) SubmitParticipant(_ context.Context, _ string, sub domain.Submission) error {
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits = append(b.submits, sub)
	if b.subErr != nil {
		err := b.subErr
		b.subErr = nil
		return err
	}
	return nil
}

func (b *fakeBackend) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submits)
}

type fakeLoader struct {
	questions []domain.Question
	gate      chan struct{}
}

func (l *fakeLoader) Load(ctx context.Context, section domain.Section, _ bool) (LoadResult, error) {
	if l.gate != nil {
		<-l.gate
	}
	return LoadResult{Questions: FilterSection(l.questions, section), Source: SourceRemote}, nil
}

func startedSession(t *testing.T, backend *fakeBackend, loader QuestionLoader, sink ResultsSink, clock *fakeClock) *Session {
	t.Helper()
	session := NewSession(backend, loader, sink, SessionOptions{
		Duration:     30 * time.Minute,
		TickInterval: time.Hour,
		Now:          clock.Now,
	})
	t.Cleanup(session.Close)
	if err := session.SelectSection(domain.SectionPython); err != nil {
		t.Fatalf("select section: %v", err)
	}
	if err := session.Register(context.Background(), "Ada", "S1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := session.Begin(context.Background(), false); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return session
}

func testQuestions() []domain.Question {
	return []domain.Question{question("p1", domain.SectionPython, 1), question("c1", domain.SectionC, 1), question("x1", domain.SectionCommon, 2)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionFlowStates(t *testing.T) {
	clock := newFakeClock()
	session := NewSession(&fakeBackend{}, &fakeLoader{questions: testQuestions()}, nil, SessionOptions{Now: clock.Now, TickInterval: time.Hour})
	defer session.Close()

	if err := session.Register(context.Background(), "Ada", "S1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before section choice, got %v", err)
	}
	if err := session.SelectSection(domain.SectionCommon); !errors.Is(err, domain.ErrInvalidSection) {
		t.Fatalf("common must not be selectable, got %v", err)
	}
	if err := session.SelectSection(domain.SectionC); err != nil {
		t.Fatal(err)
	}
	if err := session.SelectSection(domain.SectionPython); err != nil {
		t.Fatalf("section may change before registering: %v", err)
	}
	if err := session.Register(context.Background(), "  ", "S1"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := session.Register(context.Background(), "Ada", "S1"); err != nil {
		t.Fatal(err)
	}
	if session.State() != StateInChallenge {
		t.Fatalf("expected in-challenge, got %s", session.State())
	}
	if got := session.Snapshot(); got.ParticipantID != "participant-1" || got.ParticipantSection != domain.SectionPython {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if session.TimeLeft() != DefaultDuration {
		t.Fatalf("timer must not run before begin")
	}

	if _, err := session.Begin(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if got := ids(session.Questions()); len(got) != 2 || got[0] != "p1" || got[1] != "x1" {
		t.Fatalf("unexpected questions %v", got)
	}
	if err := session.Navigate(2); !errors.Is(err, ErrNoSuchQuestion) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if err := session.Navigate(1); err != nil {
		t.Fatal(err)
	}
	if q, idx, ok := session.Current(); !ok || idx != 1 || q.ID != "x1" {
		t.Fatalf("unexpected current question %v %d", q.ID, idx)
	}
	_ = session.SetAnswer("p1", "1")
	_ = session.SetAnswer("x1", "   ")
	if session.AnsweredCount() != 1 {
		t.Fatalf("blank answers must not count")
	}
}

func TestRegisterRevertsWhenClosed(t *testing.T) {
	backend := &fakeBackend{closed: true}
	session := NewSession(backend, &fakeLoader{}, nil, SessionOptions{})
	defer session.Close()

	_ = session.SelectSection(domain.SectionC)
	if err := session.Register(context.Background(), "Ada", "S1"); !errors.Is(err, domain.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed, got %v", err)
	}
	if session.State() != StateSectionSelected {
		t.Fatalf("expected section-selected after failure, got %s", session.State())
	}
}

func TestManualSubmitAndExpiryWriteOnce(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{entered: make(chan struct{}, 1), release: make(chan struct{})}
	handoff := NewHandoff()
	session := startedSession(t, backend, &fakeLoader{questions: testQuestions()}, handoff, clock)
	_ = session.SetAnswer("p1", "1")

	manual := make(chan bool, 1)
	go func() {
		ok, err := session.Submit(context.Background())
		if err != nil {
			t.Errorf("manual submit: %v", err)
		}
		manual <- ok
	}()
	<-backend.entered

	// the countdown runs out while the manual submission is in flight
	clock.Advance(31 * time.Minute)
	session.OnVisibilityChange(true)
	waitFor(t, "expiry", func() bool { return session.timer.Expired() })

	if ok, err := session.Submit(context.Background()); ok || err != nil {
		t.Fatalf("second submitter must be a no-op, got %v %v", ok, err)
	}
	close(backend.release)

	if !<-manual {
		t.Fatalf("manual submit should have won")
	}
	<-handoff.Ready()
	if n := backend.submitCount(); n != 1 {
		t.Fatalf("expected exactly one backend write, got %d", n)
	}
	if session.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
	result, ok := handoff.Take()
	if !ok || result.Score != 10 || result.TotalPoints != 20 || result.Name != "Ada" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExpiryAutoSubmits(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{}
	handoff := NewHandoff()
	session := startedSession(t, backend, &fakeLoader{questions: testQuestions()}, handoff, clock)

	clock.Advance(40 * time.Minute)
	session.OnVisibilityChange(true)

	select {
	case <-handoff.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("expiry did not submit")
	}
	result, _ := handoff.Take()
	if result.TimeTaken != 1800 {
		t.Fatalf("time taken must clamp to the budget, got %d", result.TimeTaken)
	}
	if correct, incorrect, skipped := result.Tally(); correct != 0 || incorrect != 0 || skipped != 2 {
		t.Fatalf("unexpected tally %d/%d/%d", correct, incorrect, skipped)
	}
}

func TestFailedSubmitKeepsAnswers(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{subErr: errors.New("service unavailable")}
	session := startedSession(t, backend, &fakeLoader{questions: testQuestions()}, nil, clock)
	_ = session.SetAnswer("p1", "1")

	if ok, err := session.Submit(context.Background()); ok || err == nil {
		t.Fatalf("expected failure, got %v %v", ok, err)
	}
	if session.State() != StateInChallenge {
		t.Fatalf("expected revert to in-challenge, got %s", session.State())
	}
	if session.Answer("p1") != "1" {
		t.Fatalf("answers must survive a failed submit")
	}
	if err := session.SetAnswer("x1", "0"); err != nil {
		t.Fatalf("answers must stay editable: %v", err)
	}

	clock.Advance(90 * time.Second)
	if ok, err := session.Submit(context.Background()); !ok || err != nil {
		t.Fatalf("retry failed: %v %v", ok, err)
	}
	last := backend.submits[len(backend.submits)-1]
	if last.Score != 10 || last.TimeTaken != 90 || !last.Submitted {
		t.Fatalf("unexpected submission %+v", last)
	}
	if err := session.SetAnswer("p1", "0"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed sessions are frozen, got %v", err)
	}
}

func TestSubmitAfterCloseIsRejected(t *testing.T) {
	clock := newFakeClock()
	backend := &fakeBackend{}
	handoff := NewHandoff()
	session := startedSession(t, backend, &fakeLoader{questions: testQuestions()}, handoff, clock)
	_ = session.SetAnswer("p1", "1")
	session.Close()

	if ok, err := session.Submit(context.Background()); ok || !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v %v", ok, err)
	}
	if n := backend.submitCount(); n != 0 {
		t.Fatalf("closed sessions must not write, got %d writes", n)
	}
	if session.State() != StateInChallenge {
		t.Fatalf("expected state untouched, got %s", session.State())
	}
	if _, ok := handoff.Take(); ok {
		t.Fatalf("no result may be handed off")
	}
}

func TestBeginAfterCloseIsIgnored(t *testing.T) {
	clock := newFakeClock()
	loader := &fakeLoader{questions: testQuestions(), gate: make(chan struct{})}
	session := NewSession(&fakeBackend{}, loader, nil, SessionOptions{Now: clock.Now})
	_ = session.SelectSection(domain.SectionPython)
	if err := session.Register(context.Background(), "Ada", "S1"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := session.Begin(context.Background(), false)
		done <- err
	}()
	session.Close()
	close(loader.gate)

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
	if len(session.Questions()) != 0 {
		t.Fatalf("late load must not be applied")
	}
	if session.TimeLeft() != DefaultDuration {
		t.Fatalf("timer must not start after close")
	}
}

func TestHandoffDeliversOnce(t *testing.T) {
	handoff := NewHandoff()
	if _, ok := handoff.Take(); ok {
		t.Fatalf("nothing delivered yet")
	}
	handoff.Deliver(domain.Result{Name: "Ada", Score: 5})
	handoff.Deliver(domain.Result{Name: "Ada", Score: 5})
	<-handoff.Ready()

	if result, ok := handoff.Take(); !ok || result.Score != 5 {
		t.Fatalf("unexpected take %+v %v", result, ok)
	}
	if _, ok := handoff.Take(); ok {
		t.Fatalf("result must be taken only once")
	}
}
