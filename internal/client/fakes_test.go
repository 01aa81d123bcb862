package client_test

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/quizzy-go-api/internal/models"
	"github.com/noah-isme/quizzy-go-api/pkg/identity"
)

type fakeProvider struct {
	mu          sync.Mutex
	signInErr   error
	createErr   error
	signInCalls int
	createCalls int
	signOuts    int
	lastEmail   string
	lastPass    string
	user        *identity.User
	listeners   map[int]func(*identity.User)
	nextID      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: make(map[int]func(*identity.User))}
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (identity.User, error) {
	p.mu.Lock()
	p.signInCalls++
	p.lastEmail, p.lastPass = email, password
	err := p.signInErr
	p.mu.Unlock()
	if err != nil {
		return identity.User{}, err
	}
	return p.setUser(email), nil
}

func (p *fakeProvider) CreateUserWithPassword(_ context.Context, email, password string) (identity.User, error) {
	p.mu.Lock()
	p.createCalls++
	p.lastEmail, p.lastPass = email, password
	err := p.createErr
	p.mu.Unlock()
	if err != nil {
		return identity.User{}, err
	}
	return p.setUser(email), nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.user = nil
	p.mu.Unlock()
	p.emit(nil)
	return nil
}

func (p *fakeProvider) CurrentUser() (identity.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return identity.User{}, false
	}
	return *p.user, true
}

func (p *fakeProvider) AddSessionListener(fn func(*identity.User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	user := p.user
	p.mu.Unlock()

	fn(user)
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signInCalls + p.createCalls
}

func (p *fakeProvider) setUser(email string) identity.User {
	user := identity.User{LocalID: "1", Email: email, IDToken: "token", SessionID: "sid"}
	p.mu.Lock()
	p.user = &user
	p.mu.Unlock()
	p.emit(&user)
	return user
}

func (p *fakeProvider) emit(user *identity.User) {
	p.mu.Lock()
	listeners := make([]func(*identity.User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(user)
	}
}

type fetchResult struct {
	snapshot models.DashboardSnapshot
	err      error
}

// scriptedSource answers each fetch with the next queued result. A nil entry blocks
// until the fetch context ends.
type scriptedSource struct {
	mu      sync.Mutex
	results []*fetchResult
	calls   int
	started chan struct{}
}

func newScriptedSource(results ...*fetchResult) *scriptedSource {
	return &scriptedSource{results: results, started: make(chan struct{}, 16)}
}

func (s *scriptedSource) FetchDashboard(ctx context.Context) (models.DashboardSnapshot, error) {
	s.mu.Lock()
	index := s.calls
	s.calls++
	var result *fetchResult
	if index < len(s.results) {
		result = s.results[index]
	}
	s.mu.Unlock()
	s.started <- struct{}{}

	if result == nil {
		<-ctx.Done()
		return models.DashboardSnapshot{}, ctx.Err()
	}
	return result.snapshot, result.err
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type emptyError struct{}

func (emptyError) Error() string { return "" }

var errOffline = errors.New("dial tcp: network is unreachable")

func sampleSnapshot(name string) models.DashboardSnapshot {
	var snapshot models.DashboardSnapshot
	snapshot.Student.Name = name
	snapshot.WeeklyOverview.QuizStreak = []models.StreakDay{{Day: "Mon", Status: "done"}, {Day: "Tue", Status: "pending"}}
	snapshot.WeeklyOverview.PerformanceByTopic = []models.TopicPerformance{{Topic: "Algebra", Trend: "down"}}
	return snapshot
}
