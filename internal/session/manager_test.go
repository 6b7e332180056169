package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/profile"
	"github.com/ashureev/growthdesk/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type stubConnector struct{}

func (stubConnector) ChatReply(context.Context, generation.ChatRequest) (string, error) {
	return "reply", nil
}

func (stubConnector) TextContent(_ context.Context, details string) (string, error) {
	return "draft: " + details, nil
}

func (stubConnector) PromptPair(context.Context, string) (domain.PromptPair, error) {
	return domain.PromptPair{ImagePrompt: "bread"}, nil
}

func (stubConnector) Image(context.Context, string) ([]byte, error) {
	return []byte("img"), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(hooks Hooks) (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewManager(Config{Connector: stubConnector{}, Hooks: hooks})
	m.now = clock.Now
	return m, clock
}

func TestGetCreatesOncePerSession(t *testing.T) {
	var created []*Instance
	m, _ := newTestManager(Hooks{OnCreate: func(i *Instance) { created = append(created, i) }})

	a := m.Get("user-1", "tab-a")
	again := m.Get("user-1", "tab-a")
	b := m.Get("user-1", "tab-b")
	other := m.Get("user-2", "tab-a")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.NotSame(t, a, other)
	assert.Len(t, created, 3)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, a.ID, a.Workflow.ID())
	assert.Equal(t, a.ID, a.Chat.ID())
}

func TestInstancesDoNotShareState(t *testing.T) {
	m, _ := newTestManager(Hooks{})
	a := m.Get("user-1", "tab-a")
	b := m.Get("user-1", "tab-b")

	_, err := a.Workflow.SubmitInput(context.Background(), "bakery")
	require.NoError(t, err)
	_, err = a.Chat.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, workflow.StageContentReview, a.Workflow.Snapshot().Stage)
	assert.Equal(t, workflow.StageInput, b.Workflow.Snapshot().Stage)
	assert.Len(t, a.Chat.Turns(), 3)
	assert.Len(t, b.Chat.Turns(), 1)
}

func TestCloseAndReset(t *testing.T) {
	var closed []*Instance
	m, _ := newTestManager(Hooks{OnClose: func(i *Instance) { closed = append(closed, i) }})

	first := m.Get("user-1", "tab-a")
	fresh := m.Reset("user-1", "tab-a")
	assert.NotSame(t, first, fresh)
	require.Len(t, closed, 1)
	assert.Same(t, first, closed[0])

	m.Close("user-1", "tab-a")
	_, ok := m.Lookup("user-1", "tab-a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	m.Close("user-1", "missing")
	assert.Len(t, closed, 2)
}

func TestCloseUser(t *testing.T) {
	m, _ := newTestManager(Hooks{})
	m.Get("user-1", "tab-a")
	m.Get("user-1", "tab-b")
	m.Get("user-2", "tab-a")

	m.CloseUser("user-1")
	assert.Equal(t, 1, m.Len())
}

func TestSweepEvictsIdleInstances(t *testing.T) {
	m, clock := newTestManager(Hooks{})
	m.Get("user-1", "old")
	clock.Advance(30 * time.Minute)
	m.Get("user-1", "fresh")
	clock.Advance(31 * time.Minute)

	evicted := m.Sweep(time.Hour)
	require.Len(t, evicted, 1)
	assert.Equal(t, "old", evicted[0].SessionID)

	_, ok := m.Lookup("user-1", "fresh")
	assert.True(t, ok)
}

func TestProfileSourcePerUser(t *testing.T) {
	var asked []string
	m := NewManager(Config{
		Connector: stubConnector{},
		Profile: func(userID string) profile.Source {
			asked = append(asked, userID)
			return profile.Static{domain.KeyBusinessType: "Bakery"}
		},
	})
	m.Get("user-1", "tab-a")
	assert.Equal(t, []string{"user-1"}, asked)
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) CleanupInactiveUsers(context.Context, time.Duration) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return 1, nil
}

func (c *countingCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSweeperStopsWithContext(t *testing.T) {
	m := NewManager(Config{Connector: stubConnector{}})
	cleaner := &countingCleaner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartSweeper(ctx, m, SweeperConfig{
		IdleTTL:  time.Hour,
		Interval: 5 * time.Millisecond,
		Users:    cleaner,
		UserTTL:  24 * time.Hour,
	})

	require.Eventually(t, func() bool { return cleaner.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type countingObserver struct {
	mu sync.Mutex
	n  int
}

func (c *countingObserver) Observe(workflow.Event) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingObserver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestConcurrentGetSeesSubscribedInstance(t *testing.T) {
	obs := &countingObserver{}
	hookStarted := make(chan struct{})
	m, _ := newTestManager(Hooks{OnCreate: func(i *Instance) {
		close(hookStarted)
		time.Sleep(20 * time.Millisecond)
		i.Workflow.Subscribe(obs)
	}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.Get("user-1", "tab-a")
	}()
	go func() {
		defer wg.Done()
		<-hookStarted
		_, err := m.Get("user-1", "tab-a").Workflow.Reset()
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, 1, obs.count(), "transition on a fresh instance must reach hook observers")
	assert.Equal(t, 1, m.Len())
}
