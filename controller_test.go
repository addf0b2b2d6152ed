package loadable

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, att *Attempt) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, att.Wait(ctx), "attempt did not resolve in time")
}

func currentAttempt[T any](c *Controller[T]) *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func recvSnap[T any](t *testing.T, ch <-chan Snapshot[T]) Snapshot[T] {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Snapshot[T]{}
	}
}

func TestLazyActivation(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	})

	require.EqualValues(t, 0, calls.Load(), "no observers, no fetch")

	sub := c.Observe(func(Snapshot[int]) {})
	waitDone(t, c.LoadIfNeeded())
	require.EqualValues(t, 1, calls.Load())

	sub2 := c.Observe(func(Snapshot[int]) {})
	waitDone(t, c.LoadIfNeeded())
	assert.EqualValues(t, 1, calls.Load(), "second observer must not re-fetch")

	snap := c.Read()
	assert.Equal(t, 42, snap.Value)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, PhaseHasData, snap.Phase)

	sub.Cancel()
	sub2.Cancel()
}

func TestSingleFlight(t *testing.T) {
	var seq atomic.Int32
	releases := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}
	c := New(func(ctx context.Context) (int, error) {
		n := int(seq.Add(1))
		<-releases[n-1]
		return n, nil
	})

	att1 := c.LoadIfNeeded()
	c.RequestRefresh(RefreshAlways)
	att2 := currentAttempt(c)
	c.RequestRefresh(RefreshAlways)
	att3 := currentAttempt(c)

	// The last-started fetch completes first and commits.
	close(releases[2])
	waitDone(t, att3)
	snap := c.Read()
	require.Equal(t, 3, snap.Value)
	require.Equal(t, 1, snap.Version)

	// Earlier fetches complete later; their results are discarded.
	close(releases[0])
	close(releases[1])
	waitDone(t, att1)
	waitDone(t, att2)

	snap = c.Read()
	assert.Equal(t, 3, snap.Value)
	assert.Equal(t, 1, snap.Version)
	assert.False(t, snap.Loading)
}

func TestStaleValueRetention(t *testing.T) {
	errBoom := errors.New("boom")
	var fail atomic.Bool
	c := New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errBoom
		}
		return 7, nil
	})

	waitDone(t, c.LoadIfNeeded())
	require.Equal(t, 7, c.Read().Value)

	fail.Store(true)
	c.RequestRefresh(RefreshAlways)
	waitDone(t, currentAttempt(c))

	snap := c.Read()
	assert.Equal(t, 7, snap.Value, "prior value retained on failure")
	assert.True(t, snap.HasValue)
	assert.ErrorIs(t, snap.Err, errBoom)
	assert.Equal(t, PhaseHasData, snap.Phase, "usable value wins over a later failure")
	assert.Equal(t, 1, snap.Version, "failed fetch must not bump the version")
}

func TestFailedPhaseWithoutValue(t *testing.T) {
	errBoom := errors.New("boom")
	c := New(func(ctx context.Context) (int, error) {
		return 0, errBoom
	})

	waitDone(t, c.LoadIfNeeded())

	snap := c.Read()
	assert.False(t, snap.HasValue)
	assert.ErrorIs(t, snap.Err, errBoom)
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Equal(t, 0, snap.Version)
}

func TestVersionMonotonicityAndReset(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})

	waitDone(t, c.LoadIfNeeded())
	c.RequestRefresh(RefreshAlways)
	waitDone(t, currentAttempt(c))
	require.Equal(t, 2, c.Read().Version)

	c.BumpVersion()
	require.Equal(t, 3, c.Read().Version)

	// Unobserved reset clears state and does not re-fetch.
	c.RequestRefresh(RefreshReset)
	snap := c.Read()
	assert.Equal(t, 0, snap.Version)
	assert.False(t, snap.HasValue)
	assert.Nil(t, snap.Err)
	assert.False(t, snap.Loading)
	assert.Equal(t, PhaseNoDataYet, snap.Phase)

	// The next LoadIfNeeded issues a fresh fetch.
	waitDone(t, c.LoadIfNeeded())
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 1, c.Read().Version)
}

func TestRefreshIfErroredNoopWithoutError(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	att := c.LoadIfNeeded()
	waitDone(t, att)

	c.RequestRefresh(RefreshIfErrored)
	assert.Same(t, att, currentAttempt(c), "no new attempt without an error")
	assert.EqualValues(t, 1, calls.Load())
}

func TestRefreshIfErroredRetriesAfterFailure(t *testing.T) {
	errBoom := errors.New("boom")
	var fail atomic.Bool
	fail.Store(true)
	c := New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errBoom
		}
		return 9, nil
	})

	waitDone(t, c.LoadIfNeeded())
	require.Error(t, c.Read().Err)

	fail.Store(false)
	c.RequestRefresh(RefreshIfErrored)
	waitDone(t, currentAttempt(c))

	snap := c.Read()
	assert.NoError(t, snap.Err)
	assert.Equal(t, 9, snap.Value)
}

func TestRefreshIfIdleNoopWhileLoading(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	c := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-block
		return 1, nil
	})

	att := c.LoadIfNeeded()
	c.RequestRefresh(RefreshIfIdle)
	require.Same(t, att, currentAttempt(c), "no new attempt while loading")

	close(block)
	waitDone(t, att)

	c.RequestRefresh(RefreshIfIdle)
	waitDone(t, currentAttempt(c))
	assert.EqualValues(t, 2, calls.Load())
}

func TestResetWhileObservedRefetches(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	c := New(func(ctx context.Context) (int, error) {
		if calls.Add(1) > 1 {
			<-block
		}
		return int(calls.Load()), nil
	})

	sub := c.Observe(func(Snapshot[int]) {})
	defer sub.Cancel()
	waitDone(t, c.LoadIfNeeded())
	require.Equal(t, 1, c.Read().Version)

	c.RequestRefresh(RefreshReset)

	// State is cleared before the re-fetch lands.
	snap := c.Read()
	assert.Equal(t, 0, snap.Version)
	assert.False(t, snap.HasValue)
	assert.True(t, snap.Loading, "observed reset immediately re-fetches")

	close(block)
	waitDone(t, currentAttempt(c))
	snap = c.Read()
	assert.Equal(t, 1, snap.Version)
	assert.EqualValues(t, 2, calls.Load())
}

func TestDeactivationPreservesState(t *testing.T) {
	c := New(func(ctx context.Context) (int, error) {
		return 5, nil
	})

	sub := c.Observe(func(Snapshot[int]) {})
	waitDone(t, c.LoadIfNeeded())
	sub.Cancel()

	snap := c.Read()
	assert.Equal(t, 5, snap.Value)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, PhaseHasData, snap.Phase)
}

type fakeRefresher struct {
	mu          sync.Mutex
	target      Refreshable
	activated   int
	deactivated int
}

func (f *fakeRefresher) Attach(target Refreshable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
}

func (f *fakeRefresher) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated++
}

func (f *fakeRefresher) Deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated++
}

func (f *fakeRefresher) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activated, f.deactivated
}

func TestRefresherLifecycle(t *testing.T) {
	c := New(func(ctx context.Context) (int, error) {
		return 1, nil
	})

	fr := &fakeRefresher{}
	c.AttachRefresher(fr)
	require.NotNil(t, fr.target, "attach hands the refresher its target")

	act, deact := fr.counts()
	require.Equal(t, 0, act, "not activated before the first observer")
	require.Equal(t, 0, deact)

	sub1 := c.Observe(func(Snapshot[int]) {})
	act, _ = fr.counts()
	require.Equal(t, 1, act)

	sub2 := c.Observe(func(Snapshot[int]) {})
	act, _ = fr.counts()
	require.Equal(t, 1, act, "second observer must not re-activate")

	// Attaching while observed activates immediately.
	late := &fakeRefresher{}
	c.AttachRefresher(late)
	act, _ = late.counts()
	require.Equal(t, 1, act)

	sub1.Cancel()
	_, deact = fr.counts()
	require.Equal(t, 0, deact, "one observer remains")

	sub2.Cancel()
	_, deact = fr.counts()
	require.Equal(t, 1, deact)
	_, deact = late.counts()
	require.Equal(t, 1, deact)
}

func TestBumpVersionWithoutFetchPanics(t *testing.T) {
	c := New(func(ctx context.Context) (int, error) {
		return 1, nil
	})

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ie *InvariantError
		require.ErrorAs(t, r.(error), &ie)
		assert.Equal(t, "BumpVersion", ie.Op)
		assert.NotEmpty(t, ie.StackTrace)
	}()
	c.BumpVersion()
}

func TestLoadingNotificationPrecedesCompletion(t *testing.T) {
	snaps := make(chan Snapshot[int], 16)
	block := make(chan struct{})
	c := New(func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})

	sub := c.Observe(func(s Snapshot[int]) { snaps <- s })
	defer sub.Cancel()

	first := recvSnap(t, snaps)
	assert.True(t, first.Loading)
	assert.Equal(t, 0, first.Version)

	close(block)
	second := recvSnap(t, snaps)
	assert.False(t, second.Loading)
	assert.Equal(t, 1, second.Value)
	assert.Equal(t, 1, second.Version)
}

func TestObserveNeverNotifiesSynchronously(t *testing.T) {
	// If registration notified on the registering stack, the callback's
	// Lock below would deadlock against the Lock held around Observe.
	var mu sync.Mutex
	delivered := make(chan struct{}, 1)

	c := New(func(ctx context.Context) (int, error) {
		return 1, nil
	})

	mu.Lock()
	sub := c.Observe(func(Snapshot[int]) {
		mu.Lock()
		mu.Unlock() //nolint:staticcheck
		select {
		case delivered <- struct{}{}:
		default:
		}
	})
	mu.Unlock()
	defer sub.Cancel()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("observer was never notified")
	}
}

func TestLoadIfNeededAbsorbsFailures(t *testing.T) {
	errBoom := errors.New("boom")
	c := New(func(ctx context.Context) (int, error) {
		return 0, errBoom
	})

	att := c.LoadIfNeeded()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, att.Wait(ctx), "fetch failures never surface through the attempt")
	assert.ErrorIs(t, c.Read().Err, errBoom)
}

func TestCloseCancelsInFlight(t *testing.T) {
	block := make(chan struct{})
	c := New(func(ctx context.Context) (int, error) {
		defer close(block)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	att := c.LoadIfNeeded()
	c.Close()
	waitDone(t, att)
	<-block

	snap := c.Read()
	assert.False(t, snap.HasValue, "cancelled result is discarded")
	assert.Nil(t, snap.Err, "cancellation never surfaces as an error")

	c.RequestRefresh(RefreshAlways)
	assert.Same(t, att, currentAttempt(c), "no fetches after Close")
}

func TestUnobservedCompletionStillCommits(t *testing.T) {
	block := make(chan struct{})
	c := New(func(ctx context.Context) (int, error) {
		<-block
		return 11, nil
	})

	sub := c.Observe(func(Snapshot[int]) {})
	att := c.LoadIfNeeded()
	sub.Cancel()

	close(block)
	waitDone(t, att)

	snap := c.Read()
	assert.Equal(t, 11, snap.Value, "a fetch started while observed commits while unobserved")
	assert.Equal(t, 1, snap.Version)
}

func TestHasDataPredicate(t *testing.T) {
	c := New(func(ctx context.Context) ([]string, error) {
		return nil, nil
	}, WithHasData(func(s []string) bool { return len(s) > 0 }))

	waitDone(t, c.LoadIfNeeded())

	snap := c.Read()
	assert.True(t, snap.HasValue)
	assert.Equal(t, PhaseNoData, snap.Phase, "empty success is no-data, not has-data")
}
