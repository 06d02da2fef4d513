package action

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) HandleAction(a Action) {
	*r.log = append(*r.log, r.name+":"+Name(a))
}

func TestDispatcher_RegistrationOrder(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"state", &log}, recorder{"journal", &log})
	d.Register(recorder{"mqtt", &log})

	d.Dispatch(Play{})
	d.Dispatch(Stop{})

	assert.Equal(t, []string{
		"state:play", "journal:play", "mqtt:play",
		"state:stop", "journal:stop", "mqtt:stop",
	}, log)
}

func TestDispatcher_DispatchIf(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"state", &log})

	assert.False(t, d.DispatchIf(func() bool { return false }, Play{}))
	assert.Empty(t, log, "a refused action reaches no handler")

	assert.True(t, d.DispatchIf(func() bool { return true }, Play{}))
	assert.Equal(t, []string{"state:play"}, log)
}

func TestDispatcher_DispatchIfExcludesConcurrentDispatch(t *testing.T) {
	var log []string
	d := NewDispatcher(recorder{"state", &log})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		d.DispatchIf(func() bool {
			close(entered)
			<-release
			return true
		}, Play{})
	}()

	<-entered
	stopped := make(chan struct{})
	go func() {
		d.Dispatch(Stop{})
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Dispatch ran while a DispatchIf condition was being checked")
	default:
	}
	close(release)
	<-done
	<-stopped
	assert.Equal(t, []string{"state:play", "state:stop"}, log)
}

func TestDispatcher_PanicPropagates(t *testing.T) {
	var log []string
	d := NewDispatcher(
		HandlerFunc(func(Action) { panic("reducer bug") }),
		recorder{"after", &log},
	)

	assert.PanicsWithValue(t, "reducer bug", func() { d.Dispatch(Pause{}) })
	assert.Empty(t, log, "handlers after a panicking handler are not called")

	// The dispatcher is still usable: the lock was released.
	d2 := NewDispatcher(recorder{"ok", &log})
	d2.Dispatch(Pause{})
	assert.Equal(t, []string{"ok:pause"}, log)
}

func TestDispatcher_SerializesConcurrentDispatch(t *testing.T) {
	var inFlight, maxInFlight int
	var mu sync.Mutex

	d := NewDispatcher(HandlerFunc(func(Action) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(Play{})
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxInFlight)
}

func TestName(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{QueueCommand{}, "queueCommand"},
		{UpdateCommand{}, "updateCommand"},
		{FailCommand{}, "failCommand"},
		{Play{}, "play"},
		{Pause{}, "pause"},
		{Stop{}, "stop"},
		{AddLabwareOffset{}, "addLabwareOffset"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.action))
	}
}
