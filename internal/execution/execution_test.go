package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/commands"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/labware"
	"github.com/roach88/labengine/internal/state"
	"github.com/roach88/labengine/internal/testutil"
)

const waitTimeout = 5 * time.Second

type harness struct {
	store      *state.Store
	dispatcher *action.Dispatcher
	sim        *hardware.Simulator
	executor   *CommandExecutor
	worker     *QueueWorker
	clock      *testutil.StepClock
	queued     int
}

func newHarness(t *testing.T, cfg state.Config, hook hardware.Hook) *harness {
	t.Helper()
	lib := labware.Builtin()
	trash, err := lib.Get(labware.Namespace, labware.FixedTrash, 1)
	require.NoError(t, err)

	store := state.NewStore(cfg, state.WithFixedLabware(state.FixedLabware{
		ID:         labware.FixedTrashID,
		Location:   ir.DeckSlotLocation("12"),
		Definition: trash,
	}))
	dispatcher := action.NewDispatcher(store)

	var opts []hardware.SimulatorOption
	if hook != nil {
		opts = append(opts, hardware.WithHook(hook))
	}
	sim := hardware.NewSimulator(opts...)
	ids := testutil.NewSequenceIDGenerator("gen")
	clock := testutil.NewStepClock()

	handlers := NewHandlers(store, dispatcher, sim, lib, ids)
	executor := NewCommandExecutor(store, dispatcher, handlers, ids, clock)
	return &harness{
		store:      store,
		dispatcher: dispatcher,
		sim:        sim,
		executor:   executor,
		worker:     NewQueueWorker(store, executor, nil),
		clock:      clock,
	}
}

func (h *harness) queue(params ir.CommandParams) string {
	h.queued++
	id := fmt.Sprintf("cmd-%d", h.queued)
	h.dispatcher.Dispatch(action.QueueCommand{
		CommandID: id,
		CreatedAt: h.clock.Now(),
		Request:   ir.NewCommandRequest(params),
	})
	return id
}

func (h *harness) run(t *testing.T, params ir.CommandParams) ir.Command {
	t.Helper()
	id := h.queue(params)
	require.NoError(t, h.executor.Execute(context.Background(), id))
	cmd, err := h.store.View().Commands.Get(id)
	require.NoError(t, err)
	return cmd
}

func (h *harness) waitFor(t *testing.T, cond func(state.View) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.store.WaitFor(ctx, cond))
}

func loadPlate(slot ir.DeckSlotName, id string) *ir.LoadLabwareParams {
	return &ir.LoadLabwareParams{
		Location:  ir.DeckSlotLocation(slot),
		LoadName:  labware.Wellplate96Flat,
		Namespace: labware.Namespace,
		Version:   1,
		LabwareID: id,
	}
}

func TestExecuteLoadLabware(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	cmd := h.run(t, loadPlate("1", ""))
	require.Equal(t, ir.CommandSucceeded, cmd.Status)
	require.NotNil(t, cmd.StartedAt)
	require.NotNil(t, cmd.CompletedAt)
	assert.True(t, cmd.StartedAt.Before(*cmd.CompletedAt))

	result, ok := cmd.Result.(*ir.LoadLabwareResult)
	require.True(t, ok)
	assert.Equal(t, "gen-1", result.LabwareID)
	assert.Nil(t, result.OffsetID)

	loaded, err := h.store.View().Labware.Get(result.LabwareID)
	require.NoError(t, err)
	assert.Equal(t, ir.LabwareURI(labware.Namespace, labware.Wellplate96Flat, 1), loaded.DefinitionURI)
	assert.Nil(t, loaded.OffsetID)
	assert.Equal(t, ir.DeckSlotLocation("1"), loaded.Location)
}

func TestExecuteLoadLabwareRejectsDuplicateID(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	first := h.run(t, loadPlate("1", "plate"))
	require.Equal(t, ir.CommandSucceeded, first.Status)

	second := h.run(t, loadPlate("2", "plate"))
	require.Equal(t, ir.CommandFailed, second.Status)
	assert.Equal(t, ir.ErrCodeLabwareAlreadyLoaded, errorCode(t, h, second))

	loaded, err := h.store.View().Labware.Get("plate")
	require.NoError(t, err)
	assert.Equal(t, ir.DeckSlotLocation("1"), loaded.Location, "the first load is kept")

	trash := h.run(t, loadPlate("3", labware.FixedTrashID))
	assert.Equal(t, ir.ErrCodeLabwareAlreadyLoaded, errorCode(t, h, trash))
}

func TestExecuteLoadLabwareLinksNewestOffset(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	uri := ir.LabwareURI(labware.Namespace, labware.Wellplate96Flat, 1)

	for i, x := range []float64{1, 2} {
		h.dispatcher.Dispatch(action.AddLabwareOffset{
			OffsetID:  fmt.Sprintf("offset-%d", i+1),
			CreatedAt: h.clock.Now(),
			Request: ir.LabwareOffsetCreate{
				DefinitionURI: uri,
				Location:      ir.DeckSlotLocation("2"),
				Vector:        ir.LabwareOffsetVector{X: x},
			},
		})
	}

	cmd := h.run(t, loadPlate("2", "plate"))
	require.Equal(t, ir.CommandSucceeded, cmd.Status)

	loaded, err := h.store.View().Labware.Get("plate")
	require.NoError(t, err)
	require.NotNil(t, loaded.OffsetID)
	assert.Equal(t, "offset-2", *loaded.OffsetID)

	other := h.run(t, loadPlate("3", "elsewhere"))
	assert.Nil(t, other.Result.(*ir.LoadLabwareResult).OffsetID)
}

func TestExecuteRecognizedErrorPassesThrough(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	cmd := h.run(t, &ir.LoadLabwareParams{
		Location: ir.DeckSlotLocation("1"), LoadName: "nope", Namespace: "custom", Version: 1,
	})
	require.Equal(t, ir.CommandFailed, cmd.Status)
	require.NotNil(t, cmd.ErrorID)
	assert.Nil(t, cmd.Result)

	occ, ok := h.store.View().Commands.Error(*cmd.ErrorID)
	require.True(t, ok)
	assert.Equal(t, string(ir.ErrCodeLabwareDefinitionDoesNotExist), occ.ErrorType)
}

func TestExecuteUnexpectedErrorIsWrapped(t *testing.T) {
	h := newHarness(t, state.Config{}, func(context.Context, string) error {
		return errors.New("limit switch hit")
	})

	cmd := h.run(t, &ir.HomeParams{})
	require.Equal(t, ir.CommandFailed, cmd.Status)

	occ, ok := h.store.View().Commands.Error(*cmd.ErrorID)
	require.True(t, ok)
	assert.Equal(t, string(ir.ErrCodeUnexpectedProtocolError), occ.ErrorType)
	assert.Contains(t, occ.Detail, "limit switch hit")
}

func TestExecuteUnknownCommand(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	err := h.executor.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, ir.ErrCommandDoesNotExist)
}

func TestExecuteDispatchesRunningBeforeTerminal(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	var statuses []ir.CommandStatus
	h.dispatcher.Register(action.HandlerFunc(func(a action.Action) {
		switch a := a.(type) {
		case action.UpdateCommand:
			statuses = append(statuses, a.Command.Status)
		case action.FailCommand:
			statuses = append(statuses, ir.CommandFailed)
		}
	}))

	h.run(t, &ir.HomeParams{})

	failing := NewCommandExecutor(h.store, h.dispatcher, commands.Handlers{}, testutil.NewSequenceIDGenerator("err"), h.clock,
		WithFactory(func(ir.CommandParams, commands.Handlers) (commands.Implementation, error) {
			return nil, errors.New("no implementation")
		}))
	id := h.queue(&ir.HomeParams{})
	require.NoError(t, failing.Execute(context.Background(), id))

	assert.Equal(t, []ir.CommandStatus{
		ir.CommandRunning, ir.CommandSucceeded,
		ir.CommandRunning, ir.CommandFailed,
	}, statuses)
}

func TestPipettingFlow(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	steps := []ir.CommandParams{
		&ir.LoadPipetteParams{PipetteName: ir.P300SingleGen2, Mount: ir.MountLeft, PipetteID: "p300"},
		&ir.LoadLabwareParams{Location: ir.DeckSlotLocation("1"), LoadName: labware.Tiprack300, Namespace: labware.Namespace, Version: 1, LabwareID: "tips"},
		loadPlate("2", "plate"),
		&ir.PickUpTipParams{WellTarget: ir.WellTarget{PipetteID: "p300", LabwareID: "tips", WellName: "A1"}},
		&ir.AspirateParams{WellTarget: ir.WellTarget{PipetteID: "p300", LabwareID: "plate", WellName: "A1"}, Volume: 100},
		&ir.DispenseParams{WellTarget: ir.WellTarget{PipetteID: "p300", LabwareID: "plate", WellName: "B1"}, Volume: 60},
		&ir.DropTipParams{WellTarget: ir.WellTarget{PipetteID: "p300", LabwareID: labware.FixedTrashID, WellName: "A1"}},
	}
	for _, p := range steps {
		cmd := h.run(t, p)
		require.Equal(t, ir.CommandSucceeded, cmd.Status, "%s", cmd.CommandType)
	}

	view := h.store.View()
	_, hasTip := view.Pipettes.AttachedTip("p300")
	assert.False(t, hasTip)
	assert.Equal(t, 0.0, h.sim.Volume(ir.MountLeft))

	well, ok := view.Pipettes.CurrentWell()
	require.True(t, ok)
	assert.Equal(t, labware.FixedTrashID, well.LabwareID)
}

func TestPipettingValidation(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	h.run(t, &ir.LoadPipetteParams{PipetteName: ir.P20SingleGen2, Mount: ir.MountRight, PipetteID: "p20"})
	h.run(t, loadPlate("2", "plate"))

	target := ir.WellTarget{PipetteID: "p20", LabwareID: "plate", WellName: "A1"}

	cmd := h.run(t, &ir.AspirateParams{WellTarget: target, Volume: 5})
	assert.Equal(t, ir.ErrCodeTipNotAttached, errorCode(t, h, cmd))

	// The queue is blocked after a failure; validation errors are checked
	// on fresh harnesses below.
	h = newHarness(t, state.Config{}, nil)
	h.run(t, &ir.LoadPipetteParams{PipetteName: ir.P20SingleGen2, Mount: ir.MountRight, PipetteID: "p20"})
	h.run(t, loadPlate("2", "plate"))
	cmd = h.run(t, &ir.PickUpTipParams{WellTarget: target})
	assert.Equal(t, ir.ErrCodeLabwareIsNotTiprack, errorCode(t, h, cmd))

	h = newHarness(t, state.Config{}, nil)
	h.run(t, &ir.LoadPipetteParams{PipetteName: ir.P20SingleGen2, Mount: ir.MountRight, PipetteID: "p20"})
	h.run(t, &ir.LoadLabwareParams{Location: ir.DeckSlotLocation("1"), LoadName: labware.Tiprack20, Namespace: labware.Namespace, Version: 1, LabwareID: "tips"})
	h.run(t, loadPlate("2", "plate"))
	h.run(t, &ir.PickUpTipParams{WellTarget: ir.WellTarget{PipetteID: "p20", LabwareID: "tips", WellName: "A1"}})
	cmd = h.run(t, &ir.AspirateParams{WellTarget: target, Volume: 25})
	assert.Equal(t, ir.ErrCodeInvalidVolume, errorCode(t, h, cmd))
}

func errorCode(t *testing.T, h *harness, cmd ir.Command) ir.ErrorCode {
	t.Helper()
	require.Equal(t, ir.CommandFailed, cmd.Status)
	occ, ok := h.store.View().Commands.Error(*cmd.ErrorID)
	require.True(t, ok)
	return ir.ErrorCode(occ.ErrorType)
}

func TestLoadPipetteUnknownModel(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	cmd := h.run(t, &ir.LoadPipetteParams{PipetteName: "p5_single", Mount: ir.MountLeft})
	assert.Equal(t, ir.ErrCodeFailedToLoadPipette, errorCode(t, h, cmd))
}

func TestLoadLabwareOnModule(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)

	mod := h.run(t, &ir.LoadModuleParams{Model: ir.TemperatureModuleV2, Location: ir.DeckSlotLocation("3"), ModuleID: "temp"})
	require.Equal(t, ir.CommandSucceeded, mod.Status)

	cmd := h.run(t, &ir.LoadLabwareParams{
		Location: ir.ModuleLocation("temp"), LoadName: labware.Wellplate96Flat, Namespace: labware.Namespace, Version: 1,
	})
	require.Equal(t, ir.CommandSucceeded, cmd.Status)

	h = newHarness(t, state.Config{}, nil)
	cmd = h.run(t, &ir.LoadLabwareParams{
		Location: ir.ModuleLocation("ghost"), LoadName: labware.Wellplate96Flat, Namespace: labware.Namespace, Version: 1,
	})
	assert.Equal(t, ir.ErrCodeModuleDoesNotExist, errorCode(t, h, cmd))
}

// gate blocks hardware operations until released.
type gate struct {
	entered chan string
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan string, 16), release: make(chan struct{})}
}

func (g *gate) hook(ctx context.Context, op string) error {
	g.entered <- op
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func startWorker(t *testing.T, h *harness) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestWorkerWakesOnQueue(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	_, done := startWorker(t, h)

	first := h.queue(&ir.HomeParams{})
	h.waitFor(t, func(v state.View) bool { return v.Commands.IsComplete(first) })

	second := h.queue(&ir.HomeParams{})
	h.waitFor(t, func(v state.View) bool { return v.Commands.IsComplete(second) })

	h.dispatcher.Dispatch(action.Stop{})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit after stop")
	}
	assert.Equal(t, ir.EngineSucceeded, h.store.View().Commands.Status())
}

func TestWorkerWakesOnPlay(t *testing.T) {
	h := newHarness(t, state.Config{StartPaused: true}, nil)
	_, _ = startWorker(t, h)

	id := h.queue(&ir.HomeParams{})
	assert.Equal(t, ir.EnginePaused, h.store.View().Commands.Status())

	h.dispatcher.Dispatch(action.Play{})
	h.waitFor(t, func(v state.View) bool { return v.Commands.IsComplete(id) })
}

func TestStopDuringInFlightCommand(t *testing.T) {
	g := newGate()
	h := newHarness(t, state.Config{}, g.hook)
	_, done := startWorker(t, h)

	first := h.queue(&ir.HomeParams{})
	second := h.queue(&ir.HomeParams{})
	<-g.entered

	h.dispatcher.Dispatch(action.Stop{})
	assert.Equal(t, ir.EngineStopRequested, h.store.View().Commands.Status())

	third := h.queue(&ir.HomeParams{})
	close(g.release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit after stop")
	}

	view := h.store.View()
	firstCmd, _ := view.Commands.Get(first)
	secondCmd, _ := view.Commands.Get(second)
	thirdCmd, _ := view.Commands.Get(third)
	assert.Equal(t, ir.CommandSucceeded, firstCmd.Status)
	assert.Equal(t, ir.CommandQueued, secondCmd.Status)
	assert.Equal(t, ir.CommandQueued, thirdCmd.Status)
	assert.Len(t, h.sim.Ops(), 1)
	assert.Equal(t, ir.EngineStopped, view.Commands.Status())
}

// stopBeforeExecute dispatches Stop after the worker has picked a command
// and before the executor starts it.
type stopBeforeExecute struct {
	h    *harness
	next Executor
}

func (s stopBeforeExecute) Execute(ctx context.Context, commandID string) error {
	s.h.dispatcher.Dispatch(action.Stop{})
	return s.next.Execute(ctx, commandID)
}

func TestStopBetweenDequeueAndStart(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	h.worker = NewQueueWorker(h.store, stopBeforeExecute{h: h, next: h.executor}, nil)
	id := h.queue(&ir.HomeParams{})
	_, done := startWorker(t, h)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit after stop")
	}

	view := h.store.View()
	cmd, err := view.Commands.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ir.CommandQueued, cmd.Status)
	assert.Nil(t, cmd.StartedAt)
	assert.Empty(t, h.sim.Ops(), "no hardware motion after stop")
	assert.Equal(t, ir.EngineStopped, view.Commands.Status())
}

func TestExecuteSkipsCommandThatIsNotQueued(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	done := h.run(t, &ir.HomeParams{})
	require.Equal(t, ir.CommandSucceeded, done.Status)

	require.NoError(t, h.executor.Execute(context.Background(), done.ID))

	again, err := h.store.View().Commands.Get(done.ID)
	require.NoError(t, err)
	assert.Equal(t, done, again)
	assert.Len(t, h.sim.Ops(), 1)
}

func TestWorkerExitsAfterFailure(t *testing.T) {
	h := newHarness(t, state.Config{}, func(context.Context, string) error {
		return errors.New("stall")
	})
	_, done := startWorker(t, h)

	first := h.queue(&ir.HomeParams{})
	second := h.queue(&ir.HomeParams{})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit after failure")
	}

	view := h.store.View()
	cmd, _ := view.Commands.Get(first)
	assert.Equal(t, ir.CommandFailed, cmd.Status)
	assert.True(t, view.Commands.IsComplete(second))

	_, _, err := view.Commands.NextQueued()
	assert.True(t, ir.IsEngineStopped(err))
}

func TestWorkerCancelled(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	cancel, done := startWorker(t, h)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("worker ignored cancellation")
	}
}

func TestPauseCommandBlocksUntilPlay(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	_, _ = startWorker(t, h)

	pause := h.queue(&ir.PauseParams{Message: "swap plate"})
	home := h.queue(&ir.HomeParams{})

	h.waitFor(t, func(v state.View) bool { return v.Commands.Status() == ir.EnginePauseRequested })
	view := h.store.View()
	running, ok := view.Commands.Running()
	require.True(t, ok)
	assert.Equal(t, pause, running)
	assert.False(t, view.Commands.IsComplete(home))

	h.dispatcher.Dispatch(action.Play{})
	h.waitFor(t, func(v state.View) bool { return v.Commands.IsComplete(home) })

	cmd, _ := h.store.View().Commands.Get(pause)
	assert.Equal(t, ir.CommandSucceeded, cmd.Status)
}

func TestPauseCommandIgnored(t *testing.T) {
	h := newHarness(t, state.Config{IgnorePause: true}, nil)

	var mu sync.Mutex
	var sawPause bool
	h.dispatcher.Register(action.HandlerFunc(func(a action.Action) {
		if _, ok := a.(action.Pause); ok {
			mu.Lock()
			sawPause = true
			mu.Unlock()
		}
	}))

	cmd := h.run(t, &ir.PauseParams{})
	assert.Equal(t, ir.CommandSucceeded, cmd.Status)
	assert.True(t, h.store.View().Commands.IsRunning())

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, sawPause)
}

func TestPauseCommandReleasedByStop(t *testing.T) {
	h := newHarness(t, state.Config{}, nil)
	_, done := startWorker(t, h)

	pause := h.queue(&ir.PauseParams{})
	h.waitFor(t, func(v state.View) bool { return v.Commands.Status() == ir.EnginePauseRequested })

	h.dispatcher.Dispatch(action.Stop{})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit after stop")
	}
	cmd, _ := h.store.View().Commands.Get(pause)
	assert.Equal(t, ir.CommandSucceeded, cmd.Status)
}
