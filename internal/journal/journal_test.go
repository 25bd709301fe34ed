package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchhatch/internal/sequencer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.now = stepClock()

	cfg := sequencer.RunConfig{Species: 129, Containers: 3, Persist: sequencer.PersistAtEnd}
	id, err := s.StartRun(ctx, cfg)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "run id should be a uuid")

	trs := []sequencer.Transition{
		{From: sequencer.PhaseSyncController, To: sequencer.PhaseBreathe, Tick: 1,
			Counters: sequencer.Counters{ContainersRemaining: 3, GroupSelector: 1}},
		{From: sequencer.PhaseSpeak, To: sequencer.PhaseGoToCircle2, Tick: 900,
			Counters: sequencer.Counters{ContainersRemaining: 3, ItemsRemaining: -1, GroupSelector: 2, NewRound: true}},
	}
	for _, tr := range trs {
		require.NoError(t, s.RecordTransition(ctx, id, tr))
	}
	require.NoError(t, s.FinishRun(ctx, id, OutcomeDone))

	got, err := s.Transitions(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, e := range got {
		assert.Equal(t, i+1, e.Seq)
		assert.Equal(t, id, e.RunID)
		assert.Equal(t, trs[i].From, e.From)
		assert.Equal(t, trs[i].To, e.To)
		assert.Equal(t, trs[i].Tick, e.Tick)
		assert.Equal(t, trs[i].Counters.ContainersRemaining, e.Counters.ContainersRemaining)
		assert.Equal(t, trs[i].Counters.ItemsRemaining, e.Counters.ItemsRemaining)
		assert.Equal(t, trs[i].Counters.GroupSelector, e.Counters.GroupSelector)
		assert.Equal(t, trs[i].Counters.NewRound, e.Counters.NewRound)
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, 129, r.Species)
	assert.Equal(t, 3, r.Containers)
	assert.Equal(t, "at_end", r.Policy)
	assert.Equal(t, OutcomeDone, r.Outcome)
	assert.True(t, r.FinishedAt.After(r.StartedAt))
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.now = stepClock()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := s.StartRun(ctx, sequencer.RunConfig{Species: 1, Containers: 1})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)
	assert.Equal(t, OutcomeRunning, runs[0].Outcome)
	assert.True(t, runs[0].FinishedAt.IsZero())

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_FinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "nope", OutcomeFailed)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_TransitionNeedsRun(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordTransition(context.Background(), "missing", sequencer.Transition{})
	assert.Error(t, err)
}

func TestStore_ReopenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.StartRun(ctx, sequencer.RunConfig{Species: 4, Containers: 2})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}
