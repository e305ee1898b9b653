package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HrushiBorhade/pingme/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *DaemonState {
	st := New()
	st.Sessions["s1"] = &models.Session{
		ID:            "s1",
		Project:       "api",
		Directory:     "/work/api",
		TmuxSession:   "main",
		TmuxPane:      "main:0.1",
		Status:        models.StatusPermission,
		LastEvent:     models.EventPermission,
		LastEventTime: 1700000000,
		RecentEvents:  []models.EventRecord{{Event: models.EventPermission, Timestamp: 1700000000, Summary: "permission: Bash"}},
		SessionName:   "api",
		RegisteredAt:  1700000000000,
		PendingAction: &models.PendingAction{
			Type:     models.EventPermission,
			Summary:  "Wants to run: rm important.txt",
			ToolName: models.Ptr("Bash"),
			Command:  models.Ptr("rm important.txt"),
			Options:  []string{},
		},
	}
	st.InstructionQueue = append(st.InstructionQueue, models.QueuedInstruction{
		ID: "01HQ", TargetSessionID: "s1", Instruction: "npm test", QueuedAt: 1700000000000, DeliverOn: models.DeliverOnNextStop,
	})
	st.CallHistory = append(st.CallHistory, models.CallRecord{
		ExecutionID: "exec-1", Direction: models.DirectionOutbound, StartedAt: 1, EndedAt: 2001, DurationSeconds: 2,
		TriggerEvent: models.Ptr("manual"), TranscriptSummary: models.Ptr("ok"),
	})
	st.LastCallTime = models.Ptr(int64(1700000000000))
	st.ActiveCall = &models.ActiveCall{
		ExecutionID: "exec-2", StartedAt: 1700000001000, Direction: models.DirectionOutbound,
		TriggerEvent: models.Ptr("api needs permission"), EventsDuringCall: []models.EventRecord{},
	}
	return st
}

func TestFileStore_roundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	want := sampleState()
	require.NoError(t, fs.Save(ctx, want))

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_missingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	got, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, New(), got)
}

func TestFileStore_corruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path)
	require.NoError(t, fs.Save(ctx, sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, New(), got)
}

func TestFileStore_partialDocumentDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessions":{"a":{"id":"a","status":"active"}}}`), 0o644))

	got, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, got.Sessions, "a")
	assert.NotNil(t, got.Sessions["a"].RecentEvents)
	assert.NotNil(t, got.InstructionQueue)
	assert.NotNil(t, got.CallHistory)
	assert.Nil(t, got.ActiveCall)
	assert.Nil(t, got.LastCallTime)
}

func TestFileStore_noTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "state.json"))
	for i := 0; i < 5; i++ {
		require.NoError(t, fs.Save(context.Background(), sampleState()))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestClone_isDeep(t *testing.T) {
	st := sampleState()
	c := st.Clone()
	c.Sessions["s1"].Status = models.StatusActive
	c.Sessions["s1"].RecentEvents[0].Summary = "changed"
	c.Sessions["s1"].PendingAction.Summary = "changed"
	c.ActiveCall.EventsDuringCall = append(c.ActiveCall.EventsDuringCall, models.EventRecord{Summary: "x"})
	*c.LastCallTime = 0

	assert.Equal(t, models.StatusPermission, st.Sessions["s1"].Status)
	assert.Equal(t, "permission: Bash", st.Sessions["s1"].RecentEvents[0].Summary)
	assert.Equal(t, "Wants to run: rm important.txt", st.Sessions["s1"].PendingAction.Summary)
	assert.Empty(t, st.ActiveCall.EventsDuringCall)
	assert.Equal(t, int64(1700000000000), *st.LastCallTime)
}

func TestShared_persistSavesLatest(t *testing.T) {
	mem := &MemoryStore{}
	sh := NewShared(nil, mem)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sh.Update(func(st *DaemonState) {
				st.CallHistory = append(st.CallHistory, models.CallRecord{DurationSeconds: int64(i)})
			})
			require.NoError(t, sh.Persist(context.Background()))
		}(i)
	}
	wg.Wait()

	saved, err := mem.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved.CallHistory, 20)
	assert.Equal(t, 20, mem.Saves())
}

// gatedStore blocks every Save until release is closed.
type gatedStore struct {
	MemoryStore
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, st *DaemonState) error {
	<-g.release
	return g.MemoryStore.Save(ctx, st)
}

func TestShared_waitCoversAsyncSaves(t *testing.T) {
	store := &gatedStore{release: make(chan struct{})}
	sh := NewShared(nil, store)
	sh.PersistAsync()
	sh.PersistAsync()

	done := make(chan struct{})
	go func() {
		sh.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait returned before async saves finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, 2, store.Saves())
}

func TestUndeliveredCount(t *testing.T) {
	st := New()
	st.InstructionQueue = []models.QueuedInstruction{{ID: "a"}, {ID: "b", Delivered: true}, {ID: "c"}}
	assert.Equal(t, 2, st.UndeliveredCount())
}
