package assets

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CitroenGames/garden-framework-sub000/internal/jobs"
	"github.com/CitroenGames/garden-framework-sub000/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader accepts ".fake" paths and counts how many times it is asked
// to parse, so tests can assert dedup collapses concurrent loads of the
// same path into a single parse.
type fakeLoader struct {
	loadCalls atomic.Int32
	fail      bool
}

func (f *fakeLoader) AssetType() Type                      { return TypeMesh }
func (f *fakeLoader) SupportedExtensions() []string         { return []string{".fake"} }
func (f *fakeLoader) CanLoad(path string) bool              { return ExtensionMatch(path, f.SupportedExtensions()) }
func (f *fakeLoader) UploadToGPU(data Payload, d render.Device) (Payload, bool) {
	mesh, ok := data.(MeshPayload)
	if !ok {
		return data, false
	}
	mesh.Handle = d.CreateMesh()
	d.UploadMeshData(mesh.Handle, mesh.Vertices)
	mesh.Vertices = nil
	return mesh, true
}

func (f *fakeLoader) LoadFromFile(path string, ctx LoadContext) LoadResult {
	f.loadCalls.Add(1)
	if f.fail {
		return LoadResult{Success: false, ErrorMessage: "induced failure"}
	}
	time.Sleep(2 * time.Millisecond)
	return LoadResult{Success: true, Data: MeshPayload{Vertices: []render.Vertex{{}}}}
}

func newTestManager(t *testing.T) (*Manager, *jobs.Scheduler) {
	t.Helper()
	s := jobs.New(jobs.Config{Workers: 4}, nil)
	t.Cleanup(s.Shutdown)
	m := NewManager(s, render.NewHeadless(), nil)
	return m, s
}

// drainMainThread keeps pumping the scheduler's main-thread queue until
// the asset reaches a terminal state, standing in for the host's frame
// loop calling DrainMainThread every tick.
func drainMainThread(s *jobs.Scheduler, m *Manager, id AssetID, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.DrainMainThread(0)
		if !m.IsLoading(id) {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestLoadAsyncHappyPath(t *testing.T) {
	m, s := newTestManager(t)
	loader := &fakeLoader{}
	m.RegisterLoader(loader)

	var completeSuccess atomic.Bool
	var completeCalled atomic.Bool
	id := m.LoadAsync("mesh.fake", Normal, func(id AssetID, success bool) {
		completeCalled.Store(true)
		completeSuccess.Store(success)
	}, nil)

	require.NotEqual(t, InvalidAssetID, id)
	require.True(t, drainMainThread(s, m, id, time.Second))
	require.Eventually(t, completeCalled.Load, time.Second, time.Millisecond)
	assert.True(t, completeSuccess.Load())
	assert.True(t, m.IsReady(id))
	assert.Equal(t, float32(1.0), m.Progress(id))
	assert.Equal(t, int32(1), loader.loadCalls.Load())
}

// TestAssetDedup directly implements the spec's dedup scenario: two
// rapid LoadAsync calls for the same path collapse into one parse,
// share an id, and both observers fire on_complete(true).
func TestAssetDedup(t *testing.T) {
	m, s := newTestManager(t)
	loader := &fakeLoader{}
	m.RegisterLoader(loader)

	var wg sync.WaitGroup
	var successes atomic.Int32
	ids := make([]AssetID, 2)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			ids[i] = m.LoadAsync("x.fake", Normal, func(_ AssetID, ok bool) {
				if ok {
					successes.Add(1)
				}
			}, nil)
		}()
	}
	wg.Wait()

	require.True(t, drainMainThread(s, m, ids[0], time.Second))
	require.Eventually(t, func() bool { return successes.Load() == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, int32(1), loader.loadCalls.Load())
}

func TestLoadAsyncNoLoaderReturnsInvalidHandle(t *testing.T) {
	m, _ := newTestManager(t)

	var success atomic.Bool
	called := false
	id := m.LoadAsync("mystery.xyz", Normal, func(AssetID, bool) {
		called = true
		success.Store(false)
	}, nil)

	assert.Equal(t, InvalidAssetID, id)
	assert.True(t, called)
	assert.False(t, success.Load())
}

func TestLoadAsyncReadyPathInvokesSynchronously(t *testing.T) {
	m, s := newTestManager(t)
	loader := &fakeLoader{}
	m.RegisterLoader(loader)

	id := m.LoadAsync("cached.fake", Normal, nil, nil)
	require.True(t, drainMainThread(s, m, id, time.Second))
	require.True(t, m.IsReady(id))

	called := false
	var success bool
	second := m.LoadAsync("cached.fake", Normal, func(_ AssetID, s bool) {
		called = true
		success = s
	}, nil)

	assert.Equal(t, id, second)
	assert.True(t, called)
	assert.True(t, success)
	assert.Equal(t, int32(1), loader.loadCalls.Load())
}

func TestLoadAsyncFailurePath(t *testing.T) {
	m, _ := newTestManager(t)
	loader := &fakeLoader{fail: true}
	m.RegisterLoader(loader)

	var called atomic.Bool
	id := m.LoadAsync("broken.fake", Normal, func(AssetID, bool) {
		called.Store(true)
	}, nil)

	require.Eventually(t, func() bool { return !m.IsLoading(id) }, time.Second, time.Millisecond)
	require.Eventually(t, called.Load, time.Second, time.Millisecond)
	assert.True(t, m.HasFailed(id))
	require.NotNil(t, m.Error(id))
	assert.Equal(t, "induced failure", m.Error(id).Message)
}

func TestUnloadRejectsInFlight(t *testing.T) {
	m, _ := newTestManager(t)
	loader := &fakeLoader{}
	m.RegisterLoader(loader)

	id := m.LoadAsync("slow.fake", Normal, nil, nil)
	err := m.Unload(id)
	assert.Error(t, err)
}

func TestCachedAndLoadingCounts(t *testing.T) {
	m, s := newTestManager(t)
	loader := &fakeLoader{}
	m.RegisterLoader(loader)

	id := m.LoadAsync("a.fake", Normal, nil, nil)
	assert.Equal(t, 1, m.CachedCount())
	require.True(t, drainMainThread(s, m, id, time.Second))
	assert.Equal(t, 0, m.LoadingCount())

	require.NoError(t, m.Unload(id))
	assert.Equal(t, 0, m.CachedCount())
}
