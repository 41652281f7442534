package assets

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/CitroenGames/garden-framework-sub000/internal/jobs"
	"github.com/CitroenGames/garden-framework-sub000/internal/render"
	"github.com/CitroenGames/garden-framework-sub000/logger"
	"go.uber.org/zap"
)

// observer is one registered (on_complete, on_progress) pair chained
// onto an asset. A path requested while the original load is still in
// flight adds an observer here rather than starting a second load.
type observer struct {
	onComplete OnComplete
	onProgress OnProgress
}

// record is the manager's internal bookkeeping for one asset.
type record struct {
	mu sync.Mutex

	id       AssetID
	path     string
	typ      Type
	state    LoadState
	progress float32
	data     Payload
	err      *Error

	observers []observer

	done     chan struct{}
	doneOnce sync.Once
	success  bool

	loadJob   jobs.Handle
	uploadJob jobs.Handle
}

func (r *record) setState(state LoadState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *record) setProgress(p float32) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

func (r *record) addObserver(o observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *record) snapshotObservers() []observer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observer, len(r.observers))
	copy(out, r.observers)
	return out
}

func (r *record) resolve(success bool) {
	r.doneOnce.Do(func() {
		r.mu.Lock()
		r.success = success
		r.mu.Unlock()
		close(r.done)
	})
}

// Manager is the asset pipeline entry point, constructed per host and
// threaded through dependency injection rather than reached via a
// global accessor.
type Manager struct {
	sched  *jobs.Scheduler
	device render.Device
	log    *zap.SugaredLogger

	loadersMu sync.RWMutex
	loaders   []Loader

	assetsMu  sync.RWMutex
	assets    map[AssetID]*record
	pathToID  map[string]AssetID
	nextID    atomic.Uint64
}

// NewManager constructs a Manager bound to a render device and job
// scheduler. Initialization is idempotent from the caller's point of
// view: constructing a second Manager for the same device is legal,
// the host is expected to keep exactly one around.
func NewManager(sched *jobs.Scheduler, device render.Device, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		sched:    sched,
		device:   device,
		log:      log,
		assets:   make(map[AssetID]*record),
		pathToID: make(map[string]AssetID),
	}
}

// RegisterLoader adds a loader capability for a new asset type.
func (m *Manager) RegisterLoader(l Loader) {
	m.loadersMu.Lock()
	defer m.loadersMu.Unlock()
	m.loaders = append(m.loaders, l)
}

func (m *Manager) findLoader(path string) Loader {
	m.loadersMu.RLock()
	defer m.loadersMu.RUnlock()
	for _, l := range m.loaders {
		if l.CanLoad(path) {
			return l
		}
	}
	return nil
}

func jobPriority(p Priority) jobs.Priority {
	switch p {
	case Background:
		return jobs.Low
	case High, Immediate:
		return jobs.High
	default:
		return jobs.Normal
	}
}

// LoadAsync begins loading path, or attaches to an existing load/cached
// asset for the same canonical path. A Ready asset fires onComplete
// synchronously before returning. An in-flight asset chains the new
// callbacks as additional observers rather than starting a duplicate
// load — the path→id map guarantees at most one live AssetID per path
// regardless of load state.
func (m *Manager) LoadAsync(path string, priority Priority, onComplete OnComplete, onProgress OnProgress) AssetID {
	m.assetsMu.Lock()
	if id, ok := m.pathToID[path]; ok {
		rec := m.assets[id]
		m.assetsMu.Unlock()

		rec.mu.Lock()
		state := rec.state
		rec.mu.Unlock()

		if state == Ready {
			if onComplete != nil {
				onComplete(id, true)
			}
			return id
		}
		if state == Failed {
			if onComplete != nil {
				onComplete(id, false)
			}
			return id
		}
		// In flight: chain, don't replace or duplicate.
		rec.addObserver(observer{onComplete: onComplete, onProgress: onProgress})
		return id
	}

	loader := m.findLoader(path)
	if loader == nil {
		m.assetsMu.Unlock()
		m.log.Warnw("no loader accepts asset path", logger.FieldPath, path)
		if onComplete != nil {
			onComplete(InvalidAssetID, false)
		}
		return InvalidAssetID
	}

	id := AssetID(m.nextID.Add(1))
	rec := &record{
		id:    id,
		path:  path,
		typ:   loader.AssetType(),
		state: Queued,
		done:  make(chan struct{}),
	}
	if onComplete != nil || onProgress != nil {
		rec.observers = append(rec.observers, observer{onComplete: onComplete, onProgress: onProgress})
	}
	m.assets[id] = rec
	m.pathToID[path] = id
	m.assetsMu.Unlock()

	m.submitLoad(rec, loader, priority)
	return id
}

// LoadSync is LoadAsync followed by a blocking wait for completion.
func (m *Manager) LoadSync(path string) AssetID {
	id := m.LoadAsync(path, Normal, nil, nil)
	m.Wait(id)
	return id
}

// LoadBatch issues LoadAsync for every path and returns the handles in order.
func (m *Manager) LoadBatch(paths []string, priority Priority) []AssetID {
	out := make([]AssetID, len(paths))
	for i, p := range paths {
		out[i] = m.LoadAsync(p, priority, nil, nil)
	}
	return out
}

func (m *Manager) fireProgress(rec *record, p float32) {
	rec.setProgress(p)
	for _, o := range rec.snapshotObservers() {
		if o.onProgress != nil {
			o.onProgress(rec.id, p)
		}
	}
}

func (m *Manager) fireComplete(rec *record, success bool) {
	for _, o := range rec.snapshotObservers() {
		if o.onComplete != nil {
			o.onComplete(rec.id, success)
		}
	}
}

func (m *Manager) fail(rec *record, msg string) {
	rec.mu.Lock()
	rec.state = Failed
	rec.err = &Error{Message: msg, FilePath: rec.path}
	rec.mu.Unlock()
	rec.resolve(false)
	m.fireComplete(rec, false)
}

// submitLoad runs the parse-then-upload algorithm: a worker-context
// parse job that, on success, submits a main-thread upload job from
// within its own closure. The asset record is the synchronization
// point between the two jobs.
func (m *Manager) submitLoad(rec *record, loader Loader, priority Priority) {
	ctx := LoadContext{RenderDevice: m.device, BasePath: filepath.Dir(rec.path)}
	prio := jobPriority(priority)

	rec.loadJob = m.sched.NewJob().
		Name("asset-parse:" + rec.path).
		Priority(prio).
		Context(jobs.Worker).
		Work(func() error {
			m.fireProgress(rec, ProgressIO)
			rec.setState(LoadingIO)

			m.fireProgress(rec, ProgressParsing)
			rec.setState(Parsing)
			result := loader.LoadFromFile(rec.path, ctx)
			if !result.Success {
				m.fail(rec, result.ErrorMessage)
				return nil
			}

			rec.mu.Lock()
			rec.data = result.Data
			rec.state = Processing
			rec.mu.Unlock()
			m.fireProgress(rec, ProgressProcessing)

			m.submitUpload(rec, loader, prio)
			return nil
		}).
		Submit()
}

func (m *Manager) submitUpload(rec *record, loader Loader, prio jobs.Priority) {
	rec.uploadJob = m.sched.NewJob().
		Name("asset-upload:" + rec.path).
		Priority(prio).
		Context(jobs.MainThread).
		Work(func() error {
			rec.setState(UploadingGPU)
			m.fireProgress(rec, ProgressUploading)

			rec.mu.Lock()
			data := rec.data
			rec.mu.Unlock()

			uploaded, ok := loader.UploadToGPU(data, m.device)
			if !ok {
				m.fail(rec, "upload_to_gpu failed")
				return nil
			}

			rec.mu.Lock()
			rec.data = uploaded
			rec.state = Ready
			rec.mu.Unlock()
			rec.resolve(true)
			m.fireProgress(rec, ProgressReady)
			m.fireComplete(rec, true)
			return nil
		}).
		Submit()
}

func (m *Manager) getRecord(id AssetID) *record {
	m.assetsMu.RLock()
	defer m.assetsMu.RUnlock()
	return m.assets[id]
}

// State returns the current load state, or NotLoaded for an unknown id.
func (m *Manager) State(id AssetID) LoadState {
	rec := m.getRecord(id)
	if rec == nil {
		return NotLoaded
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state
}

// Progress returns the advisory load progress in [0,1].
func (m *Manager) Progress(id AssetID) float32 {
	rec := m.getRecord(id)
	if rec == nil {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress
}

func (m *Manager) IsReady(id AssetID) bool   { return m.State(id) == Ready }
func (m *Manager) HasFailed(id AssetID) bool { return m.State(id) == Failed }
func (m *Manager) IsLoading(id AssetID) bool {
	switch m.State(id) {
	case Queued, LoadingIO, Parsing, Processing, UploadingGPU:
		return true
	default:
		return false
	}
}

// Error returns the failure record for a Failed asset, or nil otherwise.
func (m *Manager) Error(id AssetID) *Error {
	rec := m.getRecord(id)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.err
}

// Data returns the asset's payload. Only meaningful once Ready.
func (m *Manager) Data(id AssetID) Payload {
	rec := m.getRecord(id)
	if rec == nil {
		return NoPayload{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.data == nil {
		return NoPayload{}
	}
	return rec.data
}

// Wait blocks until the asset reaches Ready or Failed and reports success.
func (m *Manager) Wait(id AssetID) bool {
	rec := m.getRecord(id)
	if rec == nil {
		return false
	}
	<-rec.done
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.success
}

// Unload removes a completed or failed asset from the cache. Unloading
// an in-flight asset is rejected — the caller should wait for
// completion first, per this pipeline's lifecycle contract.
func (m *Manager) Unload(id AssetID) error {
	m.assetsMu.Lock()
	defer m.assetsMu.Unlock()
	rec, ok := m.assets[id]
	if !ok {
		return nil
	}
	rec.mu.Lock()
	state := rec.state
	rec.mu.Unlock()
	if state != Ready && state != Failed {
		return errAssetInFlight
	}
	delete(m.assets, id)
	delete(m.pathToID, rec.path)
	return nil
}

// ClearCache unloads every asset regardless of state.
func (m *Manager) ClearCache() {
	m.assetsMu.Lock()
	defer m.assetsMu.Unlock()
	m.assets = make(map[AssetID]*record)
	m.pathToID = make(map[string]AssetID)
}

// CachedCount returns the number of tracked assets, loading or not.
func (m *Manager) CachedCount() int {
	m.assetsMu.RLock()
	defer m.assetsMu.RUnlock()
	return len(m.assets)
}

// LoadingCount returns the number of assets not yet Ready or Failed.
func (m *Manager) LoadingCount() int {
	m.assetsMu.RLock()
	defer m.assetsMu.RUnlock()
	count := 0
	for _, rec := range m.assets {
		rec.mu.Lock()
		if rec.state != Ready && rec.state != Failed {
			count++
		}
		rec.mu.Unlock()
	}
	return count
}
