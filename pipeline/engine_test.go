package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/domains/quota"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/pkg/jobpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	videos map[string]job.Video
	// every persisted snapshot, in order
	updates []job.Video
}

func newMemStore(vs ...job.Video) *memStore {
	s := &memStore{videos: make(map[string]job.Video)}
	for _, v := range vs {
		s.videos[v.ID] = v
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id string) (job.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return job.Video{}, pkgError.NotFoundError("job not found")
	}
	return v, nil
}

func (s *memStore) Update(_ context.Context, v job.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
	s.updates = append(s.updates, v)
	return nil
}

func (s *memStore) current(id string) job.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[id]
}

type fakeQuota struct {
	mu         sync.Mutex
	reserves   int
	releases   int
	reserveErr error
}

func (q *fakeQuota) CheckAndReserve(_ context.Context, _ identity.User) (quota.Quota, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reserveErr != nil {
		return quota.Quota{}, q.reserveErr
	}
	q.reserves++
	return quota.Quota{Limit: 3, Used: 1}, nil
}

func (q *fakeQuota) Release(_ context.Context, _ string, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releases++
	return nil
}

func (q *fakeQuota) counts() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reserves, q.releases
}

type fakeResolver struct {
	provider   string
	resolveErr error
}

func (r *fakeResolver) Resolve(_ context.Context, _ string, category integration.Category) (integration.Integration, error) {
	if r.resolveErr != nil {
		return integration.Integration{}, r.resolveErr
	}
	return integration.Integration{Provider: r.provider, Category: category, Valid: true, Active: true}, nil
}

func (r *fakeResolver) ResolveNamed(_ context.Context, _ string, category integration.Category, provider string) (integration.Integration, error) {
	return integration.Integration{Provider: provider, Category: category, Valid: true, Active: true}, nil
}

// inlineDispatcher runs the pipeline synchronously so tests stay
// deterministic.
type inlineDispatcher struct{}

func (inlineDispatcher) TryDispatch(pj jobpool.PipelineJob) bool {
	_ = pj.Handler(context.Background())
	return true
}

// asyncDispatcher runs pipelines on goroutines like the real pool.
type asyncDispatcher struct{ wg sync.WaitGroup }

func (d *asyncDispatcher) TryDispatch(pj jobpool.PipelineJob) bool {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = pj.Handler(context.Background())
	}()
	return true
}

// recordingInvoker logs every stage call and fakes per-stage artifacts.
type recordingInvoker struct {
	mu      sync.Mutex
	calls   []string
	failAt  Stage
	failErr error
	// snapshot of the artifacts as seen when a stage begins
	seenArtifacts map[Stage]job.Artifacts
}

func newRecordingInvoker() *recordingInvoker {
	return &recordingInvoker{seenArtifacts: make(map[Stage]job.Artifacts)}
}

func (r *recordingInvoker) Invoke(_ context.Context, stage Stage, provider integration.Integration, v *job.Video) error {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf("%s/%s", stage, provider.Provider))
	r.seenArtifacts[stage] = v.Artifacts
	r.mu.Unlock()

	if r.failAt == stage {
		return r.failErr
	}

	switch stage {
	case StageScript:
		v.Artifacts.Script = "a script"
	case StageVoice:
		v.Artifacts.VoiceURL = "storages/artifacts/voice.mp3"
	case StageMedia:
		v.Artifacts.MediaURLs = []string{"https://example.com/clip.mp4"}
	case StageVideo:
		v.Artifacts.RenderURL = "render://" + v.ID + "/plan"
	case StageAssembly:
		v.Artifacts.VideoURL = "storages/artifacts/final.mp4"
		v.Artifacts.ThumbnailURL = "storages/artifacts/thumbnail.jpg"
		v.Artifacts.DurationSeconds = 42
	}
	return nil
}

func (r *recordingInvoker) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func pendingVideo(id string) job.Video {
	return job.Video{
		ID:       id,
		UserID:   "user-1",
		UserTier: identity.TierFree,
		Title:    "How tides work",
		Status:   job.StatusPending,
	}
}

func newTestEngine(store *memStore, gate *fakeQuota, dispatcher Dispatcher, invoker Invoker) *Engine {
	e := NewEngine(store, gate, &fakeResolver{provider: "primary"}, dispatcher, 48*time.Hour, 1)
	e.RegisterInvoker("primary", invoker)
	e.RegisterInvoker("swap-target", invoker)
	return e
}

func TestEngine_HappyPathProgress(t *testing.T) {
	store := newMemStore(pendingVideo("job-1"))
	gate := &fakeQuota{}
	invoker := newRecordingInvoker()
	engine := newTestEngine(store, gate, inlineDispatcher{}, invoker)

	err := engine.StartPipeline(context.Background(), store.current("job-1"), StartOptions{})
	require.NoError(t, err)

	v := store.current("job-1")
	assert.Equal(t, job.StatusCompleted, v.Status)
	assert.Equal(t, 100, v.Progress)
	assert.Empty(t, v.CurrentStep)
	require.NotNil(t, v.CompletedAt)
	require.NotNil(t, v.ExpiresAt)
	assert.Equal(t, 48*time.Hour, v.ExpiresAt.Sub(*v.CompletedAt))
	assert.Equal(t, "storages/artifacts/final.mp4", v.VideoURL)
	assert.Equal(t, "storages/artifacts/thumbnail.jpg", v.ThumbnailURL)
	assert.Equal(t, 42, v.DurationSeconds)

	assert.Equal(t, []string{
		"generating_script/primary",
		"generating_voice/primary",
		"fetching_media/primary",
		"generating_video/primary",
		"assembling/primary",
	}, invoker.stages())

	// progress only ever moves forward, in fifths
	var progress []int
	last := -1
	for _, u := range store.updates {
		assert.GreaterOrEqual(t, u.Progress, last)
		last = u.Progress
		if len(progress) == 0 || progress[len(progress)-1] != u.Progress {
			progress = append(progress, u.Progress)
		}
	}
	assert.Equal(t, []int{0, 20, 40, 60, 80, 100}, progress)

	reserves, releases := gate.counts()
	assert.Equal(t, 1, reserves)
	assert.Equal(t, 0, releases)
}

func TestEngine_StageFailureRecordsPayload(t *testing.T) {
	store := newMemStore(pendingVideo("job-2"))
	gate := &fakeQuota{}
	invoker := newRecordingInvoker()
	invoker.failAt = StageMedia
	invoker.failErr = fmt.Errorf("stock media host unreachable")
	engine := newTestEngine(store, gate, inlineDispatcher{}, invoker)

	err := engine.StartPipeline(context.Background(), store.current("job-2"), StartOptions{})
	require.NoError(t, err)

	v := store.current("job-2")
	assert.Equal(t, job.StatusFailed, v.Status)
	require.NotNil(t, v.ErrorPayload)
	assert.Equal(t, job.ErrorKindStage, v.ErrorPayload.Kind)
	assert.Equal(t, "fetching_media", v.ErrorPayload.FailingStage)
	assert.Equal(t, "primary", v.ErrorPayload.Provider)
	assert.Contains(t, v.ErrorPayload.Detail, "unreachable")

	// earlier artifacts survive for the retry
	assert.Equal(t, "a script", v.Artifacts.Script)
	assert.NotEmpty(t, v.Artifacts.VoiceURL)

	// the attempt started, so the quota charge is kept
	_, releases := gate.counts()
	assert.Equal(t, 0, releases)
}

func TestEngine_QuotaExceededFailsBeforeStages(t *testing.T) {
	store := newMemStore(pendingVideo("job-3"))
	gate := &fakeQuota{reserveErr: pkgError.QuotaExceededError("daily quota exceeded, resets at midnight UTC")}
	invoker := newRecordingInvoker()
	engine := newTestEngine(store, gate, inlineDispatcher{}, invoker)

	err := engine.StartPipeline(context.Background(), store.current("job-3"), StartOptions{})
	require.NoError(t, err)

	v := store.current("job-3")
	assert.Equal(t, job.StatusFailed, v.Status)
	require.NotNil(t, v.ErrorPayload)
	assert.Equal(t, job.ErrorKindQuota, v.ErrorPayload.Kind)
	assert.Empty(t, v.ErrorPayload.FailingStage)
	assert.Empty(t, invoker.stages())

	_, releases := gate.counts()
	assert.Equal(t, 0, releases)
}

func TestEngine_NoProviderReleasesQuota(t *testing.T) {
	store := newMemStore(pendingVideo("job-4"))
	gate := &fakeQuota{}
	engine := NewEngine(store, gate,
		&fakeResolver{resolveErr: pkgError.NoProviderConfiguredError("no provider configured for category script")},
		inlineDispatcher{}, 48*time.Hour, 1)

	err := engine.StartPipeline(context.Background(), store.current("job-4"), StartOptions{})
	require.NoError(t, err)

	v := store.current("job-4")
	assert.Equal(t, job.StatusFailed, v.Status)
	require.NotNil(t, v.ErrorPayload)
	assert.Equal(t, job.ErrorKindNoProvider, v.ErrorPayload.Kind)

	// the charge was taken but generation never started, so it comes back
	reserves, releases := gate.counts()
	assert.Equal(t, 1, reserves)
	assert.Equal(t, 1, releases)
}

// blockingInvoker parks the script stage until released so tests can act
// while a run is in flight.
type blockingInvoker struct {
	*recordingInvoker
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingInvoker) Invoke(ctx context.Context, stage Stage, provider integration.Integration, v *job.Video) error {
	if stage == StageScript {
		b.once.Do(func() { close(b.started) })
		<-b.release
	}
	return b.recordingInvoker.Invoke(ctx, stage, provider, v)
}

func TestEngine_ConcurrentTriggerRejected(t *testing.T) {
	store := newMemStore(pendingVideo("job-5"))
	gate := &fakeQuota{}
	invoker := &blockingInvoker{
		recordingInvoker: newRecordingInvoker(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	dispatcher := &asyncDispatcher{}
	engine := newTestEngine(store, gate, dispatcher, invoker)

	require.NoError(t, engine.StartPipeline(context.Background(), store.current("job-5"), StartOptions{}))
	<-invoker.started

	err := engine.StartPipeline(context.Background(), store.current("job-5"), StartOptions{})
	require.Error(t, err)
	var concurrentErr pkgError.ConcurrentTriggerError
	assert.ErrorAs(t, err, &concurrentErr)

	// force never bypasses the in-flight guard either
	err = engine.StartPipeline(context.Background(), store.current("job-5"), StartOptions{Force: true})
	assert.ErrorAs(t, err, &concurrentErr)

	close(invoker.release)
	dispatcher.wg.Wait()
	assert.Equal(t, job.StatusCompleted, store.current("job-5").Status)
	assert.False(t, engine.InFlight("job-5"))
}

func TestEngine_CancelBetweenStages(t *testing.T) {
	store := newMemStore(pendingVideo("job-6"))
	gate := &fakeQuota{}
	invoker := &blockingInvoker{
		recordingInvoker: newRecordingInvoker(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	dispatcher := &asyncDispatcher{}
	engine := newTestEngine(store, gate, dispatcher, invoker)

	require.NoError(t, engine.StartPipeline(context.Background(), store.current("job-6"), StartOptions{}))
	<-invoker.started

	// cancellation lands while the script stage is still executing
	assert.True(t, engine.RequestCancel("job-6"))
	close(invoker.release)
	dispatcher.wg.Wait()

	v := store.current("job-6")
	assert.Equal(t, job.StatusFailed, v.Status)
	require.NotNil(t, v.ErrorPayload)
	assert.Equal(t, job.ErrorKindCancellation, v.ErrorPayload.Kind)
	// the script stage ran to completion before the flag was observed
	assert.Equal(t, []string{"generating_script/primary"}, invoker.stages())

	// attempt had started, charge stays
	_, releases := gate.counts()
	assert.Equal(t, 0, releases)

	// nothing in flight anymore
	assert.False(t, engine.RequestCancel("job-6"))
}

func TestEngine_RetrySwapClearsOnlyFailingStageArtifact(t *testing.T) {
	failed := pendingVideo("job-7")
	failed.Status = job.StatusFailed
	failed.RetryCount = 2
	failed.Artifacts = job.Artifacts{
		Script:    "a script",
		VoiceURL:  "storages/artifacts/voice.mp3",
		MediaURLs: []string{"https://example.com/stale.mp4"},
	}
	failed.ErrorPayload = &job.ErrorPayload{
		Kind:         job.ErrorKindStage,
		FailingStage: "fetching_media",
		Provider:     "primary",
		Detail:       "stock media host unreachable",
	}
	store := newMemStore(failed)
	gate := &fakeQuota{}
	invoker := newRecordingInvoker()
	engine := newTestEngine(store, gate, inlineDispatcher{}, invoker)

	decision, err := DecideRetry(failed, "", "swap-target", engine.BareRetryCap())
	require.NoError(t, err)
	require.True(t, decision.Swap())

	require.NoError(t, engine.Retry(context.Background(), failed, decision))

	// re-entry at the failing stage, earlier stages untouched
	assert.Equal(t, []string{
		"fetching_media/swap-target",
		"generating_video/primary",
		"assembling/primary",
	}, invoker.stages())

	seen := invoker.seenArtifacts[StageMedia]
	assert.Equal(t, "a script", seen.Script, "script artifact must survive the swap")
	assert.NotEmpty(t, seen.VoiceURL, "voice artifact must survive the swap")
	assert.Nil(t, seen.MediaURLs, "the failing stage artifact must be reset")

	v := store.current("job-7")
	assert.Equal(t, job.StatusCompleted, v.Status)
	assert.Equal(t, 0, v.RetryCount, "a swap resets the bare retry counter")
	assert.Nil(t, v.ErrorPayload)

	// retries never charge quota again
	reserves, _ := gate.counts()
	assert.Equal(t, 0, reserves)
}
