package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/generation"
	"github.com/skimapp/skim-api/internal/hn"
	"github.com/skimapp/skim-api/internal/store"
)

// fakeSource serves a fixed id space. Ids listed in missing return
// ErrItemMissing, ids listed in unavailable return ErrItemUnavailable,
// and ids listed in transient fail with an exhausted-retry error until
// their budget of failures is spent.
type fakeSource struct {
	maxID       int64
	items       map[int64]*hn.Item
	missing     map[int64]bool
	unavailable map[int64]bool
	transient   map[int64]int
	fetches     []int64
}

func (f *fakeSource) MaxItemID(_ context.Context) (int64, error) {
	return f.maxID, nil
}

func (f *fakeSource) FetchItem(_ context.Context, id int64) (*hn.Item, error) {
	f.fetches = append(f.fetches, id)
	if f.transient[id] > 0 {
		f.transient[id]--
		return nil, errors.New("upstream unavailable")
	}
	if f.missing[id] {
		return nil, hn.ErrItemMissing
	}
	if f.unavailable[id] {
		return nil, fmt.Errorf("item %d: %w", id, hn.ErrItemUnavailable)
	}
	item, ok := f.items[id]
	if !ok {
		return nil, hn.ErrItemMissing
	}
	return item, nil
}

func storyItem(id int64, title string, createdAt time.Time) *hn.Item {
	return &hn.Item{
		ID:    id,
		Type:  "story",
		By:    "alice",
		Time:  createdAt.Unix(),
		Title: title,
		URL:   "https://example.com/story",
		Score: 42,
	}
}

func commentItem(id int64, createdAt time.Time) *hn.Item {
	return &hn.Item{ID: id, Type: "comment", By: "bob", Time: createdAt.Unix()}
}

// fakeStoryStore keeps stories in a map keyed by external id.
type fakeStoryStore struct {
	mu      sync.Mutex
	nextID  int64
	stories map[int64]*domain.Story

	failureCalls [][]int64
}

func newFakeStoryStore() *fakeStoryStore {
	return &fakeStoryStore{stories: make(map[int64]*domain.Story)}
}

func (f *fakeStoryStore) Upsert(_ context.Context, story *domain.Story) (*domain.Story, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.stories[story.ExternalID]; ok {
		existing.Title = story.Title
		existing.URL = story.URL
		existing.Score = story.Score
		existing.Author = story.Author
		existing.CommentCount = story.CommentCount
		copied := *existing
		return &copied, false, nil
	}
	f.nextID++
	stored := *story
	stored.ID = f.nextID
	stored.Status = domain.EnrichmentPending
	f.stories[story.ExternalID] = &stored
	copied := stored
	return &copied, true, nil
}

func (f *fakeStoryStore) GetByExternalID(_ context.Context, externalID int64) (*domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	story, ok := f.stories[externalID]
	if !ok {
		return nil, store.ErrStoryNotFound
	}
	copied := *story
	return &copied, nil
}

func (f *fakeStoryStore) ExistingExternalIDs(_ context.Context, externalIDs []int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := make(map[int64]bool)
	for _, id := range externalIDs {
		if _, ok := f.stories[id]; ok {
			known[id] = true
		}
	}
	return known, nil
}

func (f *fakeStoryStore) SelectFailedPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Story
	for _, story := range f.stories {
		if story.Status == domain.EnrichmentFailedPending && story.UpdatedAt.Before(cutoff) {
			copied := *story
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStoryStore) byID(storyID int64) *domain.Story {
	for _, story := range f.stories {
		if story.ID == storyID {
			return story
		}
	}
	return nil
}

func (f *fakeStoryStore) MarkSummarized(_ context.Context, storyID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	story := f.byID(storyID)
	if story == nil {
		return store.ErrStoryNotFound
	}
	story.Status = domain.EnrichmentSummarized
	return nil
}

func (f *fakeStoryStore) MarkTagged(_ context.Context, storyID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	story := f.byID(storyID)
	if story == nil {
		return store.ErrStoryNotFound
	}
	story.Status = domain.EnrichmentTagged
	story.AttemptCount = 0
	return nil
}

func (f *fakeStoryStore) RecordEnrichmentFailure(_ context.Context, storyIDs []int64, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failureCalls = append(f.failureCalls, storyIDs)
	for _, id := range storyIDs {
		story := f.byID(id)
		if story == nil {
			return store.ErrStoryNotFound
		}
		story.AttemptCount++
		if story.AttemptCount >= maxAttempts {
			story.Status = domain.EnrichmentFailed
		} else {
			story.Status = domain.EnrichmentFailedPending
		}
		story.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (f *fakeStoryStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.stories)), nil
}

// fakeProgressStore keeps progress records in memory.
type fakeProgressStore struct {
	mu      sync.Mutex
	records map[string]*domain.ProgressRecord
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{records: make(map[string]*domain.ProgressRecord)}
}

func (f *fakeProgressStore) record(jobName string) *domain.ProgressRecord {
	rec, ok := f.records[jobName]
	if !ok {
		rec = &domain.ProgressRecord{JobName: jobName, Status: domain.RunIdle}
		f.records[jobName] = rec
	}
	return rec
}

func (f *fakeProgressStore) Get(_ context.Context, jobName string) (*domain.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[jobName]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeProgressStore) TryBeginRun(_ context.Context, jobName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(jobName)
	if rec.Status == domain.RunRunning || rec.Status == domain.RunCompleted {
		return false, nil
	}
	rec.Status = domain.RunRunning
	return true, nil
}

func (f *fakeProgressStore) AdvanceCursor(_ context.Context, jobName string, cursor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(jobName)
	rec.Cursor = cursor
	rec.HasCursor = true
	return nil
}

func (f *fakeProgressStore) EndRun(_ context.Context, jobName string, outcome domain.RunOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(jobName)
	now := time.Now().UTC()
	rec.LastRunAt = &now
	switch outcome {
	case domain.OutcomeSuccess:
		rec.Status = domain.RunIdle
		rec.FailureCount = 0
	case domain.OutcomeCompleted:
		rec.Status = domain.RunCompleted
		rec.FailureCount = 0
	default:
		rec.Status = domain.RunError
	}
	return nil
}

func (f *fakeProgressStore) RecordFailure(_ context.Context, jobName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(jobName).FailureCount++
	return nil
}

func (f *fakeProgressStore) AddCounts(_ context.Context, jobName string, itemsProcessed, storiesIngested int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(jobName)
	rec.ItemsProcessed += itemsProcessed
	rec.StoriesIngested += storiesIngested
	return nil
}

func (f *fakeProgressStore) Reset(_ context.Context, jobName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(jobName)
	rec.Cursor = 0
	rec.HasCursor = false
	rec.Status = domain.RunIdle
	rec.FailureCount = 0
	return nil
}

func (f *fakeProgressStore) List(_ context.Context) ([]*domain.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ProgressRecord
	for _, rec := range f.records {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

// fakeLedger records skipped ids.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[int64]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[int64]string)}
}

func (f *fakeLedger) Record(_ context.Context, externalID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[externalID] = reason
	return nil
}

func (f *fakeLedger) CountSince(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

// fakeSummaryStore keeps at most one summary per story.
type fakeSummaryStore struct {
	mu        sync.Mutex
	summaries map[int64]*domain.Summary
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{summaries: make(map[int64]*domain.Summary)}
}

func (f *fakeSummaryStore) Upsert(_ context.Context, summary *domain.Summary) (*domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *summary
	f.summaries[summary.StoryID] = &copied
	return &copied, nil
}

func (f *fakeSummaryStore) GetByStoryID(_ context.Context, storyID int64) (*domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.summaries[storyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *summary
	return &copied, nil
}

// fakeTagStore keeps tags by slug and story links in memory, and records
// the maintenance operations applied to it.
type fakeTagStore struct {
	mu     sync.Mutex
	nextID int64
	tags   map[string]*domain.Tag
	links  map[int64]map[int64]bool
	usage  []domain.TagUsage

	merged  []MergeData
	renamed []RenameData
	retired []int64
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		tags:  make(map[string]*domain.Tag),
		links: make(map[int64]map[int64]bool),
	}
}

func (f *fakeTagStore) GetOrCreate(_ context.Context, tag *domain.Tag) (*domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.tags[tag.Slug]; ok {
		copied := *existing
		return &copied, nil
	}
	f.nextID++
	stored := *tag
	stored.ID = f.nextID
	f.tags[tag.Slug] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeTagStore) AttachToStory(_ context.Context, storyID int64, tagIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.links[storyID] == nil {
		f.links[storyID] = make(map[int64]bool)
	}
	for _, id := range tagIDs {
		f.links[storyID][id] = true
	}
	return nil
}

func (f *fakeTagStore) UsageSince(_ context.Context, _ time.Time) ([]domain.TagUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, nil
}

func (f *fakeTagStore) Merge(_ context.Context, fromTagID, intoTagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, MergeData{FromTagID: fromTagID, IntoTagID: intoTagID})
	return nil
}

func (f *fakeTagStore) Rename(_ context.Context, tagID int64, newName, newSlug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed = append(f.renamed, RenameData{TagID: tagID, NewName: newName, NewSlug: newSlug})
	return nil
}

func (f *fakeTagStore) Retire(_ context.Context, tagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retired = append(f.retired, tagID)
	return nil
}

// fakeProposalStore records agent runs and proposals.
type fakeProposalStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*domain.AgentRun
	proposals []*domain.TagProposal
}

func newFakeProposalStore() *fakeProposalStore {
	return &fakeProposalStore{runs: make(map[uuid.UUID]*domain.AgentRun)}
}

func (f *fakeProposalStore) CreateRun(_ context.Context, run *domain.AgentRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *run
	f.runs[run.ID] = &copied
	return nil
}

func (f *fakeProposalStore) FinishRun(_ context.Context, runID uuid.UUID, status domain.AgentRunStatus, errMsg string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Error = errMsg
	run.Result = result
	return nil
}

func (f *fakeProposalStore) CreateProposal(_ context.Context, proposal *domain.TagProposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *proposal
	f.proposals = append(f.proposals, &copied)
	return nil
}

func (f *fakeProposalStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ProposalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, proposal := range f.proposals {
		if proposal.ID == id {
			proposal.Status = status
			return nil
		}
	}
	return store.ErrProposalNotFound
}

func (f *fakeProposalStore) List(_ context.Context, status domain.ProposalStatus, limit int) ([]*domain.TagProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.TagProposal
	for _, proposal := range f.proposals {
		if status != "" && proposal.Status != status {
			continue
		}
		copied := *proposal
		out = append(out, &copied)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeEnricher produces deterministic enrichments, or fails whole batches
// while failures remain.
type fakeEnricher struct {
	mu       sync.Mutex
	failures int
	calls    int
	batches  [][]int64
	tags     []string
}

func (f *fakeEnricher) EnrichBatch(_ context.Context, stories []*domain.Story) ([]generation.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ids := make([]int64, len(stories))
	for i, story := range stories {
		ids[i] = story.ID
	}
	f.batches = append(f.batches, ids)

	if f.failures > 0 {
		f.failures--
		return nil, generation.ErrEnrichmentFailed
	}

	tags := f.tags
	if tags == nil {
		tags = []string{"Tech"}
	}
	results := make([]generation.Enrichment, len(stories))
	for i, story := range stories {
		results[i] = generation.Enrichment{
			StoryID: story.ID,
			Summary: "A summary.",
			Model:   "fake-model",
			Tags:    tags,
		}
	}
	return results, nil
}

var (
	_ store.StoryStore    = (*fakeStoryStore)(nil)
	_ store.ProgressStore = (*fakeProgressStore)(nil)
	_ store.FailureLedger = (*fakeLedger)(nil)
	_ store.SummaryStore  = (*fakeSummaryStore)(nil)
	_ store.TagStore      = (*fakeTagStore)(nil)
	_ store.ProposalStore = (*fakeProposalStore)(nil)
	_ generation.Enricher = (*fakeEnricher)(nil)
	_ hn.Source           = (*fakeSource)(nil)
)
