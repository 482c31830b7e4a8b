package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillsync/internal/apperr"
	"skillsync/internal/config"
	"skillsync/internal/models"
	"skillsync/internal/objectstore"
	"skillsync/internal/service/extract"
	"skillsync/internal/service/skills"
	"skillsync/internal/storage"
)

const goSkillResponse = `[{"name":"Go","category":"Languages","level":"intermediate","confidence":0.9}]`

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	removeErr error
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Key(userID int64, at time.Time, fileName string) string {
	return fmt.Sprintf("resumes/%d/%d-%s", userID, at.UnixMilli(), fileName)
}

func (f *fakeStore) Put(_ context.Context, key, _ string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.objects[key]; ok {
		return objectstore.ErrObjectExists
	}
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeStore) URL(key string) string { return "https://cdn.test/" + key }

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, key)
	return nil
}

type stubModel struct{ content string }

func (s *stubModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return &schema.Message{Role: schema.Assistant, Content: s.content}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ResumeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.ResumeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type failingInsertRepo struct {
	*storage.ResumeStore
}

func (failingInsertRepo) Insert(context.Context, *models.ResumeRecord) error {
	return errors.New("database is locked")
}

type tempStaged struct {
	doc      models.UploadedDocument
	released int
}

func (s *tempStaged) Document() models.UploadedDocument { return s.doc }

func (s *tempStaged) Release() error {
	s.released++
	err := os.Remove(s.doc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func stageFile(t *testing.T, name, content string) *tempStaged {
	t.Helper()
	ext := strings.ToLower(filepath.Ext(name))
	path := filepath.Join(t.TempDir(), "resume-1-1"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &tempStaged{doc: models.UploadedDocument{
		Path:         path,
		OriginalName: name,
		MimeType:     "text/plain",
		Size:         int64(len(content)),
		FieldName:    "resume",
		Ext:          ext,
	}}
}

type fixture struct {
	svc    *Service
	repo   *storage.ResumeStore
	store  *fakeStore
	model  *stubModel
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: ":memory:"}}}
	db, err := storage.Open("sqlite3", cfg)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, "sqlite3"))
	t.Cleanup(func() { db.Close() })

	extractor, err := extract.New(context.Background())
	require.NoError(t, err)

	f := &fixture{
		repo:   storage.NewResumeStore(db, "sqlite3"),
		store:  newFakeStore(),
		model:  &stubModel{content: goSkillResponse},
		events: &recordingPublisher{},
	}
	client := skills.New(f.model, config.SkillExtractionConfig{Temperature: 0.3, MaxTokens: 2000, TopP: 0.9})
	f.svc = NewService(f.repo, f.store, extractor, client, f.events)
	return f
}

func (f *fixture) ingest(t *testing.T, userID int64, name, content string) *models.ResumeRecord {
	t.Helper()
	rec, err := f.svc.Ingest(context.Background(), userID, stageFile(t, name, content), UploadInput{})
	require.NoError(t, err)
	return rec
}

func TestIngestTextResume(t *testing.T) {
	f := newFixture(t)
	staged := stageFile(t, "cv.txt", "Skills: Go, Rust")

	rec, err := f.svc.Ingest(context.Background(), 7, staged, UploadInput{Description: "  backend  "})
	require.NoError(t, err)

	require.Len(t, rec.ExtractedSkills, 1)
	skill := rec.ExtractedSkills[0]
	assert.Equal(t, "Go", skill.Name)
	assert.Equal(t, models.LevelIntermediate, skill.Level)
	assert.Equal(t, 0.9, skill.Confidence)

	assert.Equal(t, "cv.txt", rec.Title)
	assert.Equal(t, "backend", rec.Description)
	assert.Equal(t, "Skills: Go, Rust", rec.ExtractedText)
	assert.True(t, strings.HasPrefix(rec.StoragePath, "resumes/7/"))
	assert.Equal(t, "https://cdn.test/"+rec.StoragePath, rec.FileURL)
	assert.Equal(t, []byte("Skills: Go, Rust"), f.store.objects[rec.StoragePath])

	assert.Equal(t, 1, staged.released)
	assert.NoFileExists(t, staged.doc.Path)

	stored, err := f.repo.GetByUser(context.Background(), rec.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, rec.ExtractedSkills[0].Name, stored.ExtractedSkills[0].Name)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventResumeUploaded, f.events.events[0].Type)
	assert.Equal(t, rec.ID, f.events.events[0].ResumeID)
}

func TestIngestNonArrayResponseStoresEmptySkills(t *testing.T) {
	f := newFixture(t)
	f.model.content = `{"skills":["Go"]}`

	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	assert.NotNil(t, rec.ExtractedSkills)
	assert.Empty(t, rec.ExtractedSkills)

	stored, err := f.repo.GetByUser(context.Background(), rec.ID, 1)
	require.NoError(t, err)
	assert.NotNil(t, stored.ExtractedSkills)
	assert.Empty(t, stored.ExtractedSkills)
}

func TestIngestNonFiniteConfidenceFallsBack(t *testing.T) {
	f := newFixture(t)
	f.model.content = `[{"name":"Go","level":"expert","confidence":"NaN"}]`

	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	require.Len(t, rec.ExtractedSkills, 1)
	assert.Equal(t, 0.8, rec.ExtractedSkills[0].Confidence)

	f.model.content = `[{"name":"Go","confidence":"Inf"}]`
	again, err := f.svc.Reanalyze(context.Background(), rec.ID, 1)
	require.NoError(t, err)
	require.Len(t, again.ExtractedSkills, 1)
	assert.Equal(t, 0.8, again.ExtractedSkills[0].Confidence)
}

func TestIngestExtractionFailureSkipsStorage(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ingest(context.Background(), 1, stageFile(t, "cv.txt", "   \n"), UploadInput{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindExtraction))
	assert.Empty(t, f.store.objects)
}

func TestIngestStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.putErr = errors.New("connection reset")

	_, err := f.svc.Ingest(context.Background(), 1, stageFile(t, "cv.txt", "Skills: Go"), UploadInput{})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindStorage, e.Kind)
	assert.Equal(t, 500, e.Status())

	list, err := f.svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIngestRefusesToOverwriteObject(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	f.ingest(t, 1, "cv.txt", "Skills: Go")
	_, err := f.svc.Ingest(context.Background(), 1, stageFile(t, "cv.txt", "Skills: Rust"), UploadInput{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.ErrorIs(t, err, objectstore.ErrObjectExists)
	assert.Equal(t, []byte("Skills: Go"), f.store.objects[f.store.Key(1, fixed, "cv.txt")])
}

func TestIngestCatalogFailureLeavesObject(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingInsertRepo{f.repo}, f.store, f.svc.text, f.svc.skills, f.events)

	_, err := svc.Ingest(context.Background(), 1, stageFile(t, "cv.txt", "Skills: Go"), UploadInput{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.Len(t, f.store.objects, 1)
	assert.Empty(t, f.events.events)
}

func TestIngestKeepsLongTitle(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", MaxTitleLength+1)
	rec, err := f.svc.Ingest(context.Background(), 1, stageFile(t, "cv.txt", "Skills: Go"),
		UploadInput{Title: "  " + long + "  "})
	require.NoError(t, err)
	assert.Equal(t, long, rec.Title)
	assert.Len(t, f.store.objects, 1)
}

func TestListIsScopedAndNewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	first := f.ingest(t, 1, "a.txt", "Go")
	second := f.ingest(t, 1, "b.txt", "Rust")
	f.ingest(t, 2, "c.txt", "Java")

	list, err := f.svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")

	for _, tc := range []struct {
		id     string
		userID int64
	}{
		{rec.ID, 2},
		{uuid.NewString(), 1},
		{"not-a-uuid", 1},
	} {
		_, err := f.svc.Get(context.Background(), tc.id, tc.userID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "id=%s user=%d", tc.id, tc.userID)
	}
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture(t)
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	ctx := context.Background()

	title := "  Platform Engineer  "
	updated, err := f.svc.UpdateMetadata(ctx, rec.ID, 1, MetadataUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", updated.Title)

	blank := "   "
	_, err = f.svc.UpdateMetadata(ctx, rec.ID, 1, MetadataUpdate{Title: &blank})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	long := strings.Repeat("d", MaxDescriptionLength+1)
	_, err = f.svc.UpdateMetadata(ctx, rec.ID, 1, MetadataUpdate{Description: &long})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	desc := "infra"
	_, err = f.svc.UpdateMetadata(ctx, rec.ID, 2, MetadataUpdate{Description: &desc})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	same, err := f.svc.UpdateMetadata(ctx, rec.ID, 1, MetadataUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", same.Title)
}

func TestReanalyzeIsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.model.content = `[]`
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go, Rust")
	require.Empty(t, rec.ExtractedSkills)

	f.model.content = `[{"name":"Go","category":"Languages","level":"advanced","confidence":0.7},{"name":"Rust"}]`
	first, err := f.svc.Reanalyze(context.Background(), rec.ID, 1)
	require.NoError(t, err)
	second, err := f.svc.Reanalyze(context.Background(), rec.ID, 1)
	require.NoError(t, err)

	require.Len(t, first.ExtractedSkills, 2)
	require.Len(t, second.ExtractedSkills, 2)
	for i := range first.ExtractedSkills {
		a, b := first.ExtractedSkills[i], second.ExtractedSkills[i]
		a.ID, b.ID = "", ""
		assert.Equal(t, a, b)
	}
	assert.Equal(t, "Skills: Go, Rust", second.ExtractedText)
	assert.Equal(t, rec.StoragePath, second.StoragePath)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, models.EventResumeReanalyzed, last.Type)
}

func TestReanalyzeOtherUsersResume(t *testing.T) {
	f := newFixture(t)
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	_, err := f.svc.Reanalyze(context.Background(), rec.ID, 2)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDeleteSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	f.store.removeErr = errors.New("bucket unreachable")

	require.NoError(t, f.svc.Delete(context.Background(), rec.ID, 1))
	assert.Equal(t, []string{rec.StoragePath}, f.store.removed)

	_, err := f.repo.GetByUser(context.Background(), rec.ID, 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, models.EventResumeDeleted, last.Type)
}

func TestDeleteNotOwned(t *testing.T) {
	f := newFixture(t)
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	err := f.svc.Delete(context.Background(), rec.ID, 2)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Empty(t, f.store.removed)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	rec := f.ingest(t, 1, "cv.txt", "Skills: Go")
	assert.NotEmpty(t, rec.ID)
}
