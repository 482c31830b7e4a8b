// Package resume runs the upload pipeline and owns the resume catalog
// operations exposed over HTTP.
package resume

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"skillsync/internal/apperr"
	"skillsync/internal/events"
	"skillsync/internal/models"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

type Repository interface {
	Insert(ctx context.Context, rec *models.ResumeRecord) error
	ListByUser(ctx context.Context, userID int64) ([]models.ResumeRecord, error)
	GetByUser(ctx context.Context, id string, userID int64) (*models.ResumeRecord, error)
	UpdateMetadata(ctx context.Context, id string, userID int64, title, description *string, at time.Time) (*models.ResumeRecord, error)
	UpdateSkills(ctx context.Context, id string, userID int64, skills []models.ExtractedSkill, at time.Time) (*models.ResumeRecord, error)
	Delete(ctx context.Context, id string, userID int64) error
}

type ObjectStore interface {
	Key(userID int64, at time.Time, fileName string) string
	Put(ctx context.Context, key, contentType string, body []byte) error
	URL(key string) string
	Remove(ctx context.Context, key string) error
}

type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// SkillExtractor never fails; an empty result means extraction was
// unavailable.
type SkillExtractor interface {
	Extract(ctx context.Context, text string) []models.ExtractedSkill
}

// StagedFile is the request-scoped local copy of an upload. Release must be
// safe to call more than once.
type StagedFile interface {
	Document() models.UploadedDocument
	Release() error
}

type Service struct {
	repo   Repository
	store  ObjectStore
	text   TextExtractor
	skills SkillExtractor
	events events.Publisher
	now    func() time.Time
}

func NewService(repo Repository, store ObjectStore, text TextExtractor, skills SkillExtractor, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:   repo,
		store:  store,
		text:   text,
		skills: skills,
		events: pub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UploadInput carries the optional form fields sent with the file.
type UploadInput struct {
	Title       string
	Description string
}

// MetadataUpdate holds the fields a PUT may change; nil means unchanged.
type MetadataUpdate struct {
	Title       *string
	Description *string
}

// Ingest runs extract, analyze, store and catalog for one staged file.
// The staged file is released on success; callers release it on failure.
// A catalog failure after a successful upload leaves the object in place.
func (s *Service) Ingest(ctx context.Context, userID int64, staged StagedFile, in UploadInput) (*models.ResumeRecord, error) {
	doc := staged.Document()
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		title = doc.OriginalName
	}

	text, err := s.text.Extract(ctx, doc.Path)
	if err != nil {
		return nil, err
	}

	skills := s.skills.Extract(ctx, text)

	body, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, apperr.Storage("Failed to upload file to storage", err)
	}
	now := s.now()
	key := s.store.Key(userID, now, doc.OriginalName)
	if err := s.store.Put(ctx, key, doc.MimeType, body); err != nil {
		return nil, apperr.Storage("Failed to upload file to storage", err)
	}

	rec := &models.ResumeRecord{
		ID:              uuid.NewString(),
		UserID:          userID,
		FileName:        doc.OriginalName,
		FileURL:         s.store.URL(key),
		StoragePath:     key,
		Title:           title,
		Description:     description,
		ExtractedText:   text,
		ExtractedSkills: skills,
		UploadedAt:      now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		log.Printf("insert resume for user %d failed, object %s left in storage: %v", userID, key, err)
		return nil, apperr.Persistence("Failed to save resume", err)
	}

	if err := staged.Release(); err != nil {
		log.Printf("release staged file %s: %v", doc.Path, err)
	}
	s.publish(ctx, models.EventResumeUploaded, rec)
	return rec, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.ResumeRecord, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("Failed to fetch resumes", err)
	}
	if list == nil {
		list = []models.ResumeRecord{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string, userID int64) (*models.ResumeRecord, error) {
	if !validID(id) {
		return nil, errNotFound()
	}
	rec, err := s.repo.GetByUser(ctx, id, userID)
	if err != nil {
		return nil, mapLookupErr(err, "Failed to fetch resume")
	}
	return rec, nil
}

func (s *Service) UpdateMetadata(ctx context.Context, id string, userID int64, upd MetadataUpdate) (*models.ResumeRecord, error) {
	title, description, err := normalizeMetadata(upd)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, errNotFound()
	}
	if title == nil && description == nil {
		return s.Get(ctx, id, userID)
	}
	rec, err := s.repo.UpdateMetadata(ctx, id, userID, title, description, s.now())
	if err != nil {
		return nil, mapLookupErr(err, "Failed to update resume")
	}
	return rec, nil
}

// Delete removes the catalog row. Removing the stored object is best effort:
// a storage failure is logged and the row is deleted anyway.
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	rec, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if rec.StoragePath != "" {
		if err := s.store.Remove(ctx, rec.StoragePath); err != nil {
			log.Printf("remove stored resume %s failed: %v", rec.StoragePath, err)
		}
	}
	if err := s.repo.Delete(ctx, rec.ID, userID); err != nil {
		return mapLookupErr(err, "Failed to delete resume")
	}
	s.publish(ctx, models.EventResumeDeleted, &models.ResumeRecord{ID: rec.ID, UserID: userID})
	return nil
}

// Reanalyze reruns skill extraction over the stored text. Concurrent calls
// for one record are not serialized; the last write wins.
func (s *Service) Reanalyze(ctx context.Context, id string, userID int64) (*models.ResumeRecord, error) {
	rec, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	skills := s.skills.Extract(ctx, rec.ExtractedText)
	updated, err := s.repo.UpdateSkills(ctx, rec.ID, userID, skills, s.now())
	if err != nil {
		return nil, mapLookupErr(err, "Failed to update skills")
	}
	s.publish(ctx, models.EventResumeReanalyzed, updated)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, typ models.EventType, rec *models.ResumeRecord) {
	event := models.ResumeEvent{
		Type:     typ,
		ResumeID: rec.ID,
		UserID:   rec.UserID,
		Skills:   rec.ExtractedSkills,
		At:       s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("publish %s for resume %s failed: %v", typ, rec.ID, err)
	}
}

func normalizeMetadata(upd MetadataUpdate) (title, description *string, err error) {
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if n := utf8.RuneCountInString(t); n < 1 || n > MaxTitleLength {
			return nil, nil, apperr.Validation("Validation failed")
		}
		title = &t
	}
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		if utf8.RuneCountInString(d) > MaxDescriptionLength {
			return nil, nil, apperr.Validation("Validation failed")
		}
		description = &d
	}
	return title, description, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func errNotFound() error {
	return apperr.NotFound("Resume not found")
}

func mapLookupErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound()
	}
	return apperr.Persistence(msg, err)
}
