package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skillsync/internal/models"
)

const resumeColumns = `id, user_id, file_name, file_url, storage_path, title, description, extracted_text, extracted_skills, uploaded_at, updated_at`

// ResumeStore is the relational catalog of uploaded resumes. Every query is
// scoped by user id; a row owned by someone else behaves as missing.
type ResumeStore struct {
	db     *sql.DB
	driver string
}

func NewResumeStore(db *sql.DB, driver string) *ResumeStore {
	return &ResumeStore{db: db, driver: Normalize(driver)}
}

func (s *ResumeStore) q(query string) string {
	return Rebind(s.driver, query)
}

// Insert stores a new record. ID and timestamps must already be set.
func (s *ResumeStore) Insert(ctx context.Context, rec *models.ResumeRecord) error {
	if rec == nil {
		return errors.New("resume record is nil")
	}
	skills, err := encodeSkills(rec.ExtractedSkills)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO resumes (`+resumeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, rec.FileName, rec.FileURL, rec.StoragePath, rec.Title, rec.Description,
		rec.ExtractedText, skills, rec.UploadedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	return nil
}

// ListByUser returns the user's resumes, newest upload first.
func (s *ResumeStore) ListByUser(ctx context.Context, userID int64) ([]models.ResumeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT `+resumeColumns+` FROM resumes WHERE user_id = ? ORDER BY uploaded_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	resumes := make([]models.ResumeRecord, 0)
	for rows.Next() {
		rec, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, *rec)
	}
	return resumes, rows.Err()
}

// GetByUser returns sql.ErrNoRows when the resume is missing or not owned by userID.
func (s *ResumeStore) GetByUser(ctx context.Context, id string, userID int64) (*models.ResumeRecord, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT `+resumeColumns+` FROM resumes WHERE id = ? AND user_id = ?`), id, userID)
	rec, err := scanResume(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return rec, nil
}

// UpdateMetadata sets the provided fields; nil pointers leave the column untouched.
func (s *ResumeStore) UpdateMetadata(ctx context.Context, id string, userID int64, title, description *string, at time.Time) (*models.ResumeRecord, error) {
	query := `UPDATE resumes SET updated_at = ?`
	args := []any{at.UTC()}
	if title != nil {
		query += `, title = ?`
		args = append(args, *title)
	}
	if description != nil {
		query += `, description = ?`
		args = append(args, *description)
	}
	query += ` WHERE id = ? AND user_id = ?`
	args = append(args, id, userID)

	if err := s.execOne(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update resume: %w", err)
	}
	return s.GetByUser(ctx, id, userID)
}

// UpdateSkills overwrites the extracted skills. Concurrent callers race; the
// last write wins.
func (s *ResumeStore) UpdateSkills(ctx context.Context, id string, userID int64, skills []models.ExtractedSkill, at time.Time) (*models.ResumeRecord, error) {
	encoded, err := encodeSkills(skills)
	if err != nil {
		return nil, err
	}
	if err := s.execOne(ctx,
		`UPDATE resumes SET extracted_skills = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		encoded, at.UTC(), id, userID,
	); err != nil {
		return nil, fmt.Errorf("update skills: %w", err)
	}
	return s.GetByUser(ctx, id, userID)
}

// Delete removes the catalog row.
func (s *ResumeStore) Delete(ctx context.Context, id string, userID int64) error {
	if err := s.execOne(ctx, `DELETE FROM resumes WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete resume: %w", err)
	}
	return nil
}

func (s *ResumeStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(row rowScanner) (*models.ResumeRecord, error) {
	var (
		rec    models.ResumeRecord
		skills []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.FileName,
		&rec.FileURL,
		&rec.StoragePath,
		&rec.Title,
		&rec.Description,
		&rec.ExtractedText,
		&skills,
		&rec.UploadedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan resume: %w", err)
	}
	decoded, err := decodeSkills(skills)
	if err != nil {
		return nil, fmt.Errorf("decode skills for %s: %w", rec.ID, err)
	}
	rec.ExtractedSkills = decoded
	return &rec, nil
}

func encodeSkills(skills []models.ExtractedSkill) (string, error) {
	if skills == nil {
		skills = []models.ExtractedSkill{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}
	return string(data), nil
}

func decodeSkills(raw []byte) ([]models.ExtractedSkill, error) {
	skills := make([]models.ExtractedSkill, 0)
	if len(raw) == 0 {
		return skills, nil
	}
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil, err
	}
	if skills == nil {
		skills = make([]models.ExtractedSkill, 0)
	}
	return skills, nil
}
