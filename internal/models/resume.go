package models

import "time"

// SkillLevel is the self-assessed proficiency attached to an extracted skill.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

// Valid reports whether l is one of the four known levels.
func (l SkillLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert:
		return true
	}
	return false
}

// ExtractedSkill is one normalized skill produced by the AI extraction step.
// Downstream skill-gap and learning-path services consume it in this shape.
type ExtractedSkill struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Level      SkillLevel `json:"level"`
	Confidence float64    `json:"confidence"`
}

// ResumeRecord is the durable catalog entry for one uploaded resume.
type ResumeRecord struct {
	ID              string           `json:"id"`
	UserID          int64            `json:"user_id"`
	FileName        string           `json:"file_name"`
	FileURL         string           `json:"file_url"`
	StoragePath     string           `json:"storage_path"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	ExtractedText   string           `json:"extracted_text"`
	ExtractedSkills []ExtractedSkill `json:"extracted_skills"`
	UploadedAt      time.Time        `json:"uploaded_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
