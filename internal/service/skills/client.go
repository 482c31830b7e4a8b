// Package skills asks a chat model for the skills listed in a resume and
// normalizes the answer.
package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"skillsync/internal/config"
	"skillsync/internal/models"
)

const (
	defaultCategory   = "Other"
	defaultConfidence = 0.8

	systemPrompt = "You are an expert at analyzing resumes and extracting technical skills. Return only valid JSON."

	promptTemplate = `Analyze the following resume and extract every professional skill it demonstrates.

Return a JSON array. Each element must be an object with exactly these fields:
- "name": the skill name, e.g. "Go" or "Kubernetes"
- "category": a short grouping such as "Languages", "Frameworks", "Databases", "Cloud", "Tools" or "Soft Skills"
- "level": one of "beginner", "intermediate", "advanced", "expert"
- "confidence": a number between 0 and 1

Respond with the JSON array only, without markdown or commentary.

Resume:
%s`
)

// Generator is the part of an eino chat model the client needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client extracts skills and never fails: any upstream or parse problem
// yields an empty list, which callers must read as "unavailable" rather
// than "no skills".
type Client struct {
	gen  Generator
	opts []model.Option
}

// New returns a client over gen. A nil gen gives a client that always
// returns an empty list.
func New(gen Generator, cfg config.SkillExtractionConfig) *Client {
	opts := []model.Option{
		model.WithTemperature(cfg.Temperature),
		model.WithMaxTokens(cfg.MaxTokens),
		model.WithTopP(cfg.TopP),
	}
	if cfg.Model != "" {
		opts = append(opts, model.WithModel(cfg.Model))
	}
	return &Client{gen: gen, opts: opts}
}

func (c *Client) Extract(ctx context.Context, text string) []models.ExtractedSkill {
	if c == nil || c.gen == nil {
		return []models.ExtractedSkill{}
	}
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: fmt.Sprintf(promptTemplate, text)},
	}
	resp, err := c.gen.Generate(ctx, messages, c.opts...)
	if err != nil {
		log.Printf("skill extraction: generate failed: %v", err)
		return []models.ExtractedSkill{}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		log.Printf("skill extraction: empty model response")
		return []models.ExtractedSkill{}
	}
	skills, err := Parse(resp.Content)
	if err != nil {
		log.Printf("skill extraction: %v", err)
		return []models.ExtractedSkill{}
	}
	return skills
}

var errNotArray = errors.New("model response is not a JSON array")

// Parse decodes a model response into normalized skills. The response must
// be a bare JSON array; anything else is an error.
func Parse(raw string) ([]models.ExtractedSkill, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotArray
		}
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if items == nil {
		return nil, errNotArray
	}

	out := make([]models.ExtractedSkill, 0, len(items))
	for _, item := range items {
		skill, ok := normalize(item)
		if !ok {
			continue
		}
		out = append(out, skill)
	}
	return out, nil
}

// normalize maps one array element to a skill. Objects get per-field
// defaults, a bare string is taken as the name, other values are dropped.
func normalize(item json.RawMessage) (models.ExtractedSkill, bool) {
	if string(item) == "null" {
		return models.ExtractedSkill{}, false
	}
	skill := models.ExtractedSkill{
		ID:         "skill_" + uuid.NewString(),
		Category:   defaultCategory,
		Level:      models.LevelBeginner,
		Confidence: defaultConfidence,
	}

	var name string
	if err := json.Unmarshal(item, &name); err == nil {
		skill.Name = strings.TrimSpace(name)
		return skill, true
	}

	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return skill, false
	}
	skill.Name = stringField(fields["name"])
	if category := stringField(fields["category"]); category != "" {
		skill.Category = category
	}
	if level := models.SkillLevel(strings.ToLower(stringField(fields["level"]))); level.Valid() {
		skill.Level = level
	}
	if conf, ok := numberField(fields["confidence"]); ok && conf != 0 {
		skill.Confidence = clamp(conf)
	}
	return skill, true
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// numberField accepts finite numbers and numeric strings. NaN and Inf
// are rejected so the default applies.
func numberField(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
