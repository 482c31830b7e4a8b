package upload

import (
	"fmt"
	"strings"

	"skillsync/internal/config"
)

// Policy is the immutable set of limits the gate enforces. Build it once
// from config and pass it by value.
type Policy struct {
	fieldName string
	types     map[string]struct{}
	exts      map[string]struct{}
	extList   []string
	maxSize   int64
	maxFiles  int
}

func NewPolicy(cfg config.UploadConfig) Policy {
	p := Policy{
		fieldName: cfg.FieldName,
		types:     make(map[string]struct{}, len(cfg.AllowedTypes)),
		exts:      make(map[string]struct{}, len(cfg.AllowedExtensions)),
		maxSize:   cfg.MaxSize,
		maxFiles:  cfg.MaxFiles,
	}
	if p.fieldName == "" {
		p.fieldName = config.DefaultFieldName
	}
	if p.maxSize <= 0 {
		p.maxSize = config.DefaultMaxSize
	}
	if p.maxFiles <= 0 {
		p.maxFiles = config.DefaultMaxFiles
	}
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = config.DefaultAllowedTypes
	}
	for _, t := range types {
		p.types[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = config.DefaultAllowedExtensions
	}
	for _, e := range exts {
		e = normalizeExt(e)
		if _, dup := p.exts[e]; dup {
			continue
		}
		p.exts[e] = struct{}{}
		p.extList = append(p.extList, e)
	}
	return p
}

func (p Policy) FieldName() string { return p.fieldName }
func (p Policy) MaxSize() int64    { return p.maxSize }
func (p Policy) MaxFiles() int     { return p.maxFiles }

func (p Policy) AllowsType(mimeType string) bool {
	_, ok := p.types[strings.ToLower(mimeType)]
	return ok
}

func (p Policy) AllowsExt(ext string) bool {
	_, ok := p.exts[normalizeExt(ext)]
	return ok
}

// Extensions returns a copy of the allowed extensions in configured order.
func (p Policy) Extensions() []string {
	return append([]string(nil), p.extList...)
}

func (p Policy) maxSizeLabel() string {
	if p.maxSize%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", p.maxSize>>20)
	}
	return fmt.Sprintf("%.1fMB", float64(p.maxSize)/float64(1<<20))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
