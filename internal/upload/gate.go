package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillsync/internal/apperr"
	"skillsync/internal/models"
)

// multipart parts above this size spill to the OS temp dir
const formMemory = 1 << 20

// Gate validates multipart uploads against a Policy and stages accepted
// files under dir.
type Gate struct {
	policy Policy
	dir    string
	now    func() time.Time
}

func NewGate(policy Policy, dir string) *Gate {
	return &Gate{policy: policy, dir: dir, now: time.Now}
}

func (g *Gate) Policy() Policy { return g.policy }
func (g *Gate) Dir() string    { return g.dir }

// Stage parses the request, validates the single file in it and copies it
// into the staging directory. Every rejection happens before anything is
// written to dir. The caller owns the returned Staged and must Release it.
func (g *Gate) Stage(r *http.Request) (*Staged, error) {
	// room for the file(s) plus ordinary form fields
	limit := g.policy.maxSize*int64(g.policy.maxFiles) + formMemory
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.FileValidation(fmt.Sprintf("File too large. Maximum size is %s.", g.policy.maxSizeLabel()))
		}
		return nil, apperr.FileValidation("File upload error.")
	}
	form := r.MultipartForm

	fh, err := g.validate(form)
	if err != nil {
		_ = form.RemoveAll()
		return nil, err
	}

	doc, err := g.save(fh)
	if err != nil {
		_ = form.RemoveAll()
		return nil, err
	}
	return &Staged{doc: doc, form: form}, nil
}

func (g *Gate) validate(form *multipart.Form) (*multipart.FileHeader, error) {
	var (
		count int
		file  *multipart.FileHeader
	)
	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		if field != g.policy.fieldName {
			return nil, apperr.FileValidation("Unexpected file field.")
		}
		count += len(headers)
		file = headers[0]
	}
	if count == 0 || file == nil {
		return nil, apperr.FileValidation("No file uploaded.")
	}
	if count > g.policy.maxFiles {
		return nil, apperr.FileValidation(fmt.Sprintf("Too many files. Only %d file allowed.", g.policy.maxFiles))
	}

	allowed := strings.Join(g.policy.Extensions(), ", ")
	if !g.policy.AllowsType(mediaType(file.Header.Get("Content-Type"))) {
		return nil, apperr.FileValidation("Invalid file type. Allowed types: " + allowed)
	}
	if !g.policy.AllowsExt(filepath.Ext(file.Filename)) {
		return nil, apperr.FileValidation("Invalid file extension. Allowed extensions: " + allowed)
	}
	if file.Size > g.policy.maxSize {
		return nil, apperr.FileValidation(fmt.Sprintf("File too large. Maximum size is %s.", g.policy.maxSizeLabel()))
	}
	return file, nil
}

func (g *Gate) save(fh *multipart.FileHeader) (models.UploadedDocument, error) {
	original := filepath.Base(fh.Filename)
	ext := normalizeExt(filepath.Ext(original))
	doc := models.UploadedDocument{
		OriginalName: original,
		MimeType:     mediaType(fh.Header.Get("Content-Type")),
		Size:         fh.Size,
		FieldName:    g.policy.fieldName,
		Ext:          ext,
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return doc, fmt.Errorf("create staging dir: %w", err)
	}
	name := fmt.Sprintf("%s-%d-%d%s", g.policy.fieldName, g.now().UnixMilli(), uuid.New().ID(), ext)
	doc.Path = filepath.Join(g.dir, name)

	src, err := fh.Open()
	if err != nil {
		return doc, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(doc.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return doc, fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(doc.Path)
		return doc, fmt.Errorf("write staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(doc.Path)
		return doc, fmt.Errorf("close staged file: %w", err)
	}
	return doc, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}
