package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"os"
	"sync"

	"skillsync/internal/models"
)

// Staged is a file held in the staging directory for one request. Release
// is idempotent: the pipeline calls it on success and the HTTP handler
// defers it for every other exit path.
type Staged struct {
	doc  models.UploadedDocument
	form *multipart.Form

	once sync.Once
	err  error
}

func (s *Staged) Document() models.UploadedDocument { return s.doc }

func (s *Staged) Path() string { return s.doc.Path }

// FormValue returns a non-file field from the same multipart request.
func (s *Staged) FormValue(key string) string {
	if s.form == nil {
		return ""
	}
	if vals := s.form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Release deletes the staged file and any multipart spill files.
func (s *Staged) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if s.doc.Path != "" {
			if err := os.Remove(s.doc.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.err = fmt.Errorf("remove staged file: %w", err)
			}
		}
		if s.form != nil {
			if err := s.form.RemoveAll(); err != nil && s.err == nil {
				s.err = fmt.Errorf("remove multipart files: %w", err)
			}
		}
	})
	return s.err
}
