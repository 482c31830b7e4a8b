package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/internal/models"
	"skillsync/internal/service/resume"
)

type resumeWithSkills struct {
	Resume          *models.ResumeRecord    `json:"resume"`
	ExtractedSkills []models.ExtractedSkill `json:"extractedSkills"`
}

func withSkills(rec *models.ResumeRecord) resumeWithSkills {
	skills := rec.ExtractedSkills
	if skills == nil {
		skills = []models.ExtractedSkill{}
	}
	return resumeWithSkills{Resume: rec, ExtractedSkills: skills}
}

// uploadResume stages the file, then runs the pipeline. The staged file is
// released on every path out of this handler.
func (h *Handler) uploadResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	staged, err := h.gate.Stage(c.Request)
	if err != nil {
		fail(c, err)
		return
	}
	defer func() {
		if err := staged.Release(); err != nil {
			log.Printf("release staged upload: %v", err)
		}
	}()

	rec, err := h.resumes.Ingest(c.Request.Context(), userID, staged, resume.UploadInput{
		Title:       staged.FormValue("title"),
		Description: staged.FormValue("description"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, withSkills(rec), "Resume uploaded successfully")
}

func (h *Handler) listResumes(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	list, err := h.resumes.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, list, "")
}

func (h *Handler) getResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	rec, err := h.resumes.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, rec, "")
}

type updateResumeRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) updateResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Validation failed")
		return
	}
	rec, err := h.resumes.UpdateMetadata(c.Request.Context(), c.Param("id"), userID, resume.MetadataUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, rec, "Resume updated successfully")
}

func (h *Handler) deleteResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.resumes.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Resume deleted successfully")
}

func (h *Handler) reanalyzeResume(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	rec, err := h.resumes.Reanalyze(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, withSkills(rec), "Skills re-analyzed successfully")
}
