package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type ResumeHandler struct {
	jobs services.JobService
}

func NewResumeHandler(jobs services.JobService) *ResumeHandler {
	return &ResumeHandler{jobs: jobs}
}

// HandleSubmit handles POST /resumes
func (h *ResumeHandler) HandleSubmit(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.FileValidation("No file uploaded", "", "", 0)
	}

	var prefs models.Preferences
	if raw := strings.TrimSpace(c.FormValue("preferences")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
			return apperrors.ValidationField("preferences", "preferences must be a JSON object")
		}
	}

	resp, err := h.jobs.Submit(c.UserContext(), middleware.UserID(c), file, prefs)
	if err != nil {
		return err
	}

	// The pipeline runs in the background; clients poll the job.
	return respond(c, fiber.StatusAccepted, resp)
}
