package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/internal/service"
	"github.com/kkian481718/CEGAS/internal/utils"
)

// SubmissionHandler wires submission upload, listing and assignment endpoints.
type SubmissionHandler struct {
	submissions  service.SubmissionService
	distribution service.DistributionService
	pipeline     service.PipelineService
	logger       zerolog.Logger
}

// NewSubmissionHandler constructs the handler. A nil pipeline disables the
// automatic analysis kick-off after upload.
func NewSubmissionHandler(submissions service.SubmissionService, distribution service.DistributionService, pipeline service.PipelineService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions:  submissions,
		distribution: distribution,
		pipeline:     pipeline,
		logger:       logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/upload", h.upload)
	router.Post("/upload/bulk", h.uploadBulk)
	router.Get("/:id", h.get)
	router.Patch("/:id/assignee", h.assign)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var filter repository.SubmissionFilter

	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment_id")
	}
	filter.AssignmentID = assignmentID

	assignedTo, err := parseQueryUint(c, "assigned_to")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assigned_to")
	}
	filter.AssignedTo = assignedTo

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	submissions, err := h.submissions.List(c.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) upload(c *fiber.Ctx) error {
	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil || assignmentID == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment_id is required")
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "document file is required")
	}

	document, err := readUpload(fileHeader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read document")
	}

	submission, err := h.submissions.Upload(c.Context(), *assignmentID, fileHeader.Filename, document, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadFilename):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnsupportedFileFormat):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		case errors.Is(err, service.ErrAssignmentArchived):
			return utils.SendError(c, fiber.StatusConflict, "assignment is archived")
		default:
			h.logger.Error().Err(err).Msg("failed to upload submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to upload submission")
		}
	}

	h.schedulePipeline(submission.ID)

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission uploaded", submission)
}

// uploadBulk accepts many documents under the "documents" field and treats
// each as an independent upload.
func (h *SubmissionHandler) uploadBulk(c *fiber.Ctx) error {
	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil || assignmentID == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment_id is required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}
	files := form.File["documents"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one document is required")
	}

	actor := activityActorFromContext(c)
	response := dto.BulkUploadResponse{
		Requested: len(files),
		Items:     make([]dto.BulkUploadItem, 0, len(files)),
	}

	for _, fileHeader := range files {
		item := dto.BulkUploadItem{Filename: fileHeader.Filename}

		document, err := readUpload(fileHeader)
		if err != nil {
			item.Error = "unable to read document"
			response.Failed++
			response.Items = append(response.Items, item)
			continue
		}

		submission, err := h.submissions.Upload(c.Context(), *assignmentID, fileHeader.Filename, document, actor)
		if err != nil {
			item.Error = err.Error()
			response.Failed++
			response.Items = append(response.Items, item)
			continue
		}

		item.SubmissionID = submission.ID
		response.Succeeded++
		response.Items = append(response.Items, item)
		h.schedulePipeline(submission.ID)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "bulk upload finished", response)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.submissions.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.SubmissionAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.distribution.Assign(c.Context(), id, payload.GraderID, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrGraderInactive):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrForbidden):
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		default:
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to assign submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to assign submission")
		}
	}

	return utils.SendSuccess(c, "submission assignee updated", submission)
}

// schedulePipeline kicks off extraction and analysis in the background. The
// request context is not reused: the run outlives the HTTP exchange.
func (h *SubmissionHandler) schedulePipeline(submissionID uint) {
	if h.pipeline == nil {
		return
	}

	go func() {
		if err := h.pipeline.Run(context.Background(), submissionID); err != nil {
			h.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("background pipeline run failed")
		}
	}()
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
