package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/pkg/storage"
)

// Upload sentinel errors.
var (
	ErrAssignmentNotFound    = errors.New("assignment not found")
	ErrAssignmentArchived    = errors.New("assignment is archived")
	ErrBadFilename           = errors.New("filename does not follow <class>_<student_id>_<student_name>.<ext>")
	ErrUnsupportedFileFormat = errors.New("unsupported document format")
)

// Document formats the extractor understands.
var allowedDocumentTypes = map[string]struct{}{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/pdf": {},
	"text/plain":      {},
}

// StudentInfo is the identity parsed from an upload's filename.
type StudentInfo struct {
	ClassName   string
	StudentID   string
	StudentName string
}

// SubmissionService manages uploads and read access to submissions.
type SubmissionService interface {
	Upload(ctx context.Context, assignmentID uint, filename string, document []byte, actor ActivityActor) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionDetailResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	store       storage.DocumentStore
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	store storage.DocumentStore,
	activity ActivityRecorder,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		store:       store,
		activity:    activity,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

// Upload stores a student document and creates the pending submission row.
// Student identity comes from the filename convention, so a malformed name
// is rejected before anything is stored.
func (s *submissionService) Upload(ctx context.Context, assignmentID uint, filename string, document []byte, actor ActivityActor) (dto.SubmissionResponse, error) {
	info, err := ParseSubmissionFilename(filename)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	detected := mimetype.Detect(document)
	if !isAllowedDocument(detected) {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedFileFormat, detected.String())
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}
	if assignment.IsArchived() {
		return dto.SubmissionResponse{}, ErrAssignmentArchived
	}

	path, err := s.store.Upload(ctx, filename, bytes.NewReader(document))
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("store document: %w", err)
	}

	submission := models.Submission{
		AssignmentID:     assignmentID,
		StudentID:        info.StudentID,
		StudentName:      info.StudentName,
		ClassName:        info.ClassName,
		FilePath:         path,
		OriginalFilename: filepath.Base(filename),
		Status:           lifecycle.StatusPending,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.activity != nil {
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "submission.uploaded",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"assignment_id": assignmentID,
				"student_id":    info.StudentID,
			},
		})
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignmentID).
		Str("student_id", info.StudentID).
		Msg("submission uploaded")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter repository.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionDetailResponse, error) {
	submission, err := s.submissions.GetWithDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}

	return dto.NewSubmissionDetailResponse(submission), nil
}

// ParseSubmissionFilename splits an upload name following the convention
// <class>_<student_id>_<student_name>.<ext>. Student names may themselves
// contain underscores, so the first two segments are authoritative and the
// rest belongs to the name.
func ParseSubmissionFilename(filename string) (StudentInfo, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	parts := strings.SplitN(stem, "_", 3)
	if len(parts) != 3 {
		return StudentInfo{}, fmt.Errorf("%w: %q", ErrBadFilename, base)
	}

	info := StudentInfo{
		ClassName:   strings.TrimSpace(parts[0]),
		StudentID:   strings.TrimSpace(parts[1]),
		StudentName: strings.TrimSpace(parts[2]),
	}
	if info.ClassName == "" || info.StudentID == "" || info.StudentName == "" {
		return StudentInfo{}, fmt.Errorf("%w: %q", ErrBadFilename, base)
	}

	return info, nil
}

func isAllowedDocument(detected *mimetype.MIME) bool {
	for allowed := range allowedDocumentTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}
