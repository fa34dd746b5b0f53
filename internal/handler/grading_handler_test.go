package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/dto"
	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
)

func seedAnalyzedSubmission(t *testing.T, db *gorm.DB, assignment models.Assignment) models.Submission {
	t.Helper()

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    "b11010",
		StudentName:  "Huang_Li",
		ClassName:    "cs101",
		FilePath:     "https://files.test/doc",
		Status:       lifecycle.StatusAnalyzed,
	}
	require.NoError(t, db.Create(&submission).Error)

	return submission
}

func gradeRequest(t *testing.T, submissionID uint, payload dto.GradeRequest) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", fmt.Sprintf("/api/v1/submissions/%d/grades/%d", submissionID, payload.QuestionNumber), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestGradingHandlerFullGradeLocksSubmission(t *testing.T) {
	app, db := setupTestApp(t)
	assignment := seedAssignment(t, db, 2, 10)
	submission := seedAnalyzedSubmission(t, db, assignment)

	for question, score := range map[int]int{1: 9, 2: 7} {
		resp, err := app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{
			QuestionNumber: question,
			Score:          score,
			Comment:        "ok",
		}))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/v1/submissions/%d/grades", submission.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                     `json:"success"`
		Data    dto.GradeSummaryResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Equal(t, lifecycle.StatusGraded, payload.Data.Status)
	require.Equal(t, 2, payload.Data.ScoredCount)
	require.Equal(t, 16, payload.Data.TotalScore)
	require.Equal(t, 20, payload.Data.MaxScore)

	// Submission is locked once every question is scored.
	resp, err = app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: 1, Score: 5}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGradingHandlerRejectsPendingSubmission(t *testing.T) {
	app, db := setupTestApp(t)
	assignment := seedAssignment(t, db, 2, 10)

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    "b11011",
		StudentName:  "Zhao_Min",
		ClassName:    "cs101",
		FilePath:     "https://files.test/doc",
		Status:       lifecycle.StatusPending,
	}
	require.NoError(t, db.Create(&submission).Error)

	resp, err := app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: 1, Score: 5}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGradingHandlerRejectsOutOfRangeScore(t *testing.T) {
	app, db := setupTestApp(t)
	assignment := seedAssignment(t, db, 2, 10)
	submission := seedAnalyzedSubmission(t, db, assignment)

	resp, err := app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: 1, Score: 11}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: 3, Score: 5}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGradingHandlerReopenArchivesGrades(t *testing.T) {
	app, db := setupTestApp(t)
	assignment := seedAssignment(t, db, 2, 10)
	submission := seedAnalyzedSubmission(t, db, assignment)

	for question := 1; question <= 2; question++ {
		resp, err := app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: question, Score: 8}))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	body, err := json.Marshal(dto.ReopenRequest{Reason: "regrade appeal", Confirm: true})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/submissions/%d/reopen", submission.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Submission
	require.NoError(t, db.First(&reloaded, submission.ID).Error)
	require.Equal(t, lifecycle.StatusPending, reloaded.Status)

	resp, err = app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/v1/submissions/%d/grades/archive", submission.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                       `json:"success"`
		Data    []dto.GradeArchiveResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.Len(t, payload.Data, 2)
	require.Equal(t, "regrade appeal", payload.Data[0].Reason)
}

func TestGradingHandlerReopenRequiresConfirm(t *testing.T) {
	app, db := setupTestApp(t)
	assignment := seedAssignment(t, db, 1, 10)
	submission := seedAnalyzedSubmission(t, db, assignment)

	resp, err := app.Test(gradeRequest(t, submission.ID, dto.GradeRequest{QuestionNumber: 1, Score: 10}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := json.Marshal(dto.ReopenRequest{Reason: "mistake"})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/submissions/%d/reopen", submission.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
