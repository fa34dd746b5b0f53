package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kkian481718/CEGAS/internal/lifecycle"
	"github.com/kkian481718/CEGAS/internal/models"
	"github.com/kkian481718/CEGAS/internal/repository"
	"github.com/kkian481718/CEGAS/pkg/cppcheck"
	"github.com/kkian481718/CEGAS/pkg/extractor"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeSubmissionRepo struct {
	submissions map[uint]*models.Submission
	transitions []string
	forced      []string
	updateErr   error
}

func newFakeSubmissionRepo(submissions ...models.Submission) *fakeSubmissionRepo {
	repo := &fakeSubmissionRepo{submissions: make(map[uint]*models.Submission)}
	for i := range submissions {
		s := submissions[i]
		repo.submissions[s.ID] = &s
	}
	return repo
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	out := make([]models.Submission, 0, len(f.submissions))
	for _, s := range f.submissions {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return *s, nil
}

func (f *fakeSubmissionRepo) GetWithDetail(ctx context.Context, id uint) (models.Submission, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	submission.ID = uint(len(f.submissions) + 1)
	s := *submission
	f.submissions[s.ID] = &s
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	s := *submission
	f.submissions[s.ID] = &s
	return nil
}

func (f *fakeSubmissionRepo) TransitionStatus(ctx context.Context, id uint, from, to string, extra map[string]interface{}) error {
	if err := lifecycle.Check(from, to); err != nil {
		return err
	}
	s, ok := f.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if s.Status != from {
		return fmt.Errorf("%w: %s -> %s (stale status)", lifecycle.ErrInvalidTransition, from, to)
	}
	s.Status = to
	if reason, ok := extra["failure_reason"].(string); ok {
		s.FailureReason = reason
	}
	f.transitions = append(f.transitions, from+"->"+to)
	return nil
}

func (f *fakeSubmissionRepo) ForceStatus(ctx context.Context, id uint, to string, extra map[string]interface{}) error {
	s, ok := f.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = to
	if reason, ok := extra["failure_reason"].(string); ok {
		s.FailureReason = reason
	}
	f.forced = append(f.forced, to)
	return nil
}

func (f *fakeSubmissionRepo) UpdateAssignee(ctx context.Context, id uint, assignee *uint) error {
	s, ok := f.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.AssignedTo = assignee
	return nil
}

func (f *fakeSubmissionRepo) AssignBatch(ctx context.Context, assignments map[uint]uint) error {
	for id, grader := range assignments {
		s, ok := f.submissions[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		g := grader
		s.AssignedTo = &g
	}
	return nil
}

func (f *fakeSubmissionRepo) ListUngradedByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	out := make([]models.Submission, 0)
	for id := uint(1); id <= uint(len(f.submissions))+100; id++ {
		s, ok := f.submissions[id]
		if !ok {
			continue
		}
		if s.AssignmentID == assignmentID && s.Status != lifecycle.StatusGraded {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) CountByAssignee(ctx context.Context, graderIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(graderIDs))
	for _, id := range graderIDs {
		counts[id] = 0
	}
	for _, s := range f.submissions {
		if s.AssignedTo != nil {
			if _, ok := counts[*s.AssignedTo]; ok {
				counts[*s.AssignedTo]++
			}
		}
	}
	return counts, nil
}

type fakeAssignmentRepo struct {
	assignments map[uint]*models.Assignment
	counts      repository.StatusCounts
}

func newFakeAssignmentRepo(assignments ...models.Assignment) *fakeAssignmentRepo {
	repo := &fakeAssignmentRepo{assignments: make(map[uint]*models.Assignment)}
	for i := range assignments {
		a := assignments[i]
		repo.assignments[a.ID] = &a
	}
	return repo
}

func (f *fakeAssignmentRepo) List(ctx context.Context, filter repository.AssignmentFilter) ([]models.Assignment, error) {
	out := make([]models.Assignment, 0, len(f.assignments))
	for _, a := range f.assignments {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return *a, nil
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = uint(len(f.assignments) + 1)
	a := *assignment
	f.assignments[a.ID] = &a
	return nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	a := *assignment
	f.assignments[a.ID] = &a
	return nil
}

func (f *fakeAssignmentRepo) Archive(ctx context.Context, id uint) error {
	a, ok := f.assignments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Status = models.AssignmentStatusArchived
	return nil
}

func (f *fakeAssignmentRepo) SubmissionStatusCounts(ctx context.Context, id uint) (repository.StatusCounts, error) {
	return f.counts, nil
}

type fakeProfileRepo struct {
	profiles map[uint]*models.Profile
}

func newFakeProfileRepo(profiles ...models.Profile) *fakeProfileRepo {
	repo := &fakeProfileRepo{profiles: make(map[uint]*models.Profile)}
	for i := range profiles {
		p := profiles[i]
		repo.profiles[p.ID] = &p
	}
	return repo
}

func (f *fakeProfileRepo) List(ctx context.Context) ([]models.Profile, error) {
	return f.ordered(func(p models.Profile) bool { return true }), nil
}

func (f *fakeProfileRepo) ListActiveGraders(ctx context.Context) ([]models.Profile, error) {
	return f.ordered(func(p models.Profile) bool { return p.IsActive }), nil
}

func (f *fakeProfileRepo) ordered(keep func(models.Profile) bool) []models.Profile {
	out := make([]models.Profile, 0, len(f.profiles))
	for id := uint(1); id <= uint(len(f.profiles))+100; id++ {
		p, ok := f.profiles[id]
		if ok && keep(*p) {
			out = append(out, *p)
		}
	}
	return out
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id uint) (models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return models.Profile{}, gorm.ErrRecordNotFound
	}
	return *p, nil
}

func (f *fakeProfileRepo) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	for _, p := range f.profiles {
		if p.Email == email {
			return *p, nil
		}
	}
	return models.Profile{}, gorm.ErrRecordNotFound
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	profile.ID = uint(len(f.profiles) + 1)
	p := *profile
	f.profiles[p.ID] = &p
	return nil
}

func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	p := *profile
	f.profiles[p.ID] = &p
	return nil
}

func (f *fakeProfileRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := f.profiles[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.profiles, id)
	return nil
}

type fakeSnippetRepo struct {
	snippets   map[uint][]models.CodeSnippet
	replaceErr error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[uint][]models.CodeSnippet)}
}

func (f *fakeSnippetRepo) ListBySubmission(ctx context.Context, submissionID uint) ([]models.CodeSnippet, error) {
	return f.snippets[submissionID], nil
}

func (f *fakeSnippetRepo) ReplaceForSubmission(ctx context.Context, submissionID uint, snippets []models.CodeSnippet) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	stored := make([]models.CodeSnippet, len(snippets))
	copy(stored, snippets)
	for i := range stored {
		stored[i].ID = uint(100 + i)
	}
	f.snippets[submissionID] = stored
	return nil
}

type fakeAnalysisRepo struct {
	results map[uint][]models.AnalysisResult
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{results: make(map[uint][]models.AnalysisResult)}
}

func (f *fakeAnalysisRepo) ListBySnippet(ctx context.Context, snippetID uint) ([]models.AnalysisResult, error) {
	return f.results[snippetID], nil
}

func (f *fakeAnalysisRepo) ReplaceForSnippet(ctx context.Context, snippetID uint, results []models.AnalysisResult) error {
	stored := make([]models.AnalysisResult, len(results))
	copy(stored, results)
	f.results[snippetID] = stored
	return nil
}

type fakeGradeRepo struct {
	grades   map[string]*models.Grade
	archives []models.GradeArchive
}

func newFakeGradeRepo() *fakeGradeRepo {
	return &fakeGradeRepo{grades: make(map[string]*models.Grade)}
}

func gradeKey(submissionID uint, question int) string {
	return fmt.Sprintf("%d:%d", submissionID, question)
}

func (f *fakeGradeRepo) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Grade, error) {
	out := make([]models.Grade, 0)
	for _, g := range f.grades {
		if g.SubmissionID == submissionID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGradeRepo) Upsert(ctx context.Context, grade *models.Grade) error {
	key := gradeKey(grade.SubmissionID, grade.QuestionNumber)
	if existing, ok := f.grades[key]; ok {
		// The max score snapshot from the first write wins.
		grade.MaxScore = existing.MaxScore
		grade.ID = existing.ID
	} else {
		grade.ID = uint(len(f.grades) + 1)
	}
	g := *grade
	f.grades[key] = &g
	return nil
}

func (f *fakeGradeRepo) CountScored(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	for _, g := range f.grades {
		if g.SubmissionID == submissionID && g.Score != nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeGradeRepo) ArchiveAndDelete(ctx context.Context, submissionID uint, reason string, archivedAt time.Time) (int64, error) {
	var archived int64
	for key, g := range f.grades {
		if g.SubmissionID != submissionID {
			continue
		}
		f.archives = append(f.archives, models.NewGradeArchive(*g, reason, archivedAt))
		delete(f.grades, key)
		archived++
	}
	return archived, nil
}

func (f *fakeGradeRepo) ListArchive(ctx context.Context, submissionID uint) ([]models.GradeArchive, error) {
	out := make([]models.GradeArchive, 0)
	for _, a := range f.archives {
		if a.SubmissionID == submissionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordedEvent struct {
	subject string
	event   SubmissionEvent
}

type fakeEvents struct {
	published []recordedEvent
}

func (f *fakeEvents) PublishSubmissionEvent(subject string, event SubmissionEvent) {
	f.published = append(f.published, recordedEvent{subject: subject, event: event})
}

type fakeRecorder struct {
	entries []ActivityEntry
}

func (f *fakeRecorder) Record(ctx context.Context, entry ActivityEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeStore struct {
	documents map[string][]byte
	uploads   int
	fetchErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{documents: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	payload, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.uploads++
	path := fmt.Sprintf("https://store.local/%s", name)
	f.documents[path] = payload
	return path, nil
}

func (f *fakeStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	payload, ok := f.documents[path]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", path)
	}
	return payload, nil
}

type fakeExtractor struct {
	output extractor.Output
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, document []byte, filename string, totalQuestions int) (extractor.Output, error) {
	f.calls++
	if f.err != nil {
		return extractor.Output{}, f.err
	}
	return f.output, nil
}

type fakeRunner struct {
	findings map[string][]cppcheck.Finding
	err      error
	failFor  map[string]error
	calls    int
}

func (f *fakeRunner) Analyze(ctx context.Context, source string) ([]cppcheck.Finding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err, ok := f.failFor[source]; ok {
		return nil, err
	}
	return f.findings[source], nil
}
