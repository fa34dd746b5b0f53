// Package extractor invokes the external document-to-code extractor and
// decodes its output. The extractor itself is a separate tool that locates
// per-question code blocks inside a structured document; this package only
// owns the invocation and the wire format.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dockerexec "github.com/kkian481718/CEGAS/pkg/docker"
)

// Question is one located code block with its confidence signal.
type Question struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
}

// Output is the decoded extractor result. Question numbers are 1-based and
// the map may be sparse when the extractor could not locate a question.
type Output struct {
	Questions map[int]Question `json:"questions"`
	Unmatched string           `json:"unmatched_content"`
}

// Extractor locates per-question code inside an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, document []byte, filename string, totalQuestions int) (Output, error)
}

// Config holds the knobs for the containerized extractor.
type Config struct {
	Image         string
	Timeout       time.Duration
	WorkspaceRoot string
}

// DockerExtractor runs the extractor tool inside a sandboxed container and
// reads its JSON report from stdout.
type DockerExtractor struct {
	executor dockerexec.Executor
	cfg      Config
	logger   zerolog.Logger
}

// NewDockerExtractor constructs the containerized extractor client.
func NewDockerExtractor(executor dockerexec.Executor, cfg Config, logger zerolog.Logger) *DockerExtractor {
	if cfg.Image == "" {
		cfg.Image = "cegas-extractor:latest"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &DockerExtractor{
		executor: executor,
		cfg:      cfg,
		logger:   logger.With().Str("component", "extractor_client").Logger(),
	}
}

// Extract writes the document into a scratch workspace, runs the extractor
// against it, and decodes the JSON report from stdout. Unreadable documents
// and unsupported formats surface as a non-zero exit, which callers map to
// their extraction-failed branch.
func (e *DockerExtractor) Extract(ctx context.Context, document []byte, filename string, totalQuestions int) (Output, error) {
	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "extract-")
	if err != nil {
		return Output{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	name := sanitizeFilename(filename)
	if err := os.WriteFile(filepath.Join(workspace, name), document, 0600); err != nil {
		return Output{}, fmt.Errorf("write document: %w", err)
	}

	result, err := e.executor.Run(ctx, dockerexec.RunRequest{
		Image:     e.cfg.Image,
		Cmd:       []string{"extract", "--questions", strconv.Itoa(totalQuestions), name},
		Timeout:   e.cfg.Timeout,
		Workspace: workspace,
	})
	if err != nil {
		return Output{}, fmt.Errorf("run extractor: %w", err)
	}

	if result.ExitCode != 0 {
		return Output{}, fmt.Errorf("extractor exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	output, err := DecodeOutput([]byte(result.Stdout))
	if err != nil {
		return Output{}, fmt.Errorf("decode extractor output: %w", err)
	}

	return output, nil
}

// DecodeOutput parses the extractor's JSON report.
func DecodeOutput(report []byte) (Output, error) {
	var output Output
	if err := json.Unmarshal(report, &output); err != nil {
		return Output{}, err
	}

	for number := range output.Questions {
		if number < 1 {
			return Output{}, fmt.Errorf("question numbers are 1-based, got %d", number)
		}
	}

	return output, nil
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "document"
	}
	return base
}
