// Package cppcheck invokes the cppcheck static analyzer on one snippet of
// C++ code and parses its XML report into findings.
package cppcheck

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dockerexec "github.com/kkian481718/CEGAS/pkg/docker"
)

const sourceFileName = "snippet.cpp"

// Finding is one analyzer output item for a snippet.
type Finding struct {
	RuleID   string
	Message  string
	Line     *int
	Severity string
}

// Runner analyzes one piece of source text.
type Runner interface {
	Analyze(ctx context.Context, source string) ([]Finding, error)
}

// Config holds the knobs for the containerized analyzer.
type Config struct {
	Image         string
	Timeout       time.Duration
	WorkspaceRoot string
}

// DockerRunner runs cppcheck inside a sandboxed container.
type DockerRunner struct {
	executor dockerexec.Executor
	cfg      Config
	logger   zerolog.Logger
}

// NewDockerRunner constructs the containerized cppcheck runner.
func NewDockerRunner(executor dockerexec.Executor, cfg Config, logger zerolog.Logger) *DockerRunner {
	if cfg.Image == "" {
		cfg.Image = "cppcheck:2.13"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	return &DockerRunner{
		executor: executor,
		cfg:      cfg,
		logger:   logger.With().Str("component", "cppcheck_runner").Logger(),
	}
}

// Analyze writes the source into a scratch workspace, runs cppcheck against
// it, and parses the XML report. A non-zero exit or a timeout is an analyzer
// failure; findings themselves never change the exit code.
func (r *DockerRunner) Analyze(ctx context.Context, source string) ([]Finding, error) {
	workspace, err := os.MkdirTemp(r.cfg.WorkspaceRoot, "cppcheck-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, sourceFileName), []byte(source), 0600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	result, err := r.executor.Run(ctx, dockerexec.RunRequest{
		Image:     r.cfg.Image,
		Cmd:       []string{"cppcheck", "--enable=all", "--xml", "--xml-version=2", sourceFileName},
		Timeout:   r.cfg.Timeout,
		Workspace: workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("run cppcheck: %w", err)
	}

	if result.ExitCode != 0 {
		return nil, fmt.Errorf("cppcheck exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	// cppcheck writes the XML report to stderr.
	findings, err := ParseReport([]byte(result.Stderr))
	if err != nil {
		return nil, fmt.Errorf("parse cppcheck report: %w", err)
	}

	return findings, nil
}

type xmlReport struct {
	XMLName xml.Name   `xml:"results"`
	Errors  []xmlError `xml:"errors>error"`
}

type xmlError struct {
	ID        string        `xml:"id,attr"`
	Severity  string        `xml:"severity,attr"`
	Msg       string        `xml:"msg,attr"`
	Locations []xmlLocation `xml:"location"`
}

type xmlLocation struct {
	File string `xml:"file,attr"`
	Line int    `xml:"line,attr"`
}

// ParseReport decodes a cppcheck XML (version 2) report into findings,
// preserving report order.
func ParseReport(report []byte) ([]Finding, error) {
	if len(report) == 0 {
		return nil, nil
	}

	var parsed xmlReport
	if err := xml.Unmarshal(report, &parsed); err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(parsed.Errors))
	for _, item := range parsed.Errors {
		// cppcheck emits bookkeeping entries (missingIncludeSystem,
		// checkersReport) that are about the run, not the code.
		if item.ID == "missingIncludeSystem" || item.ID == "checkersReport" {
			continue
		}

		finding := Finding{
			RuleID:   item.ID,
			Message:  item.Msg,
			Severity: item.Severity,
		}
		if len(item.Locations) > 0 && item.Locations[0].Line > 0 {
			line := item.Locations[0].Line
			finding.Line = &line
		}
		findings = append(findings, finding)
	}

	return findings, nil
}
