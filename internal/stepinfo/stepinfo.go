// Package stepinfo implements the info.json completion marker and the
// idempotence/resume logic every pipeline stage shares, ported from pubget's
// _utils.py (check_steps_status, write_info, get_n_articles) into Go's
// encoding/json.
package stepinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExitCode is the exit status of one stage or of the whole pipeline.
// Ordered so that aggregation is a plain max().
type ExitCode int

const (
	Completed ExitCode = 0
	Incomplete ExitCode = 1
	Error      ExitCode = 2
)

func (e ExitCode) String() string {
	switch e {
	case Completed:
		return "COMPLETED"
	case Incomplete:
		return "INCOMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Info is the persisted info.json document for one stage's output directory.
type Info struct {
	Name       string                 `json:"name"`
	IsComplete bool                   `json:"isComplete"`
	Date       string                 `json:"date"`
	Version    string                 `json:"version"`
	Extra      map[string]interface{} `json:"-"`
}

// pipelineVersion is stamped into every info.json, analogous to pubget's
// get_pubget_version() reading a packaged VERSION file.
const pipelineVersion = "1.0.0"

// marshalInfo flattens Info plus Extra into one JSON object, the way
// pubget's write_info accepts **info kwargs alongside its fixed fields.
func marshalInfo(name string, isComplete bool, extra map[string]interface{}) ([]byte, error) {
	doc := map[string]interface{}{}
	for k, v := range extra {
		doc[k] = v
	}
	doc["name"] = name
	doc["isComplete"] = isComplete
	doc["date"] = time.Now().Format(time.RFC3339)
	doc["version"] = pipelineVersion
	return json.Marshal(doc)
}

// Write persists info.json to outputDir/info.json. It must be the last
// write a stage performs, so that a crash never leaves isComplete=true
// without every declared output already on disk (spec.md §3 invariant).
func Write(outputDir, name string, isComplete bool, extra map[string]interface{}) error {
	body, err := marshalInfo(name, isComplete, extra)
	if err != nil {
		return fmt.Errorf("stepinfo: marshal: %w", err)
	}
	return os.WriteFile(filepath.Join(outputDir, "info.json"), body, 0o644)
}

// Read loads outputDir/info.json, if present.
func Read(outputDir string) (Info, bool, error) {
	body, err := os.ReadFile(filepath.Join(outputDir, "info.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, false, nil
		}
		return Info{}, false, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Info{}, false, fmt.Errorf("stepinfo: unmarshal: %w", err)
	}
	info := Info{Extra: raw}
	if name, ok := raw["name"].(string); ok {
		info.Name = name
	}
	if complete, ok := raw["isComplete"].(bool); ok {
		info.IsComplete = complete
	}
	if date, ok := raw["date"].(string); ok {
		info.Date = date
	}
	if version, ok := raw["version"].(string); ok {
		info.Version = version
	}
	return info, true, nil
}

// NArticles reads the "nArticles" field written by a stage, mirroring
// pubget's get_n_articles. Returns (0, false) if absent or unreadable.
func NArticles(outputDir string) (int, bool) {
	info, ok, err := Read(outputDir)
	if err != nil || !ok {
		return 0, false
	}
	n, ok := info.Extra["nArticles"].(float64)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// Status is the result of checking a stage's own completion against its
// upstream predecessor's, mirroring pubget's check_steps_status.
type Status struct {
	PreviousStepComplete bool
	CurrentStepComplete  bool
	NeedRun              bool
	HasPrevious          bool
}

// CheckStatus inspects previousStepDir (empty string if this is the first
// stage) and currentStepDir and reports whether the current stage needs to
// run. A stage already marked complete is never re-run; an incomplete
// upstream only logs a warning via the caller, it does not block the run.
func CheckStatus(previousStepDir, currentStepDir string) (Status, error) {
	var status Status

	if previousStepDir != "" {
		if _, err := os.Stat(previousStepDir); err != nil {
			return Status{}, fmt.Errorf("stepinfo: previous step dir missing: %w", err)
		}
		status.HasPrevious = true
		prevInfo, ok, err := Read(previousStepDir)
		if err != nil {
			return Status{}, err
		}
		status.PreviousStepComplete = ok && prevInfo.IsComplete
	}

	curInfo, ok, err := Read(currentStepDir)
	if err != nil {
		return Status{}, err
	}
	status.CurrentStepComplete = ok && curInfo.IsComplete
	status.NeedRun = !status.CurrentStepComplete
	return status, nil
}

// StopPipeline is a cooperative, typed signal a stage raises when there is
// nothing meaningful for downstream stages to do (spec.md §7's EmptyResult,
// among others). The driver handles it by stopping without running further
// stages and returning Error.
type StopPipeline struct {
	Reason string
}

func (s *StopPipeline) Error() string {
	return fmt.Sprintf("pipeline stopped: %s", s.Reason)
}
