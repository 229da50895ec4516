// Package pipeline implements the driver that chains the download, split,
// data-extraction, vocabulary and vectorization stages into one run,
// propagating completion and exit codes (spec.md §4.7, grounded on
// pubget's `_pipeline.py`).
package pipeline

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/reichan1998/pmcpipeline/internal/stepinfo"
)

// Step is one stage of the pipeline. Run receives the output paths of every
// step that has already run, keyed by Name, and returns its own output path
// (empty if it produced none) and exit code.
type Step interface {
	Name() string
	Run(priorOutputs map[string]string) (outputPath string, code stepinfo.ExitCode, err error)
}

// Run executes steps in order, aggregating exit codes with max and
// stopping immediately on a StopPipeline signal (spec.md §4.7).
func Run(steps []Step, log *logrus.Logger) stepinfo.ExitCode {
	total := stepinfo.Completed
	outputs := map[string]string{}

	for _, step := range steps {
		outputPath, code, err := step.Run(outputs)

		var stop *stepinfo.StopPipeline
		if errors.As(err, &stop) {
			log.WithField("step", step.Name()).Errorf("interrupting pipeline run: %s", stop.Reason)
			return stepinfo.Error
		}
		if err != nil {
			log.WithError(err).WithField("step", step.Name()).Error("step failed")
			return stepinfo.Error
		}

		if outputPath != "" {
			outputs[step.Name()] = outputPath
		}
		if code > total {
			total = code
		}
	}
	return total
}
