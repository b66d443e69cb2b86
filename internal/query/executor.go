package query

import (
	"context"
	"fmt"
	"time"

	"gareport/internal/logger"
	"gareport/internal/report"
)

// Runner runs report parameters against the selected property or view
// *session.Session implements it
type Runner interface {
	API() string
	Run(ctx context.Context, params report.Params) (*report.Result, error)
}

// Execution is one template run
type Execution struct {
	Template   QueryTemplate  `json:"template"`
	Result     *report.Result `json:"-"`
	ExecutedAt time.Time      `json:"executed_at"`
	Duration   time.Duration  `json:"duration"`
}

// Executor runs report templates
type Executor struct {
	runner Runner
	now    func() time.Time
}

// NewExecutor creates a new template executor
func NewExecutor(runner Runner) *Executor {
	return &Executor{runner: runner, now: time.Now}
}

// Execute applies overrides to t and runs it
func (e *Executor) Execute(ctx context.Context, t *QueryTemplate, o Overrides) (*Execution, error) {
	tmpl := t.Apply(o)
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("template validation failed: %w", err)
	}
	if !tmpl.SupportsAPI(e.runner.API()) {
		return nil, fmt.Errorf("template %s targets %s but the active preset uses %s", tmpl.Name, tmpl.API, e.runner.API())
	}

	start := e.now()
	logger.Info().Str("template", tmpl.Name).Msg("Running report template")
	res, err := e.runner.Run(ctx, tmpl.Params())
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tmpl.Name, err)
	}
	return &Execution{
		Template:   tmpl,
		Result:     res,
		ExecutedAt: start,
		Duration:   e.now().Sub(start),
	}, nil
}
