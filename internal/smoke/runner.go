package smoke

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/obs"
)

// Case is one smoke check. Prefix names its screenshot family.
type Case struct {
	Name   string
	Prefix string
	Run    func(ctx context.Context, s *Suite) error
}

// DefaultCases returns the inventory checks in execution order.
func DefaultCases() []Case {
	return []Case{
		{Name: "test_01_inventory_dashboard_loads", Prefix: "test1", Run: DashboardLoads},
		{Name: "test_02_inventory_form_interaction", Prefix: "test2", Run: FormInteraction},
		{Name: "test_03_inventory_api_navigation", Prefix: "test3", Run: NavigationAndAPI},
	}
}

// Run opens one session, executes cases in order and closes the session.
// When the session cannot be opened no case runs and the error is returned.
func Run(ctx context.Context, driver browser.Driver, opts Options, store *artifacts.Store, cases []Case) (*Summary, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	ctx = obs.WithRunID(ctx, opts.RunID)
	log := obs.From(ctx).With("pkg", "smoke")

	suite, err := Open(ctx, driver, opts, store)
	if err != nil {
		log.Error("run_aborted", "error", err)
		return nil, err
	}
	defer suite.Close()

	sum := &Summary{RunID: opts.RunID, Started: time.Now()}
	for _, c := range cases {
		if opts.Filter != nil && !opts.Filter.MatchString(c.Name) {
			sum.Results = append(sum.Results, Result{Name: c.Name, Outcome: OutcomeSkip})
			continue
		}
		if ctx.Err() != nil {
			sum.Results = append(sum.Results, Result{Name: c.Name, Outcome: OutcomeSkip, Err: ctx.Err()})
			continue
		}
		sum.Results = append(sum.Results, suite.runCase(ctx, c))
	}
	sum.Finished = time.Now()
	sum.Screenshots = store.Saved()
	sum.Interrupted = ctx.Err() != nil

	log.Info("run_finished",
		"passed", sum.Count(OutcomePass),
		"failed", sum.Count(OutcomeFail),
		"errored", sum.Count(OutcomeError),
		"skipped", sum.Count(OutcomeSkip),
		"success_rate", sum.SuccessRate(),
		"interrupted", sum.Interrupted,
	)
	return sum, nil
}

func (s *Suite) runCase(ctx context.Context, c Case) Result {
	ctx = obs.WithCase(ctx, c.Name)
	start := time.Now()
	s.TestStart(ctx, c.Name)

	err := s.invoke(ctx, c)
	res := Result{Name: c.Name, Outcome: outcomeOf(err), Err: err}
	if err != nil {
		s.stepf(ctx, "\nERROR: %v", err)
		if shotErr := s.screenshot(ctx, errorShotName(c)); shotErr != nil {
			s.logger(ctx).Warn("error_screenshot_failed", "error", shotErr)
		}
		s.logger(ctx).Warn("case_"+string(res.Outcome), "error", err, "code", errs.CodeOf(err))
	}
	res.Duration = time.Since(start)
	res.Screenshots = append([]string(nil), s.shots...)

	s.TestEnd(ctx, c.Name)
	return res
}

// invoke runs the case and turns a panic into an internal error.
func (s *Suite) invoke(ctx context.Context, c Case) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger(ctx).Error("case_panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = errs.New(errs.Internal, fmt.Sprintf("panic: %v", r))
		}
	}()
	if c.Run == nil {
		return errs.New(errs.InvalidArgument, "case has no body")
	}
	return c.Run(ctx, s)
}

func errorShotName(c Case) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = c.Name
	}
	return prefix + "_error.png"
}
