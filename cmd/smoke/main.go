// Inventory smoke runner.
// Drives a browser through the inventory front end, probes the back-end API,
// writes screenshots and a report, and optionally emails a summary.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/config"
	"github.com/kuitang/inventory-smoke/internal/notify"
	"github.com/kuitang/inventory-smoke/internal/obs"
	"github.com/kuitang/inventory-smoke/internal/report"
	"github.com/kuitang/inventory-smoke/internal/smoke"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // at least one case failed or errored
	exitSetup  = 2 // bad configuration or the browser never started
)

func main() {
	os.Exit(run())
}

func run() int {
	obs.Init()
	logger := obs.Pkg("main")

	flags := config.ParseFlags()
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitSetup
	}
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = obs.WithRunID(ctx, runID)

	store, uploader, err := openStore(ctx, cfg, runID)
	if err != nil {
		logger.Error("artifact_store_failed", "error", err)
		return exitSetup
	}

	sum, err := smoke.Run(ctx, browser.PlaywrightDriver{}, smokeOptions(cfg, runID), store, smoke.DefaultCases())
	if err != nil {
		fmt.Fprintf(os.Stderr, "smoke run aborted: %v\n", err)
		return exitSetup
	}
	sum.Print(os.Stdout)

	// Reporting still runs after a signal cut the suite short.
	postCtx := context.WithoutCancel(ctx)

	meta := report.Meta{
		FrontendURL: cfg.FrontendURL,
		BackendURL:  cfg.BackendURL,
		Browser:     cfg.Browser,
		Link:        artifactLink(store, uploader),
	}
	reportURL := ""
	if cfg.WriteReport {
		if err := report.Write(postCtx, store, sum, meta); err != nil {
			logger.Warn("report_failed", "error", err)
		} else if meta.Link != nil {
			reportURL = meta.Link(report.HTMLName)
		}
	}

	if cfg.NotificationsEnabled() && notify.ShouldNotify(cfg.NotifyOn, !sum.OK()) {
		data := runSummaryData(cfg, sum, reportURL)
		if err := notify.NotifyRun(newNotifier(cfg), cfg.NotifyTo, data); err != nil {
			logger.Warn("notify_failed", "error", err)
		} else {
			logger.Info("notify_sent", "recipients", len(cfg.NotifyTo))
		}
	}

	if sum.Interrupted {
		logger.Warn("run_interrupted", "error", ctx.Err())
	}
	return exitCode(sum)
}

// exitCode is the process verdict for a finished run. A run cut short by a
// signal is a failure even when every case that ran passed.
func exitCode(sum *smoke.Summary) int {
	if !sum.OK() {
		return exitFailed
	}
	return exitOK
}

func smokeOptions(cfg *config.Config, runID string) smoke.Options {
	return smoke.Options{
		FrontendURL:   cfg.FrontendURL,
		BackendURL:    cfg.BackendURL,
		APIPath:       cfg.APIPath,
		ImplicitWait:  cfg.ImplicitWait,
		SettleTimeout: cfg.SettleTimeout,
		PollInterval:  cfg.PollInterval,
		Launch:        cfg.LaunchOptions(),
		Console:       os.Stdout,
		RunID:         runID,
		Filter:        cfg.Filter(),
	}
}

// openStore creates the local artifact store and, when upload is enabled,
// mirrors it under runs/<runID> in the bucket.
func openStore(ctx context.Context, cfg *config.Config, runID string) (*artifacts.Store, *artifacts.S3Uploader, error) {
	store, err := artifacts.NewStore(cfg.ArtifactDir)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.UploadEnabled() {
		return store, nil, nil
	}

	uploader, err := artifacts.NewS3Uploader(ctx, artifacts.S3Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		PublicURL:       cfg.AWSPublicURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.WithUploader(uploader, "runs/"+runID), uploader, nil
}

// artifactLink returns public bucket URLs when artifacts are uploaded and
// publicly reachable, and nil otherwise so the report links local files.
func artifactLink(store *artifacts.Store, uploader *artifacts.S3Uploader) func(string) string {
	if uploader == nil {
		return nil
	}
	return func(name string) string {
		return uploader.PublicURL(store.Key(name))
	}
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.NoEmail {
		return notify.NewMockNotifier()
	}
	return notify.NewResendNotifier(cfg.ResendAPIKey, cfg.ResendFromEmail)
}

func runSummaryData(cfg *config.Config, sum *smoke.Summary, reportURL string) notify.RunSummaryData {
	data := notify.RunSummaryData{
		RunID:       sum.RunID,
		Frontend:    cfg.FrontendURL,
		Backend:     cfg.BackendURL,
		Passed:      sum.Count(smoke.OutcomePass),
		Failed:      sum.Count(smoke.OutcomeFail),
		Errored:     sum.Count(smoke.OutcomeError),
		Skipped:     sum.Count(smoke.OutcomeSkip),
		SuccessRate: sum.SuccessRate(),
		Interrupted: sum.Interrupted,
		ReportURL:   reportURL,
	}
	for _, r := range sum.Problems() {
		data.Failures = append(data.Failures, fmt.Sprintf("%s: %v", r.Name, r.Err))
	}
	return data
}
