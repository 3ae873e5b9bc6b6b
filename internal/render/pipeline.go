package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

const readySignal = "x-quiz-archiver-page-ready-for-export"

// mockOrigin is the path, under the host base URL, that every attempt's HTML
// body is served from inside the browser, so host-relative resources in the
// attempt report resolve against the real host origin rather than a blank
// page.
const mockOrigin = "/mock/attempt"

// AttemptOptions carries the per-job rendering configuration not present on
// the Job Descriptor itself (ambient, from config).
type AttemptOptions struct {
	DemoMode                       bool
	WaitForReadySignal              bool
	ReadySignalTimeout              time.Duration
	ContinueAfterReadySignalTimeout bool
	PageMarginInches                float64
	AttachmentMaxBytes              int64
}

// Result describes one rendered attempt.
type Result struct {
	AttemptID  int64
	FolderName string
	FileStem   string
	PDFPath    string
}

// RenderAttempt executes the full per-attempt pipeline described in §4.3: it
// fetches attempt data from the adapter, mocks the attempt-report origin in
// the shared browser, optionally waits for the ready signal, exports a PDF,
// post-processes it if requested, and downloads attachments.
func RenderAttempt(ctx context.Context, browser *Browser, adapter hostapi.Adapter, job hostapi.Job, attemptID int64, task *jobmodel.QuizAttemptsTask, workDir string, opts AttemptOptions) (Result, error) {
	folderName, fileStem, htmlBody, attachments, err := adapter.GetAttemptData(ctx, job, attemptID)
	if err != nil {
		return Result{}, fmt.Errorf("fetching attempt %d: %w", attemptID, err)
	}
	if !jobmodel.ValidFolderName(folderName) {
		return Result{}, logging.ErrValidationField("folder_name", "host returned a forbidden folder name: "+folderName)
	}
	if !jobmodel.ValidFileName(fileStem) {
		return Result{}, logging.ErrValidationField("file_stem", "host returned a forbidden file name: "+fileStem)
	}

	attemptDir := filepath.Join(workDir, "attempts", folderName)
	if err := os.MkdirAll(attemptDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating attempt directory: %w", err)
	}

	if task.KeepHTMLFiles {
		if err := os.WriteFile(filepath.Join(attemptDir, fileStem+".html"), []byte(htmlBody), 0o644); err != nil {
			return Result{}, fmt.Errorf("writing html copy: %w", err)
		}
	}

	if opts.DemoMode {
		htmlBody = injectDemoWatermark(htmlBody)
	}

	pageCtx, pageCancel := chromedp.NewContext(browser.Context())
	defer pageCancel()

	if err := chromedp.Run(pageCtx, network.Enable()); err != nil {
		return Result{}, fmt.Errorf("enabling network domain: %w", err)
	}

	if browser.opts.BlockLoginNavigation {
		if err := registerLoginBlock(pageCtx); err != nil {
			return Result{}, err
		}
	}

	var readyCh chan struct{}
	if opts.WaitForReadySignal {
		readyCh = listenForReadySignal(pageCtx)
	}

	navURL := strings.TrimRight(adapter.BaseURL(), "/") + mockOrigin
	navCtx, navCancel := context.WithTimeout(pageCtx, browser.opts.NavigationTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, mockAndNavigate(navURL, htmlBody)); err != nil {
		return Result{}, fmt.Errorf("navigating to attempt report: %w", err)
	}

	if opts.WaitForReadySignal {
		select {
		case <-readyCh:
		case <-time.After(opts.ReadySignalTimeout):
			if !opts.ContinueAfterReadySignalTimeout {
				return Result{}, logging.ErrTimeout("ready_signal", opts.ReadySignalTimeout.String())
			}
		}
	}

	pdfPath := filepath.Join(attemptDir, fileStem+".pdf")
	if err := exportPDF(pageCtx, pdfPath, task.PaperFormat, opts.PageMarginInches); err != nil {
		return Result{}, fmt.Errorf("exporting pdf: %w", err)
	}

	if task.ImageOptimize != nil {
		if err := PostProcess(pdfPath, *task.ImageOptimize); err != nil {
			return Result{}, fmt.Errorf("post-processing pdf: %w", err)
		}
	}

	if task.FetchAttachments {
		if err := downloadAttachments(ctx, adapter, attemptDir, attachments, opts.AttachmentMaxBytes); err != nil {
			return Result{}, err
		}
	}

	return Result{
		AttemptID:  attemptID,
		FolderName: folderName,
		FileStem:   fileStem,
		PDFPath:    pdfPath,
	}, nil
}

// mockAndNavigate registers a fetch-interception handler that fulfils any
// request to navURL with htmlBody as text/html, then navigates to it. This
// is how the attempt report is served from the host's own origin without a
// real network round trip, bypassing CORS for relative resource loads.
func mockAndNavigate(navURL, htmlBody string) chromedp.Tasks {
	return chromedp.Tasks{
		fetch.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			chromedp.ListenTarget(ctx, func(ev interface{}) {
				if ev, ok := ev.(*fetch.EventRequestPaused); ok && ev.Request.URL == navURL {
					go chromedp.Run(ctx, fetch.FulfillRequest(ev.RequestID, http.StatusOK).
						WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Content-Type", Value: "text/html"}}).
						WithBody(htmlBody))
				}
			})
			return nil
		}),
		chromedp.Navigate(navURL),
	}
}

// registerLoginBlock aborts any navigation matching **/login/*.php with a
// client-blocked reason, per the optional redirect-suppression step.
func registerLoginBlock(ctx context.Context) error {
	if err := chromedp.Run(ctx, fetch.Enable()); err != nil {
		return err
	}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		req, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		if strings.Contains(req.Request.URL, "/login/") && strings.HasSuffix(req.Request.URL, ".php") {
			go chromedp.Run(ctx, fetch.FailRequest(req.RequestID, network.ErrorReasonBlockedByClient))
		}
	})
	return nil
}

// listenForReadySignal enables the runtime domain and returns a channel
// that fires once the page logs the well-known ready-signal string via
// console.log.
func listenForReadySignal(ctx context.Context) chan struct{} {
	done := make(chan struct{}, 1)
	chromedp.Run(ctx, runtime.Enable())

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		call, ok := ev.(*runtime.EventConsoleAPICalled)
		if !ok || len(call.Args) == 0 {
			return
		}
		var text string
		if err := json.Unmarshal(call.Args[0].Value, &text); err != nil {
			return
		}
		if text == readySignal {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})

	return done
}

// exportPDF prints the current page to pdfPath at the given paper size with
// uniform margins, background graphics enabled, and no header/footer.
func exportPDF(ctx context.Context, pdfPath string, format jobmodel.PaperFormat, marginInches float64) error {
	width, height := paperDimensions(format)

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithDisplayHeaderFooter(false).
			WithPaperWidth(width).
			WithPaperHeight(height).
			WithMarginTop(marginInches).
			WithMarginBottom(marginInches).
			WithMarginLeft(marginInches).
			WithMarginRight(marginInches).
			Do(ctx)
		return err
	})); err != nil {
		return err
	}

	return os.WriteFile(pdfPath, buf, 0o644)
}

// paperDimensions returns (width, height) in inches for a paper format, the
// unit page.PrintToPDF expects.
func paperDimensions(format jobmodel.PaperFormat) (float64, float64) {
	switch format {
	case jobmodel.PaperA0:
		return 33.1, 46.8
	case jobmodel.PaperA1:
		return 23.4, 33.1
	case jobmodel.PaperA2:
		return 16.5, 23.4
	case jobmodel.PaperA3:
		return 11.7, 16.5
	case jobmodel.PaperA4:
		return 8.27, 11.7
	case jobmodel.PaperA5:
		return 5.83, 8.27
	case jobmodel.PaperA6:
		return 4.13, 5.83
	case jobmodel.PaperLetter:
		return 8.5, 11
	case jobmodel.PaperLegal:
		return 8.5, 14
	case jobmodel.PaperTabloid:
		return 11, 17
	case jobmodel.PaperLedger:
		return 17, 11
	default:
		return 8.27, 11.7
	}
}

const demoWatermarkScript = `
(() => {
  const banner = document.createElement('div');
  banner.textContent = 'DEMO MODE';
  banner.style.cssText = 'position:fixed;top:0;left:0;right:0;background:rgba(200,0,0,.6);color:#fff;' +
    'text-align:center;font-size:24px;z-index:999999;padding:8px;';
  document.body.prepend(banner);
})();`

// injectDemoWatermark adds a visible banner script to the attempt HTML
// before it is served into the browser, per the demo-mode constraint.
func injectDemoWatermark(htmlBody string) string {
	script := "<script>" + demoWatermarkScript + "</script>"
	if idx := strings.LastIndex(htmlBody, "</body>"); idx >= 0 {
		return htmlBody[:idx] + script + htmlBody[idx:]
	}
	return htmlBody + script
}

// downloadAttachments fetches every attachment for an attempt into
// attempts/<folder>/attachments/<slot>/<filename>, verifying SHA-1 and
// capping size.
func downloadAttachments(ctx context.Context, adapter hostapi.Adapter, attemptDir string, attachments []hostapi.Attachment, maxBytes int64) error {
	for _, a := range attachments {
		dir := filepath.Join(attemptDir, "attachments", a.Slot)
		expected := a.ExpectedSHA1
		var expectedPtr *string
		if expected != "" {
			expectedPtr = &expected
		}
		if _, err := adapter.DownloadMoodleFile(ctx, a.DownloadURL, dir, a.Filename, expectedPtr, maxBytes); err != nil {
			return fmt.Errorf("downloading attachment %s (slot %s): %w", a.Filename, a.Slot, err)
		}
	}
	return nil
}

// DemoCapAttemptIDs truncates attemptids to the first 10 when demo mode is
// on, per §4.3's demo-mode constraint and P7.
func DemoCapAttemptIDs(ids []int64, demoMode bool) []int64 {
	if !demoMode || len(ids) <= 10 {
		return ids
	}
	return ids[:10]
}

// DemoBackupPlaceholder writes a placeholder text file in place of a real
// backup download, per the demo-mode constraint.
func DemoBackupPlaceholder(dir, filename string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	content := "DEMO MODE: backup download skipped at " + strconv.FormatInt(time.Now().Unix(), 10)
	return os.WriteFile(filepath.Join(dir, filename+".demo.txt"), []byte(content), 0o644)
}
