package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-driven tunable for the worker. Fields are
// grouped the way the teacher's config.go groups them, one block per
// subsystem, with getEnv-style defaults rather than a required-vars check.
type Config struct {
	// Server
	ServerHost string
	ServerPort string

	// Scheduler
	QueueSize                  int
	RequestTimeoutSec          int
	StatusReportingIntervalSec int
	HistorySize                int

	// Backup pipeline
	BackupStatusRetrySec           int
	BackupDownloadMaxFilesizeBytes int64

	// Render pipeline
	ReportBaseViewportWidth               int
	ReportWaitForNavigationTimeoutSec      int
	ReportWaitForReadySignal               bool
	ReportWaitForReadySignalTimeoutSec     int
	ReportContinueAfterReadySignalTimeout  bool
	ReportPageMargin                       float64
	BlockNavigationToLoginPage             bool
	QuestionAttachmentDownloadMaxFilesize  int64

	// Demo mode
	DemoMode bool

	// Transport / TLS / proxy
	SkipTLSVerify bool
	ProxyURL      string
	NoProxy       string

	// Audit mirror (optional; wired only if endpoint is non-empty)
	ArchiveMirrorEndpoint  string
	ArchiveMirrorAccessKey string
	ArchiveMirrorSecretKey string
	ArchiveMirrorBucket    string
	ArchiveMirrorSecure    bool

	// Environment
	Environment string
}

// New builds a Config from the process environment, falling back to the
// defaults below for anything unset. New itself reads no .env file; the
// serve command loads one via godotenv before it calls New.
func New() *Config {
	queueSize, _ := strconv.Atoi(getEnv("QUEUE_SIZE", "10"))
	requestTimeout, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SEC", "86400"))
	statusInterval, _ := strconv.Atoi(getEnv("STATUS_REPORTING_INTERVAL_SEC", "15"))
	historySize, _ := strconv.Atoi(getEnv("HISTORY_SIZE", "100"))

	backupRetry, _ := strconv.Atoi(getEnv("BACKUP_STATUS_RETRY_SEC", "10"))
	backupMaxBytes, _ := strconv.ParseInt(getEnv("BACKUP_DOWNLOAD_MAX_FILESIZE_BYTES", "268435456"), 10, 64) // 256MB

	viewportWidth, _ := strconv.Atoi(getEnv("REPORT_BASE_VIEWPORT_WIDTH", "1600"))
	navTimeout, _ := strconv.Atoi(getEnv("REPORT_WAIT_FOR_NAVIGATION_TIMEOUT_SEC", "30"))
	waitForReady := parseBool(getEnv("REPORT_WAIT_FOR_READY_SIGNAL", "false"))
	readyTimeout, _ := strconv.Atoi(getEnv("REPORT_WAIT_FOR_READY_SIGNAL_TIMEOUT_SEC", "15"))
	continueAfterReadyTimeout := parseBool(getEnv("REPORT_CONTINUE_AFTER_READY_SIGNAL_TIMEOUT", "true"))
	pageMargin, _ := strconv.ParseFloat(getEnv("REPORT_PAGE_MARGIN", "0.4"), 64)
	blockLoginRedirect := parseBool(getEnv("REPORT_BLOCK_NAVIGATION_TO_LOGIN_PAGE", "true"))
	attachmentMaxBytes, _ := strconv.ParseInt(getEnv("QUESTION_ATTACHMENT_DOWNLOAD_MAX_FILESIZE_BYTES", "20971520"), 10, 64) // 20MB

	demoMode := parseBool(getEnv("QUIZ_ARCHIVER_DEMO_MODE", "false"))

	skipTLSVerify := parseBool(getEnv("QUIZ_ARCHIVER_SKIP_TLS_VERIFY", "false"))

	return &Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		QueueSize:                  queueSize,
		RequestTimeoutSec:          requestTimeout,
		StatusReportingIntervalSec: statusInterval,
		HistorySize:                historySize,

		BackupStatusRetrySec:           backupRetry,
		BackupDownloadMaxFilesizeBytes: backupMaxBytes,

		ReportBaseViewportWidth:               viewportWidth,
		ReportWaitForNavigationTimeoutSec:      navTimeout,
		ReportWaitForReadySignal:               waitForReady,
		ReportWaitForReadySignalTimeoutSec:     readyTimeout,
		ReportContinueAfterReadySignalTimeout:  continueAfterReadyTimeout,
		ReportPageMargin:                       pageMargin,
		BlockNavigationToLoginPage:             blockLoginRedirect,
		QuestionAttachmentDownloadMaxFilesize:  attachmentMaxBytes,

		DemoMode: demoMode,

		SkipTLSVerify: skipTLSVerify,
		ProxyURL:      resolveProxyURL(),
		NoProxy:       firstNonEmpty(os.Getenv("no_proxy"), os.Getenv("NO_PROXY")),

		ArchiveMirrorEndpoint:  getEnv("ARCHIVE_MIRROR_ENDPOINT", ""),
		ArchiveMirrorAccessKey: getEnv("ARCHIVE_MIRROR_ACCESS_KEY", ""),
		ArchiveMirrorSecretKey: getEnv("ARCHIVE_MIRROR_SECRET_KEY", ""),
		ArchiveMirrorBucket:    getEnv("ARCHIVE_MIRROR_BUCKET", "quiz-archives"),
		ArchiveMirrorSecure:    parseBool(getEnv("ARCHIVE_MIRROR_SECURE", "true")),

		Environment: getEnv("ENVIRONMENT", "production"),
	}
}

// MirrorEnabled reports whether an audit mirror destination was configured.
func (c *Config) MirrorEnabled() bool {
	return c.ArchiveMirrorEndpoint != ""
}

// resolveProxyURL implements the proxy auto-detection order from the
// external-interfaces design: an explicit override first, then the
// lower/upper-case proxy env vars in the conventional Go order. A literal
// "false" disables auto-detection entirely.
func resolveProxyURL() string {
	if explicit := os.Getenv("QUIZ_ARCHIVER_PROXY_SERVER_URL"); explicit != "" {
		if strings.EqualFold(explicit, "false") {
			return ""
		}
		return explicit
	}

	candidates := []string{"http_proxy", "HTTP_PROXY", "https_proxy", "HTTPS_PROXY", "all_proxy", "ALL_PROXY"}
	for _, name := range candidates {
		if v := os.Getenv(name); v != "" {
			if strings.EqualFold(v, "false") {
				return ""
			}
			if u, err := url.Parse(v); err == nil {
				switch u.Scheme {
				case "http", "https", "socks", "socks5":
					return v
				}
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBool mirrors the teacher's logging.parseBool so config and logging
// accept the same textual boolean encodings ("true/1/yes/on/enabled").
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}
