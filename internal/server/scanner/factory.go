package scanner

import (
	"net/http"

	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/config"
)

// New returns the VirusTotal scanner when a key is configured and scanning
// is not switched off, and the loud Disabled scanner otherwise.
func New(cfg *config.Config, log logging.Logger) Scanner {
	if cfg.ScanDisabled {
		return NewDisabled(log, "disabled by configuration")
	}
	if cfg.VirusTotalAPIKey == "" {
		return NewDisabled(log, "no VirusTotal API key configured")
	}
	return NewVirusTotal(VirusTotalOptions{
		APIKey:        cfg.VirusTotalAPIKey,
		BaseURL:       cfg.VirusTotalBaseURL,
		SubmitTimeout: cfg.ScanSubmitTimeout,
		PollTimeout:   cfg.ScanPollTimeout,
		PollAttempts:  cfg.ScanPollAttempts,
		PollInterval:  cfg.ScanPollInterval,
		HTTPClient:    &http.Client{},
	}, log)
}
