package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/sethvargo/go-retry"
)

// DefaultBaseURL is the VirusTotal v3 API root.
const DefaultBaseURL = "https://www.virustotal.com/api/v3"

// maxResponseBody bounds how much of an API response is read.
const maxResponseBody = 1 << 20

// Analysis states reported by the API. Both spellings of "in progress" occur.
const (
	statusQueued      = "queued"
	statusInProgress  = "inprogress"
	statusInProgress2 = "in-progress"
	statusCompleted   = "completed"
)

var errAnalysisPending = errors.New("analysis not finished")

// VirusTotalOptions configures the client. Zero durations and attempts fall
// back to 120s submit, 30s per poll, 15 attempts, 20s apart.
type VirusTotalOptions struct {
	APIKey        string
	BaseURL       string
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	PollAttempts  int
	PollInterval  time.Duration
	HTTPClient    *http.Client
}

// VirusTotal submits files to the VirusTotal v3 API and polls the analysis
// until it completes or the poll budget runs out.
type VirusTotal struct {
	opts VirusTotalOptions
	log  logging.Logger
}

func NewVirusTotal(opts VirusTotalOptions, log logging.Logger) *VirusTotal {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 120 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 15
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 20 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &VirusTotal{opts: opts, log: log}
}

type uploadResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type analysisResponse struct {
	Data struct {
		Attributes struct {
			Status string `json:"status"`
			Stats  struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Undetected int `json:"undetected"`
			} `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

func (v *VirusTotal) Scan(ctx context.Context, path, name string) Result {
	v.log.Info(ctx, "submitting file for scan", "path", path)

	id, err := v.submit(ctx, path, name)
	if err != nil {
		v.log.Error(ctx, "scan submission failed", "path", path, "error", err)
		return indeterminate("submit: %v", err)
	}
	v.log.Info(ctx, "scan submitted", "path", path, "analysis_id", id)

	res := v.poll(ctx, id)
	res.AnalysisID = id
	v.log.Info(ctx, "scan finished",
		"path", path,
		"analysis_id", id,
		"verdict", res.Verdict.String(),
		"malicious", res.Malicious,
		"suspicious", res.Suspicious,
		"undetected", res.Undetected,
		"reason", res.Reason,
	)
	return res
}

// submit uploads the whole file in one multipart request and returns the
// analysis id. The body is streamed so large files are not buffered. The
// part is named after name, or the base of path when name is empty.
func (v *VirusTotal) submit(ctx context.Context, path, name string) (string, error) {
	if name == "" {
		name = filepath.Base(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, v.opts.SubmitTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.opts.BaseURL+"/files", pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	req.Header.Set("x-apikey", v.opts.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := v.do(req, &out); err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	if out.Data.ID == "" {
		return "", errors.New("response missing analysis id")
	}
	return out.Data.ID, nil
}

// poll queries the analysis until it completes, fails, or the attempts run
// out. Each request is bounded by PollTimeout.
func (v *VirusTotal) poll(ctx context.Context, id string) Result {
	var res Result
	attempt := 0

	backoff := retry.WithMaxRetries(uint64(v.opts.PollAttempts-1), retry.NewConstant(v.opts.PollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		a, err := v.fetchAnalysis(ctx, id)
		if err != nil {
			return err
		}

		status := a.Data.Attributes.Status
		v.log.Debug(ctx, "polled analysis", "analysis_id", id, "attempt", attempt, "status", status)

		switch status {
		case statusQueued, statusInProgress, statusInProgress2:
			return retry.RetryableError(errAnalysisPending)
		case statusCompleted:
			stats := a.Data.Attributes.Stats
			res = Result{
				Verdict:    Clean,
				Malicious:  stats.Malicious,
				Suspicious: stats.Suspicious,
				Undetected: stats.Undetected,
			}
			if stats.Malicious > 0 || stats.Suspicious > 0 {
				res.Verdict = Unsafe
				res.Reason = fmt.Sprintf("flagged by engines: malicious=%d suspicious=%d", stats.Malicious, stats.Suspicious)
			}
			return nil
		default:
			return fmt.Errorf("unexpected analysis status %q", status)
		}
	})

	switch {
	case err == nil:
		return res
	case errors.Is(err, errAnalysisPending):
		return indeterminate("analysis not completed after %d attempts", attempt)
	default:
		return indeterminate("poll: %v", err)
	}
}

func (v *VirusTotal) fetchAnalysis(ctx context.Context, id string) (*analysisResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opts.PollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.opts.BaseURL+"/analyses/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-apikey", v.opts.APIKey)

	var out analysisResponse
	if err := v.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *VirusTotal) do(req *http.Request, out any) error {
	resp, err := v.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
