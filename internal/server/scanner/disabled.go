package scanner

import (
	"context"

	"github.com/dmitrijs2005/modzart/internal/logging"
)

// Disabled approves every file. It exists for development setups without a
// scanning credential and complains loudly about it.
type Disabled struct {
	log    logging.Logger
	reason string
}

// NewDisabled returns a scanner that always reports Clean. reason explains
// why scanning is off and is repeated in every log line.
func NewDisabled(log logging.Logger, reason string) *Disabled {
	d := &Disabled{log: log, reason: reason}
	d.log.Warn(context.Background(), "malware scanning disabled, uploads will NOT be scanned", "reason", reason)
	return d
}

func (d *Disabled) Scan(ctx context.Context, path, name string) Result {
	d.log.Warn(ctx, "malware scanning disabled, accepting file without scan", "path", path, "name", name, "reason", d.reason)
	return Result{Verdict: Clean, Reason: "scanning disabled: " + d.reason}
}
