// Package scanner decides whether an uploaded file is safe to store.
package scanner

import (
	"context"
	"fmt"
)

// Verdict is the outcome of a scan. The zero value is Indeterminate so an
// unset result never lets a file through.
type Verdict int

const (
	Indeterminate Verdict = iota
	Clean
	Unsafe
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Unsafe:
		return "unsafe"
	default:
		return "indeterminate"
	}
}

// Result carries the verdict together with the engine counts and, for
// non-clean outcomes, a short human readable reason.
type Result struct {
	Verdict    Verdict
	Malicious  int
	Suspicious int
	Undetected int
	AnalysisID string
	Reason     string
}

// Clean reports whether the file may be stored. Unsafe and indeterminate
// results are both refused.
func (r Result) Clean() bool { return r.Verdict == Clean }

func indeterminate(format string, args ...any) Result {
	return Result{Verdict: Indeterminate, Reason: fmt.Sprintf(format, args...)}
}

// Scanner inspects the file at path. name is the file name the uploader
// gave, reported to remote services instead of the staging name. Scan never
// returns an error: failures to reach a verdict are reported as
// Indeterminate. Cancelling ctx aborts the scan with an Indeterminate result.
type Scanner interface {
	Scan(ctx context.Context, path, name string) Result
}
