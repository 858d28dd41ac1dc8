// Package applog is the info/warn/error sink used by the bracket controller
// and rating store for audit trails. It is never consulted for control flow.
package applog

import "log"

// Logger is the collaborator described in the core's external-interfaces
// section: named sinks a caller can swap out in tests without touching the
// package-level logger.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Std wraps the standard library logger with a component prefix, the same
// shape as this codebase's "ELO: ..." / "bracket: ..." log lines.
type Std struct {
	Prefix string
}

func New(prefix string) *Std {
	return &Std{Prefix: prefix}
}

func (s *Std) Infof(format string, args ...any) {
	log.Printf(s.Prefix+": "+format, args...)
}

func (s *Std) Warnf(format string, args ...any) {
	log.Printf(s.Prefix+": WARN: "+format, args...)
}

func (s *Std) Errorf(format string, args ...any) {
	log.Printf(s.Prefix+": ERROR: "+format, args...)
}

// Noop discards everything; useful in tests that don't want log.Printf
// output cluttering `go test -v`.
type Noop struct{}

func (Noop) Infof(string, ...any)  {}
func (Noop) Warnf(string, ...any)  {}
func (Noop) Errorf(string, ...any) {}
