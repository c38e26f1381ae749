package spl

import (
	"os"

	kitlog "github.com/go-kit/kit/log"
)

// NewLogger returns a logfmt logger on stdout tagged with the provided name.
func NewLogger(name string) kitlog.Logger {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(klog, "scenario", name)
}
