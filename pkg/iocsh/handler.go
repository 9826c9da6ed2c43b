package iocsh

import "github.com/ioctools/recwalk/pkg/epics"

// Handler is a pluggable sub-handler owning a slice of the shell state for
// one device or facility concern. Handlers gain behavior through the
// optional capability interfaces below.
type Handler interface {
	// Name identifies the handler; it is used as the annotation source on
	// records and for handler lookup.
	Name() string
}

// RecordAnnotator is implemented by handlers that attach annotations to
// records after all scripts for the IOC have been interpreted.
type RecordAnnotator interface {
	AnnotateRecord(st *ShellState, rec *epics.RecordInstance)
}

// LifecycleHook is implemented by handlers that need to act around iocInit.
// Returned metadata is merged into the iocInit line result; a returned error
// is captured on the line without aborting the remaining hooks.
type LifecycleHook interface {
	PreIOCInit(st *ShellState) (map[string]string, error)
	PostIOCInit(st *ShellState) (map[string]string, error)
}
