package blaze

import "github.com/livefir/blaze/errs"

// Errors returned by this package match these with errors.Is.
var (
	// ErrInvalidArgument reports a bad name, render function, helper
	// table, event map or missing callable.
	ErrInvalidArgument = errs.ErrInvalidArgument
	// ErrInvalidState reports an instance built without a template view,
	// or a DOM query on an instance with no DOM.
	ErrInvalidState = errs.ErrInvalidState
)
