package blaze

import "github.com/livefir/blaze/errs"

// currentAccessor resolves the instance whose helper, handler or callback is
// running. It is an accessor rather than a value so that reading the
// instance's data, and the reactive dependency that comes with it, only
// happens when code asks for it.
var currentAccessor func() *Instance

// WithInstance runs body with accessor installed as the current instance
// accessor. The previous accessor is restored when body returns, fails or
// panics.
func WithInstance(accessor func() *Instance, body func() error) error {
	if body == nil {
		return errs.InvalidArgument("blaze.WithInstance", "expected function, got nil")
	}

	prev := currentAccessor
	currentAccessor = accessor
	defer func() { currentAccessor = prev }()

	return body()
}

// CurrentInstance returns the instance of the running helper, event
// handler, callback or autorun, or nil outside of one.
func CurrentInstance() *Instance {
	if currentAccessor == nil {
		return nil
	}
	return currentAccessor()
}
