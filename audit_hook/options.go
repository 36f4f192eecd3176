package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used to report recorder failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions. Without it
// every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = toSet(actions)
	}
}

// WithDisabledActions skips the given actions. It combines with
// WithEnabledActions and WithCategories; a disabled action is never recorded.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.disabled == nil {
			e.disabled = make(map[string]bool, len(actions))
		}
		for _, action := range actions {
			e.disabled[action] = true
		}
	}
}

// WithCategories restricts auditing to CategoryAccount, CategoryPayment or both.
func WithCategories(categories ...string) Option {
	return func(e *Extension) {
		e.categories = toSet(categories)
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
