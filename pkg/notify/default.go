package notify

import "sync/atomic"

var defaultPublisher atomic.Pointer[Publisher]

// SetDefault installs p as the process-wide default publisher used by
// helpers such as the watch package. A nil p clears it.
func SetDefault(p *Publisher) {
	defaultPublisher.Store(p)
}

// Default returns the default publisher, or nil if none is set.
func Default() *Publisher {
	return defaultPublisher.Load()
}

// ClearDefault removes the default publisher.
func ClearDefault() {
	defaultPublisher.Store(nil)
}
