// internal/display/context.go
package display

import "context"

// combineContext returns a context carrying the values of primary (the chromedp target)
// that is cancelled when either primary or secondary is done.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
