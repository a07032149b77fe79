package crawler

import "errors"

// ErrInterrupted is returned by Engine.Run when the context was canceled
// before the frontier was exhausted. The registry still holds every record
// completed up to that point.
var ErrInterrupted = errors.New("crawl interrupted")
