package hub

import "errors"

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrHubBusy           = errors.New("hub event queue is full")
	ErrMessageNotFound   = errors.New("message not found")
)
