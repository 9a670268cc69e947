package action

import "github.com/pimonitor/pimonitor/internal/component"

// Register adds the built-in action types to f.
func Register(f *component.Factory) {
	f.RegisterAction("log", newLogAction)
	f.RegisterAction("webhook", newWebhookAction)
	f.RegisterAction("command", newCommandAction)
}
