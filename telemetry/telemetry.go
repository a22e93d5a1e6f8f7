// Package telemetry defines the injectable event sink dialogs report to.
// The core emits lifecycle events (dialog started, step completed, prompt
// retried) and never depends on a concrete backend; a zap-backed client is
// provided for structured-log telemetry.
package telemetry

import "go.uber.org/zap"

// Client receives telemetry events from the dialog engine.
type Client interface {
	// TrackEvent records a named event with optional properties.
	TrackEvent(name string, properties map[string]string)

	// TrackDialogView records that a dialog rendered a view (its prompt or
	// card) to the user.
	TrackDialogView(dialogName string, properties map[string]string)
}

// NoopClient discards all telemetry. It is the default on every dialog.
type NoopClient struct{}

func (NoopClient) TrackEvent(name string, properties map[string]string)            {}
func (NoopClient) TrackDialogView(dialogName string, properties map[string]string) {}

// IsNoop reports whether the client is the discarding default. Telemetry
// cascade in container dialogs only overwrites defaults.
func IsNoop(c Client) bool {
	if c == nil {
		return true
	}
	_, ok := c.(NoopClient)
	return ok
}

// ZapClient writes telemetry events to a structured logger.
type ZapClient struct {
	logger *zap.Logger
}

// NewZapClient creates a telemetry client over a zap logger.
func NewZapClient(logger *zap.Logger) *ZapClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapClient{logger: logger.With(zap.String("component", "telemetry"))}
}

func (c *ZapClient) TrackEvent(name string, properties map[string]string) {
	c.logger.Info("telemetry event",
		zap.String("event", name),
		zap.Any("properties", properties),
	)
}

func (c *ZapClient) TrackDialogView(dialogName string, properties map[string]string) {
	c.logger.Info("dialog view",
		zap.String("dialog", dialogName),
		zap.Any("properties", properties),
	)
}
