package host

import "go.uber.org/zap"

// Sink receives notifications for the host application. Calls are fire and
// forget and may come from any goroutine.
type Sink interface {
	OnStarted()
	OnStopped()
	OnTitleChanged(title string)
	OnVibrate(on bool)
	OnError(text string)

	// OnMessage shows text. A zero duration asks for a host toast, anything
	// else an on-screen message lasting that many seconds.
	OnMessage(text string, duration float64)
}

// LogSink writes notifications to a logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// OnStarted logs at info level.
func (s LogSink) OnStarted() {
	s.logger().Info("Emulation started")
}

// OnStopped logs at info level.
func (s LogSink) OnStopped() {
	s.logger().Info("Emulation stopped")
}

// OnTitleChanged logs the new title.
func (s LogSink) OnTitleChanged(title string) {
	s.logger().Info("Title changed", zap.String("title", title))
}

// OnVibrate logs at debug level.
func (s LogSink) OnVibrate(on bool) {
	s.logger().Debug("Vibration", zap.Bool("on", on))
}

// OnError logs text as an error.
func (s LogSink) OnError(text string) {
	s.logger().Error(text)
}

// OnMessage logs text with its duration.
func (s LogSink) OnMessage(text string, duration float64) {
	s.logger().Info(text, zap.Float64("duration", duration))
}
