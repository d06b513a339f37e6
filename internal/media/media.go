// Package media defines the contract the broadcast layer expects from the
// audio/video transport. The transport itself (stream publish/subscribe,
// codecs, signaling sockets) lives outside this repository; the dispatcher
// only issues the control calls below in response to state transitions.
package media

import (
	"log/slog"

	"stagecast/internal/broadcast"
)

// Controller drives the local media transport. Implementations should be
// safe for concurrent use.
type Controller interface {
	// ToggleLocalVideo enables or disables the local camera track.
	ToggleLocalVideo(enabled bool)

	// ToggleLocalAudio enables or disables the local microphone track.
	ToggleLocalAudio(enabled bool)

	// ChangeVolume adjusts playback volume for the given participant slot.
	// remote marks adjustments requested by the producer rather than the
	// local viewer.
	ChangeVolume(role broadcast.Role, level int, remote bool)

	// Disconnect tears down every active publish and subscribe connection.
	Disconnect()
}

// LogController is a stand-in transport that records control calls to the
// logger. It backs deployments where the dispatcher runs without a real
// transport attached, and doubles as a test fake.
type LogController struct {
	Logger *slog.Logger
}

func (c LogController) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c LogController) ToggleLocalVideo(enabled bool) {
	c.logger().Info("media toggle local video", "enabled", enabled)
}

func (c LogController) ToggleLocalAudio(enabled bool) {
	c.logger().Info("media toggle local audio", "enabled", enabled)
}

func (c LogController) ChangeVolume(role broadcast.Role, level int, remote bool) {
	c.logger().Info("media change volume", "role", string(role), "level", level, "remote", remote)
}

func (c LogController) Disconnect() {
	c.logger().Info("media disconnect")
}
