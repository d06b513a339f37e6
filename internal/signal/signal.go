// Package signal models the out-of-band presence channel carrying control
// commands between the producer console and connected clients, and the queue
// transport used to move those commands between processes.
package signal

import (
	"encoding/json"
	"time"
)

// Type enumerates the control signals delivered over the presence channel.
// The names match the wire format emitted by the console.
type Type string

const (
	TypeGoLive          Type = "signal:goLive"
	TypeVideoOnOff      Type = "signal:videoOnOff"
	TypeMuteAudio       Type = "signal:muteAudio"
	TypeChangeVolume    Type = "signal:changeVolume"
	TypeChatMessage     Type = "signal:chatMessage"
	TypePrivateCall     Type = "signal:privateCall"
	TypeEndPrivateCall  Type = "signal:endPrivateCall"
	TypeOpenChat        Type = "signal:openChat"
	TypeFinishEvent     Type = "signal:finishEvent"
	TypeNewBackstageFan Type = "signal:newBackstageFan"
)

// Sender carries the metadata attached to every signal by the transport.
type Sender struct {
	UserType string `json:"userType"`
	UserID   string `json:"userId,omitempty"`
}

// FromProducer reports whether the signal originated from the producer
// console. Commands that change event status or drive remote media are only
// honoured from the producer.
func (s Sender) FromProducer() bool {
	return s.UserType == "producer"
}

// Event is one signal as delivered by the presence transport. Data is left
// raw; each signal type decodes only the fields it understands.
type Event struct {
	Type       Type            `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	From       Sender          `json:"from"`
	OccurredAt time.Time       `json:"occurredAt,omitempty"`
}

// VideoPayload is the body of a videoOnOff signal.
type VideoPayload struct {
	Video string `json:"video"`
}

// MutePayload is the body of a muteAudio signal.
type MutePayload struct {
	Mute string `json:"mute"`
}

// VolumePayload is the body of a changeVolume signal.
type VolumePayload struct {
	UserType string `json:"userType"`
	Volume   int    `json:"volume"`
}
