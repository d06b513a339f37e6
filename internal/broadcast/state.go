package broadcast

import (
	"fmt"
	"time"
)

// Role identifies a party in the broadcast: the camera-based participants
// occupying a stage slot plus the producer operating the show.
type Role string

const (
	RoleFan          Role = "fan"
	RoleCelebrity    Role = "celebrity"
	RoleHost         Role = "host"
	RoleBackstageFan Role = "backstageFan"
	RoleActiveFan    Role = "activeFan"
	RoleProducer     Role = "producer"
)

// IsFanRole reports whether the role denotes one of the fan variants. Fan
// roles determine chat session scoping and chat-id selection.
func IsFanRole(role Role) bool {
	switch role {
	case RoleFan, RoleActiveFan, RoleBackstageFan:
		return true
	}
	return false
}

// EventStatus tracks the lifecycle of a broadcast event.
type EventStatus string

const (
	StatusNotStarted EventStatus = "notStarted"
	StatusLive       EventStatus = "live"
	StatusClosed     EventStatus = "closed"
)

// BroadcastEvent describes the show being produced. The producer replaces it
// wholesale or patches the status and show-start fields individually.
type BroadcastEvent struct {
	Name          string      `json:"name"`
	Status        EventStatus `json:"status"`
	StartImage    string      `json:"startImage,omitempty"`
	EndImage      string      `json:"endImage,omitempty"`
	ShowStartedAt *time.Time  `json:"showStartedAt,omitempty"`
}

// Stream is the opaque media-stream handle delivered by the transport layer.
// The reducer only inspects the capability flags when seeding participant
// state.
type Stream struct {
	ID       string `json:"id"`
	HasAudio bool   `json:"hasAudio"`
	HasVideo bool   `json:"hasVideo"`
}

// NetworkQuality is the coarse link-quality indicator reported per
// participant by the transport layer.
type NetworkQuality string

const (
	QualityGood NetworkQuality = "good"
	QualityFair NetworkQuality = "fair"
	QualityPoor NetworkQuality = "poor"
)

// FanRecord carries the descriptive details attached to a fan occupying the
// active or backstage slot.
type FanRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Browser     string `json:"browser,omitempty"`
	SnapshotURL string `json:"snapshotUrl,omitempty"`
}

// ParticipantState is the per-role connection and media record. Connected is
// always derived from stream presence; Video and Audio default from the
// stream's capability flags and may be overridden independently afterwards.
type ParticipantState struct {
	Connected      bool            `json:"connected"`
	Stream         *Stream         `json:"stream"`
	NetworkQuality *NetworkQuality `json:"networkQuality"`
	Video          bool            `json:"video"`
	Audio          bool            `json:"audio"`
	Volume         int             `json:"volume"`
	Record         *FanRecord      `json:"record,omitempty"`
}

// NewParticipantState builds the connection record for a participant slot. A
// nil stream produces the disconnected zero record used for empty slots.
func NewParticipantState(stream *Stream) ParticipantState {
	state := ParticipantState{
		Connected: stream != nil,
		Stream:    stream,
		Volume:    100,
	}
	if stream != nil {
		state.Video = stream.HasVideo
		state.Audio = stream.HasAudio
	}
	return state
}

// ActiveFan is one entry in the stage queue membership snapshot delivered by
// the presence channel.
type ActiveFan struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Browser     string `json:"browser,omitempty"`
	Mobile      bool   `json:"mobile,omitempty"`
	SnapshotURL string `json:"snapshotUrl,omitempty"`
}

// ActiveFans pairs the authoritative queue membership with the order the
// producer sees. Order is maintained as a permutation of the map keys.
type ActiveFans struct {
	Map   map[string]ActiveFan `json:"map"`
	Order []string             `json:"order"`
}

// PrivateCall records an in-progress one-to-one call between the producer and
// a participant.
type PrivateCall struct {
	IsWith Role   `json:"isWith"`
	FanID  string `json:"fanId,omitempty"`
}

// MediaEndpoints holds the per-kind publish or subscribe handles. Only the
// camera kind exists today.
type MediaEndpoints struct {
	Camera *Stream `json:"camera"`
}

// BroadcastState is the root aggregate for one viewing or production
// session. Values are immutable once published: Reduce returns a
// structurally-new snapshot and never mutates its input.
type BroadcastState struct {
	Event              *BroadcastEvent           `json:"event"`
	Connecting         bool                      `json:"connecting"`
	Connected          bool                      `json:"connected"`
	BackstageConnected bool                      `json:"backstageConnected"`
	PublishOnlyEnabled bool                      `json:"publishOnlyEnabled"`
	PrivateCall        *PrivateCall              `json:"privateCall"`
	Publishers         MediaEndpoints            `json:"publishers"`
	Subscribers        MediaEndpoints            `json:"subscribers"`
	Participants       map[Role]ParticipantState `json:"participants"`
	ActiveFans         ActiveFans                `json:"activeFans"`
	Chats              map[string]ChatState      `json:"chats"`
	StageCountdown     int                       `json:"stageCountdown"`
	Viewers            int                       `json:"viewers"`
	InteractiveLimit   int                       `json:"interactiveLimit"`
	Archiving          bool                      `json:"archiving"`
	Reconnecting       bool                      `json:"reconnecting"`
	Disconnected       bool                      `json:"disconnected"`
	ElapsedTime        string                    `json:"elapsedTime"`
	FanTransition      bool                      `json:"fanTransition"`
}

// DefaultElapsedTime is the placeholder shown before the show clock starts.
const DefaultElapsedTime = "--:--:--"

// InitialState returns the canonical seed state. Reset transitions return a
// value deeply equal to this one regardless of prior history.
func InitialState() BroadcastState {
	return BroadcastState{
		Participants: map[Role]ParticipantState{
			RoleFan:          NewParticipantState(nil),
			RoleCelebrity:    NewParticipantState(nil),
			RoleHost:         NewParticipantState(nil),
			RoleBackstageFan: NewParticipantState(nil),
		},
		ActiveFans:     ActiveFans{Map: map[string]ActiveFan{}, Order: []string{}},
		Chats:          map[string]ChatState{},
		StageCountdown: -1,
		ElapsedTime:    DefaultElapsedTime,
	}
}

// Status returns the event status, or notStarted when no event is loaded.
func (s BroadcastState) Status() EventStatus {
	if s.Event == nil {
		return StatusNotStarted
	}
	return s.Event.Status
}

// Copy returns a deep copy of the state. Snapshots handed to concurrent
// readers are copied so holders can keep them indefinitely.
func (s BroadcastState) Copy() BroadcastState {
	out := s
	if s.Event != nil {
		event := *s.Event
		if s.Event.ShowStartedAt != nil {
			startedAt := *s.Event.ShowStartedAt
			event.ShowStartedAt = &startedAt
		}
		out.Event = &event
	}
	if s.PrivateCall != nil {
		call := *s.PrivateCall
		out.PrivateCall = &call
	}
	out.Publishers = s.Publishers.copy()
	out.Subscribers = s.Subscribers.copy()
	out.Participants = make(map[Role]ParticipantState, len(s.Participants))
	for role, participant := range s.Participants {
		out.Participants[role] = participant.copy()
	}
	out.ActiveFans = s.ActiveFans.copy()
	out.Chats = make(map[string]ChatState, len(s.Chats))
	for id, chat := range s.Chats {
		out.Chats[id] = chat.copy()
	}
	return out
}

func (m MediaEndpoints) copy() MediaEndpoints {
	out := m
	if m.Camera != nil {
		camera := *m.Camera
		out.Camera = &camera
	}
	return out
}

func (p ParticipantState) copy() ParticipantState {
	out := p
	if p.Stream != nil {
		stream := *p.Stream
		out.Stream = &stream
	}
	if p.NetworkQuality != nil {
		quality := *p.NetworkQuality
		out.NetworkQuality = &quality
	}
	if p.Record != nil {
		record := *p.Record
		out.Record = &record
	}
	return out
}

func (a ActiveFans) copy() ActiveFans {
	out := ActiveFans{
		Map:   make(map[string]ActiveFan, len(a.Map)),
		Order: make([]string, len(a.Order)),
	}
	for id, fan := range a.Map {
		out.Map[id] = fan
	}
	copy(out.Order, a.Order)
	return out
}

func (c ChatState) copy() ChatState {
	out := c
	if c.To.InPrivateCall != nil {
		inCall := *c.To.InPrivateCall
		out.To.InPrivateCall = &inCall
	}
	out.Messages = make([]ChatMessage, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// FormatElapsed renders a show duration as HH:MM:SS for the elapsed-time
// ticker. Negative durations render as the zero clock.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
