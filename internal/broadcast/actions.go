package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind is the discriminant identifying each transition. The same names
// appear on the wire in journal entries and producer commands.
type ActionKind string

const (
	KindSetFanTransition       ActionKind = "setFanTransition"
	KindSetReconnecting        ActionKind = "setReconnecting"
	KindSetDisconnected        ActionKind = "setDisconnected"
	KindSetPublishOnly         ActionKind = "setPublishOnly"
	KindParticipantJoined      ActionKind = "participantJoined"
	KindParticipantLeft        ActionKind = "participantLeft"
	KindSetParticipantVideo    ActionKind = "setParticipantVideo"
	KindSetParticipantAudio    ActionKind = "setParticipantAudio"
	KindSetParticipantVolume   ActionKind = "setParticipantVolume"
	KindSetParticipantQuality  ActionKind = "setParticipantQuality"
	KindApplyStatePatch        ActionKind = "applyStatePatch"
	KindSetEvent               ActionKind = "setEvent"
	KindSetEventStatus         ActionKind = "setEventStatus"
	KindSetShowStarted         ActionKind = "setShowStarted"
	KindSetElapsedTime         ActionKind = "setElapsedTime"
	KindSetConnected           ActionKind = "setConnected"
	KindSetConnecting          ActionKind = "setConnecting"
	KindSetBackstageConnected  ActionKind = "setBackstageConnected"
	KindSetPrivateCall         ActionKind = "setPrivateCall"
	KindReset                  ActionKind = "reset"
	KindUpdateActiveFans       ActionKind = "updateActiveFans"
	KindUpdateActiveFanRecord  ActionKind = "updateActiveFanRecord"
	KindSetViewers             ActionKind = "setViewers"
	KindSetArchiving           ActionKind = "setArchiving"
	KindSetInteractiveLimit    ActionKind = "setInteractiveLimit"
	KindReorderActiveFans      ActionKind = "reorderActiveFans"
	KindStartFanChat           ActionKind = "startFanChat"
	KindStartParticipantChat   ActionKind = "startParticipantChat"
	KindStartProducerChat      ActionKind = "startProducerChat"
	KindUpdateChat             ActionKind = "updateChat"
	KindDisplayChat            ActionKind = "displayChat"
	KindMinimizeChat           ActionKind = "minimizeChat"
	KindAppendChatMessage      ActionKind = "appendChatMessage"
	KindRemoveChat             ActionKind = "removeChat"
	KindSetStageCountdown      ActionKind = "setStageCountdown"
)

// Action is the closed set of state transitions accepted by Reduce. Each
// kind replaces exactly one path of the state tree.
type Action interface {
	Kind() ActionKind
}

// SetFanTransition flags that a fan is being moved on or off stage.
type SetFanTransition struct {
	FanTransition bool `json:"fanTransition"`
}

// SetReconnecting flips the main-stage reconnecting flag.
type SetReconnecting struct {
	Reconnecting bool `json:"reconnecting"`
}

// SetDisconnected flips the disconnected flag.
type SetDisconnected struct {
	Disconnected bool `json:"disconnected"`
}

// SetPublishOnly toggles the publish-only feature flag.
type SetPublishOnly struct {
	Enabled bool `json:"enabled"`
}

// ParticipantJoined seeds the participant slot from a newly published stream.
type ParticipantJoined struct {
	Role   Role    `json:"role"`
	Stream *Stream `json:"stream"`
}

// ParticipantLeft resets the participant slot to the disconnected record.
type ParticipantLeft struct {
	Role Role `json:"role"`
}

// SetParticipantVideo overrides the video flag for one participant slot.
type SetParticipantVideo struct {
	Role  Role `json:"role"`
	Video bool `json:"video"`
}

// SetParticipantAudio overrides the audio flag for one participant slot.
type SetParticipantAudio struct {
	Role  Role `json:"role"`
	Audio bool `json:"audio"`
}

// SetParticipantVolume replaces the volume level for one participant slot.
type SetParticipantVolume struct {
	Role   Role `json:"role"`
	Volume int  `json:"volume"`
}

// SetParticipantQuality replaces the reported network quality for one slot.
type SetParticipantQuality struct {
	Role    Role            `json:"role"`
	Quality *NetworkQuality `json:"quality"`
}

// ApplyStatePatch shallow-merges an externally supplied partial snapshot over
// the current state. Non-nil patch fields win and replace the target field
// wholesale; nested values are not deep-merged.
type ApplyStatePatch struct {
	Patch StatePatch `json:"patch"`
}

// StatePatch enumerates the top-level fields the bulk-sync transition may
// replace. A nil field leaves the current value untouched. The patch cannot
// express clearing Event or PrivateCall back to nil.
type StatePatch struct {
	Event              *BroadcastEvent           `json:"event,omitempty"`
	Connecting         *bool                     `json:"connecting,omitempty"`
	Connected          *bool                     `json:"connected,omitempty"`
	BackstageConnected *bool                     `json:"backstageConnected,omitempty"`
	PublishOnlyEnabled *bool                     `json:"publishOnlyEnabled,omitempty"`
	PrivateCall        *PrivateCall              `json:"privateCall,omitempty"`
	Publishers         *MediaEndpoints           `json:"publishers,omitempty"`
	Subscribers        *MediaEndpoints           `json:"subscribers,omitempty"`
	Participants       map[Role]ParticipantState `json:"participants,omitempty"`
	ActiveFans         *ActiveFans               `json:"activeFans,omitempty"`
	Chats              map[string]ChatState      `json:"chats,omitempty"`
	StageCountdown     *int                      `json:"stageCountdown,omitempty"`
	Viewers            *int                      `json:"viewers,omitempty"`
	InteractiveLimit   *int                      `json:"interactiveLimit,omitempty"`
	Archiving          *bool                     `json:"archiving,omitempty"`
	Reconnecting       *bool                     `json:"reconnecting,omitempty"`
	Disconnected       *bool                     `json:"disconnected,omitempty"`
	ElapsedTime        *string                   `json:"elapsedTime,omitempty"`
	FanTransition      *bool                     `json:"fanTransition,omitempty"`
}

// SetEvent replaces the broadcast event descriptor wholesale.
type SetEvent struct {
	Event *BroadcastEvent `json:"event"`
}

// SetEventStatus replaces only the event status, preserving the remaining
// event fields. When no event is loaded, a bare event carrying the status is
// created.
type SetEventStatus struct {
	Status EventStatus `json:"status"`
}

// SetShowStarted records the moment the show went live.
type SetShowStarted struct {
	ShowStartedAt time.Time `json:"showStartedAt"`
}

// SetElapsedTime replaces the formatted show clock.
type SetElapsedTime struct {
	ElapsedTime string `json:"elapsedTime"`
}

// SetConnected flips the main-stage connected flag.
type SetConnected struct {
	Connected bool `json:"connected"`
}

// SetConnecting flips the connecting flag while presence is negotiating.
type SetConnecting struct {
	Connecting bool `json:"connecting"`
}

// SetBackstageConnected flips the backstage-channel connected flag.
type SetBackstageConnected struct {
	Connected bool `json:"connected"`
}

// SetPrivateCall replaces the active private-call descriptor.
type SetPrivateCall struct {
	PrivateCall *PrivateCall `json:"privateCall"`
}

// Reset discards the entire tree and restores the initial state.
type Reset struct{}

// UpdateActiveFans reconciles the stage queue against an authoritative
// membership snapshot. The slice carries the snapshot's iteration order.
type UpdateActiveFans struct {
	Fans []ActiveFan `json:"fans"`
}

// UpdateActiveFanRecord attaches the fan record to the active or backstage
// participant slot.
type UpdateActiveFanRecord struct {
	Role   Role       `json:"role"`
	Record *FanRecord `json:"record"`
}

// SetViewers replaces the viewer count.
type SetViewers struct {
	Viewers int `json:"viewers"`
}

// SetArchiving flips the archiving flag.
type SetArchiving struct {
	Archiving bool `json:"archiving"`
}

// SetInteractiveLimit replaces the maximum number of concurrent on-stage
// participants.
type SetInteractiveLimit struct {
	InteractiveLimit int `json:"interactiveLimit"`
}

// ReorderActiveFans moves the fan at OldIndex to NewIndex in the queue order.
type ReorderActiveFans struct {
	OldIndex int `json:"oldIndex"`
	NewIndex int `json:"newIndex"`
}

// StartFanChat opens a producer-initiated conversation with a fan, keyed by
// the fan's id. Any existing un-minimized fan chat is minimized first so at
// most one is visible at a time.
type StartFanChat struct {
	ToType Role      `json:"toType"`
	Fan    ChatParty `json:"fan"`
}

// StartParticipantChat opens a producer-initiated conversation with a
// non-fan participant, keyed by the participant's role.
type StartParticipantChat struct {
	Role        Role      `json:"role"`
	Participant ChatParty `json:"participant"`
}

// StartProducerChat opens a conversation addressed to the producer, keyed
// under the producer role regardless of initiator.
type StartProducerChat struct {
	FromType Role      `json:"fromType"`
	FromID   string    `json:"fromId,omitempty"`
	Producer ChatParty `json:"producer"`
}

// UpdateChat applies a single-field patch to the conversation with the given
// id. Missing chats are ignored.
type UpdateChat struct {
	ChatID string    `json:"chatId"`
	Patch  ChatPatch `json:"patch"`
}

// ChatPatch enumerates the chat fields the generic patch may replace.
type ChatPatch struct {
	Displayed     *bool `json:"displayed,omitempty"`
	Minimized     *bool `json:"minimized,omitempty"`
	InPrivateCall *bool `json:"inPrivateCall,omitempty"`
}

// DisplayChat toggles a conversation's visibility.
type DisplayChat struct {
	ChatID    string `json:"chatId"`
	Displayed bool   `json:"displayed"`
}

// MinimizeChat toggles a conversation's minimized flag. When the target chat
// addresses an active fan, every active-fan chat is minimized first.
type MinimizeChat struct {
	ChatID    string `json:"chatId"`
	Minimized bool   `json:"minimized"`
}

// AppendChatMessage pushes a message onto the conversation's ordered log.
type AppendChatMessage struct {
	ChatID  string      `json:"chatId"`
	Message ChatMessage `json:"message"`
}

// RemoveChat deletes the conversation entirely.
type RemoveChat struct {
	ChatID string `json:"chatId"`
}

// SetStageCountdown replaces the stage countdown value; -1 means inactive.
type SetStageCountdown struct {
	StageCountdown int `json:"stageCountdown"`
}

func (SetFanTransition) Kind() ActionKind      { return KindSetFanTransition }
func (SetReconnecting) Kind() ActionKind       { return KindSetReconnecting }
func (SetDisconnected) Kind() ActionKind       { return KindSetDisconnected }
func (SetPublishOnly) Kind() ActionKind        { return KindSetPublishOnly }
func (ParticipantJoined) Kind() ActionKind     { return KindParticipantJoined }
func (ParticipantLeft) Kind() ActionKind       { return KindParticipantLeft }
func (SetParticipantVideo) Kind() ActionKind   { return KindSetParticipantVideo }
func (SetParticipantAudio) Kind() ActionKind   { return KindSetParticipantAudio }
func (SetParticipantVolume) Kind() ActionKind  { return KindSetParticipantVolume }
func (SetParticipantQuality) Kind() ActionKind { return KindSetParticipantQuality }
func (ApplyStatePatch) Kind() ActionKind       { return KindApplyStatePatch }
func (SetEvent) Kind() ActionKind              { return KindSetEvent }
func (SetEventStatus) Kind() ActionKind        { return KindSetEventStatus }
func (SetShowStarted) Kind() ActionKind        { return KindSetShowStarted }
func (SetElapsedTime) Kind() ActionKind        { return KindSetElapsedTime }
func (SetConnected) Kind() ActionKind          { return KindSetConnected }
func (SetConnecting) Kind() ActionKind         { return KindSetConnecting }
func (SetBackstageConnected) Kind() ActionKind { return KindSetBackstageConnected }
func (SetPrivateCall) Kind() ActionKind        { return KindSetPrivateCall }
func (Reset) Kind() ActionKind                 { return KindReset }
func (UpdateActiveFans) Kind() ActionKind      { return KindUpdateActiveFans }
func (UpdateActiveFanRecord) Kind() ActionKind { return KindUpdateActiveFanRecord }
func (SetViewers) Kind() ActionKind            { return KindSetViewers }
func (SetArchiving) Kind() ActionKind          { return KindSetArchiving }
func (SetInteractiveLimit) Kind() ActionKind   { return KindSetInteractiveLimit }
func (ReorderActiveFans) Kind() ActionKind     { return KindReorderActiveFans }
func (StartFanChat) Kind() ActionKind          { return KindStartFanChat }
func (StartParticipantChat) Kind() ActionKind  { return KindStartParticipantChat }
func (StartProducerChat) Kind() ActionKind     { return KindStartProducerChat }
func (UpdateChat) Kind() ActionKind            { return KindUpdateChat }
func (DisplayChat) Kind() ActionKind           { return KindDisplayChat }
func (MinimizeChat) Kind() ActionKind          { return KindMinimizeChat }
func (AppendChatMessage) Kind() ActionKind     { return KindAppendChatMessage }
func (RemoveChat) Kind() ActionKind            { return KindRemoveChat }
func (SetStageCountdown) Kind() ActionKind     { return KindSetStageCountdown }

// DecodeAction rebuilds a typed action from its kind discriminant and JSON
// payload, as carried by producer commands and journal entries.
func DecodeAction(kind ActionKind, payload json.RawMessage) (Action, error) {
	prototype, err := actionPrototype(kind)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return prototype.value(), nil
	}
	if err := json.Unmarshal(payload, prototype.pointer); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return prototype.value(), nil
}

type decodeTarget struct {
	pointer any
	value   func() Action
}

func target[A Action](action *A) decodeTarget {
	return decodeTarget{pointer: action, value: func() Action { return *action }}
}

func actionPrototype(kind ActionKind) (decodeTarget, error) {
	switch kind {
	case KindSetFanTransition:
		return target(&SetFanTransition{}), nil
	case KindSetReconnecting:
		return target(&SetReconnecting{}), nil
	case KindSetDisconnected:
		return target(&SetDisconnected{}), nil
	case KindSetPublishOnly:
		return target(&SetPublishOnly{}), nil
	case KindParticipantJoined:
		return target(&ParticipantJoined{}), nil
	case KindParticipantLeft:
		return target(&ParticipantLeft{}), nil
	case KindSetParticipantVideo:
		return target(&SetParticipantVideo{}), nil
	case KindSetParticipantAudio:
		return target(&SetParticipantAudio{}), nil
	case KindSetParticipantVolume:
		return target(&SetParticipantVolume{}), nil
	case KindSetParticipantQuality:
		return target(&SetParticipantQuality{}), nil
	case KindApplyStatePatch:
		return target(&ApplyStatePatch{}), nil
	case KindSetEvent:
		return target(&SetEvent{}), nil
	case KindSetEventStatus:
		return target(&SetEventStatus{}), nil
	case KindSetShowStarted:
		return target(&SetShowStarted{}), nil
	case KindSetElapsedTime:
		return target(&SetElapsedTime{}), nil
	case KindSetConnected:
		return target(&SetConnected{}), nil
	case KindSetConnecting:
		return target(&SetConnecting{}), nil
	case KindSetBackstageConnected:
		return target(&SetBackstageConnected{}), nil
	case KindSetPrivateCall:
		return target(&SetPrivateCall{}), nil
	case KindReset:
		return target(&Reset{}), nil
	case KindUpdateActiveFans:
		return target(&UpdateActiveFans{}), nil
	case KindUpdateActiveFanRecord:
		return target(&UpdateActiveFanRecord{}), nil
	case KindSetViewers:
		return target(&SetViewers{}), nil
	case KindSetArchiving:
		return target(&SetArchiving{}), nil
	case KindSetInteractiveLimit:
		return target(&SetInteractiveLimit{}), nil
	case KindReorderActiveFans:
		return target(&ReorderActiveFans{}), nil
	case KindStartFanChat:
		return target(&StartFanChat{}), nil
	case KindStartParticipantChat:
		return target(&StartParticipantChat{}), nil
	case KindStartProducerChat:
		return target(&StartProducerChat{}), nil
	case KindUpdateChat:
		return target(&UpdateChat{}), nil
	case KindDisplayChat:
		return target(&DisplayChat{}), nil
	case KindMinimizeChat:
		return target(&MinimizeChat{}), nil
	case KindAppendChatMessage:
		return target(&AppendChatMessage{}), nil
	case KindRemoveChat:
		return target(&RemoveChat{}), nil
	case KindSetStageCountdown:
		return target(&SetStageCountdown{}), nil
	default:
		return decodeTarget{}, fmt.Errorf("unknown action kind %q", kind)
	}
}
