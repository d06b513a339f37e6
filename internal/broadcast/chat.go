package broadcast

import "time"

// ChatSession scopes a conversation to the pre-show holding area or the live
// stage, derived once from the two party roles at creation.
type ChatSession string

const (
	SessionBackstage ChatSession = "backstage"
	SessionStage     ChatSession = "stage"
)

// ChatCategory tags each conversation with an explicit class so minimize-all
// operations can filter on the tag instead of inspecting chat-id text.
type ChatCategory string

const (
	CategoryActiveFan    ChatCategory = "activeFan"
	CategoryBackstageFan ChatCategory = "backstageFan"
	CategoryParticipant  ChatCategory = "participant"
	CategoryProducer     ChatCategory = "producer"
)

// ChatParty describes the remote side of a conversation. InPrivateCall is a
// tri-state: absent means not in a call.
type ChatParty struct {
	ID            string `json:"id,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	InPrivateCall *bool  `json:"inPrivateCall,omitempty"`
}

// ChatMessage is one entry in a conversation's ordered message log.
type ChatMessage struct {
	From      Role      `json:"from"`
	FromID    string    `json:"fromId,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatState is one conversation between two roles.
type ChatState struct {
	ChatID        string        `json:"chatId"`
	Session       ChatSession   `json:"session"`
	Category      ChatCategory  `json:"category"`
	FromType      Role          `json:"fromType"`
	FromID        string        `json:"fromId,omitempty"`
	ToType        Role          `json:"toType"`
	To            ChatParty     `json:"to"`
	Displayed     bool          `json:"displayed"`
	Minimized     bool          `json:"minimized"`
	Messages      []ChatMessage `json:"messages"`
	InPrivateCall bool          `json:"inPrivateCall"`
}

// NewChatState builds a freshly opened conversation. The chat id is the
// target party's id for fan-type targets and the target role itself
// otherwise, so at most one chat per non-fan role can be open. The session is
// backstage whenever a fan-type role is involved on either side.
func NewChatState(fromType Role, fromID string, toType Role, to ChatParty) ChatState {
	session := SessionStage
	if IsFanRole(fromType) || IsFanRole(toType) {
		session = SessionBackstage
	}
	chatID := string(toType)
	if IsFanRole(toType) {
		chatID = to.ID
	}
	inPrivateCall := false
	if to.InPrivateCall != nil {
		inPrivateCall = *to.InPrivateCall
	}
	return ChatState{
		ChatID:        chatID,
		Session:       session,
		Category:      chatCategory(toType),
		FromType:      fromType,
		FromID:        fromID,
		ToType:        toType,
		To:            to,
		Displayed:     true,
		Minimized:     false,
		Messages:      []ChatMessage{},
		InPrivateCall: inPrivateCall,
	}
}

func chatCategory(toType Role) ChatCategory {
	switch toType {
	case RoleActiveFan:
		return CategoryActiveFan
	case RoleBackstageFan:
		return CategoryBackstageFan
	case RoleProducer:
		return CategoryProducer
	default:
		return CategoryParticipant
	}
}

// isFanChat reports whether the conversation addresses a fan waiting in the
// stage queue or backstage.
func (c ChatState) isFanChat() bool {
	return c.Category == CategoryActiveFan || c.Category == CategoryBackstageFan
}
