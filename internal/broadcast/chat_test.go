package broadcast

import "testing"

func TestChatSessionDerivation(t *testing.T) {
	cases := []struct {
		name     string
		fromType Role
		toType   Role
		want     ChatSession
	}{
		{"producer to fan", RoleProducer, RoleFan, SessionBackstage},
		{"producer to active fan", RoleProducer, RoleActiveFan, SessionBackstage},
		{"producer to backstage fan", RoleProducer, RoleBackstageFan, SessionBackstage},
		{"producer to celebrity", RoleProducer, RoleCelebrity, SessionStage},
		{"producer to host", RoleProducer, RoleHost, SessionStage},
		{"fan to producer", RoleFan, RoleProducer, SessionBackstage},
		{"host to producer", RoleHost, RoleProducer, SessionStage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chat := NewChatState(tc.fromType, "", tc.toType, ChatParty{ID: "u-1"})
			if chat.Session != tc.want {
				t.Fatalf("expected session %s, got %s", tc.want, chat.Session)
			}
		})
	}
}

func TestChatIDSelection(t *testing.T) {
	fanChat := NewChatState(RoleProducer, "", RoleActiveFan, ChatParty{ID: "fan-9"})
	if fanChat.ChatID != "fan-9" {
		t.Fatalf("expected fan chat keyed by fan id, got %s", fanChat.ChatID)
	}
	hostChat := NewChatState(RoleProducer, "", RoleHost, ChatParty{ID: "ignored"})
	if hostChat.ChatID != string(RoleHost) {
		t.Fatalf("expected host chat keyed by role, got %s", hostChat.ChatID)
	}
}

func TestChatDefaults(t *testing.T) {
	chat := NewChatState(RoleProducer, "", RoleActiveFan, ChatParty{ID: "fan-1"})
	if !chat.Displayed || chat.Minimized {
		t.Fatal("expected new chat displayed and not minimized")
	}
	if chat.Messages == nil || len(chat.Messages) != 0 {
		t.Fatal("expected empty message log")
	}
	if chat.InPrivateCall {
		t.Fatal("expected inPrivateCall defaulted to false")
	}

	inCall := true
	busy := NewChatState(RoleProducer, "", RoleActiveFan, ChatParty{ID: "fan-2", InPrivateCall: &inCall})
	if !busy.InPrivateCall {
		t.Fatal("expected inPrivateCall carried from the party descriptor")
	}
}

func TestChatCategoryTagging(t *testing.T) {
	cases := []struct {
		toType Role
		want   ChatCategory
	}{
		{RoleActiveFan, CategoryActiveFan},
		{RoleBackstageFan, CategoryBackstageFan},
		{RoleProducer, CategoryProducer},
		{RoleHost, CategoryParticipant},
		{RoleCelebrity, CategoryParticipant},
	}
	for _, tc := range cases {
		chat := NewChatState(RoleProducer, "", tc.toType, ChatParty{ID: "x"})
		if chat.Category != tc.want {
			t.Fatalf("toType %s: expected category %s, got %s", tc.toType, tc.want, chat.Category)
		}
	}
}

func TestStartFanChatMinimizesExistingFanChats(t *testing.T) {
	state := Reduce(InitialState(), StartFanChat{ToType: RoleActiveFan, Fan: ChatParty{ID: "fan-1"}})
	state = Reduce(state, StartFanChat{ToType: RoleBackstageFan, Fan: ChatParty{ID: "fan-2"}})

	if !state.Chats["fan-1"].Minimized {
		t.Fatal("expected earlier fan chat minimized")
	}
	if state.Chats["fan-2"].Minimized {
		t.Fatal("expected new fan chat un-minimized")
	}
}

func TestStartFanChatLeavesParticipantChatsAlone(t *testing.T) {
	state := Reduce(InitialState(), StartParticipantChat{Role: RoleHost, Participant: ChatParty{ID: "h"}})
	state = Reduce(state, StartFanChat{ToType: RoleActiveFan, Fan: ChatParty{ID: "fan-1"}})
	if state.Chats[string(RoleHost)].Minimized {
		t.Fatal("expected participant chat untouched by fan chat insertion")
	}
}

func TestStartProducerChatKeyedUnderProducer(t *testing.T) {
	state := Reduce(InitialState(), StartProducerChat{FromType: RoleActiveFan, FromID: "fan-4", Producer: ChatParty{ID: "prod-1"}})
	chat, ok := state.Chats[string(RoleProducer)]
	if !ok {
		t.Fatal("expected chat keyed under producer")
	}
	if chat.FromType != RoleActiveFan || chat.FromID != "fan-4" {
		t.Fatalf("expected initiator preserved, got %+v", chat)
	}
	if chat.Session != SessionBackstage {
		t.Fatalf("expected backstage session for fan-initiated producer chat, got %s", chat.Session)
	}
}

func TestMinimizeChatScopesActiveFanChatsByCategory(t *testing.T) {
	state := Reduce(InitialState(), StartFanChat{ToType: RoleActiveFan, Fan: ChatParty{ID: "fan-1"}})
	state = Reduce(state, StartFanChat{ToType: RoleActiveFan, Fan: ChatParty{ID: "activeFan-2"}})
	state = Reduce(state, StartParticipantChat{Role: RoleHost, Participant: ChatParty{ID: "h"}})

	// Un-minimize the first fan chat again, then minimize the second: every
	// active-fan chat collapses, scoped by the category tag rather than by
	// chat-id text.
	state = Reduce(state, MinimizeChat{ChatID: "fan-1", Minimized: false})
	state = Reduce(state, MinimizeChat{ChatID: "activeFan-2", Minimized: true})

	if !state.Chats["fan-1"].Minimized {
		t.Fatal("expected sibling active-fan chat minimized")
	}
	if !state.Chats["activeFan-2"].Minimized {
		t.Fatal("expected target chat minimized")
	}
	if state.Chats[string(RoleHost)].Minimized {
		t.Fatal("expected participant chat untouched")
	}
}

func TestMinimizeParticipantChatDoesNotTouchFanChats(t *testing.T) {
	state := Reduce(InitialState(), StartFanChat{ToType: RoleActiveFan, Fan: ChatParty{ID: "fan-1"}})
	state = Reduce(state, MinimizeChat{ChatID: "fan-1", Minimized: false})
	state = Reduce(state, StartParticipantChat{Role: RoleHost, Participant: ChatParty{ID: "h"}})
	state = Reduce(state, MinimizeChat{ChatID: string(RoleHost), Minimized: true})

	if state.Chats["fan-1"].Minimized {
		t.Fatal("expected fan chat untouched by participant chat minimize")
	}
	if !state.Chats[string(RoleHost)].Minimized {
		t.Fatal("expected participant chat minimized")
	}
}
