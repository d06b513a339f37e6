package broadcast

// Reduce applies a single action to the prior state and returns the next
// snapshot. It is a total function: unrecognized or nil actions return the
// input unchanged, and transitions addressing missing chats or out-of-range
// indices are ignored rather than failing. Exactly one path of the tree is
// replaced per recognized action; untouched collections are shared
// structurally with the input.
func Reduce(state BroadcastState, action Action) BroadcastState {
	switch a := action.(type) {
	case SetFanTransition:
		next := state
		next.FanTransition = a.FanTransition
		return next
	case SetReconnecting:
		next := state
		next.Reconnecting = a.Reconnecting
		return next
	case SetDisconnected:
		next := state
		next.Disconnected = a.Disconnected
		return next
	case SetPublishOnly:
		next := state
		next.PublishOnlyEnabled = a.Enabled
		return next
	case SetConnected:
		next := state
		next.Connected = a.Connected
		return next
	case SetConnecting:
		next := state
		next.Connecting = a.Connecting
		return next
	case SetBackstageConnected:
		next := state
		next.BackstageConnected = a.Connected
		return next
	case SetPrivateCall:
		next := state
		next.PrivateCall = a.PrivateCall
		return next
	case SetElapsedTime:
		next := state
		next.ElapsedTime = a.ElapsedTime
		return next
	case SetViewers:
		next := state
		next.Viewers = a.Viewers
		return next
	case SetArchiving:
		next := state
		next.Archiving = a.Archiving
		return next
	case SetInteractiveLimit:
		next := state
		next.InteractiveLimit = a.InteractiveLimit
		return next
	case SetStageCountdown:
		next := state
		next.StageCountdown = a.StageCountdown
		return next
	case ParticipantJoined:
		return withParticipant(state, a.Role, NewParticipantState(a.Stream))
	case ParticipantLeft:
		return withParticipant(state, a.Role, NewParticipantState(nil))
	case SetParticipantVideo:
		return patchParticipant(state, a.Role, func(p *ParticipantState) { p.Video = a.Video })
	case SetParticipantAudio:
		return patchParticipant(state, a.Role, func(p *ParticipantState) { p.Audio = a.Audio })
	case SetParticipantVolume:
		return patchParticipant(state, a.Role, func(p *ParticipantState) { p.Volume = a.Volume })
	case SetParticipantQuality:
		return patchParticipant(state, a.Role, func(p *ParticipantState) { p.NetworkQuality = a.Quality })
	case UpdateActiveFanRecord:
		return patchParticipant(state, a.Role, func(p *ParticipantState) { p.Record = a.Record })
	case SetEvent:
		next := state
		next.Event = a.Event
		return next
	case SetEventStatus:
		next := state
		event := cloneEventOrNew(state.Event)
		event.Status = a.Status
		next.Event = event
		return next
	case SetShowStarted:
		next := state
		event := cloneEventOrNew(state.Event)
		startedAt := a.ShowStartedAt
		event.ShowStartedAt = &startedAt
		next.Event = event
		return next
	case ApplyStatePatch:
		return applyStatePatch(state, a.Patch)
	case UpdateActiveFans:
		next := state
		next.ActiveFans = reconcileActiveFans(state.ActiveFans, a.Fans)
		return next
	case ReorderActiveFans:
		next := state
		next.ActiveFans = ActiveFans{
			Map:   state.ActiveFans.Map,
			Order: moveActiveFan(state.ActiveFans.Order, a.OldIndex, a.NewIndex),
		}
		return next
	case StartFanChat:
		next := state
		chats := cloneChats(state.Chats)
		for id, chat := range chats {
			if chat.isFanChat() {
				chat.Minimized = true
				chats[id] = chat
			}
		}
		opened := NewChatState(RoleProducer, "", a.ToType, a.Fan)
		chats[a.Fan.ID] = opened
		next.Chats = chats
		return next
	case StartParticipantChat:
		next := state
		chats := cloneChats(state.Chats)
		chats[string(a.Role)] = NewChatState(RoleProducer, "", a.Role, a.Participant)
		next.Chats = chats
		return next
	case StartProducerChat:
		next := state
		chats := cloneChats(state.Chats)
		chats[string(RoleProducer)] = NewChatState(a.FromType, a.FromID, RoleProducer, a.Producer)
		next.Chats = chats
		return next
	case UpdateChat:
		return patchChat(state, a.ChatID, func(chat *ChatState) {
			if a.Patch.Displayed != nil {
				chat.Displayed = *a.Patch.Displayed
			}
			if a.Patch.Minimized != nil {
				chat.Minimized = *a.Patch.Minimized
			}
			if a.Patch.InPrivateCall != nil {
				chat.InPrivateCall = *a.Patch.InPrivateCall
			}
		})
	case DisplayChat:
		return patchChat(state, a.ChatID, func(chat *ChatState) { chat.Displayed = a.Displayed })
	case MinimizeChat:
		target, ok := state.Chats[a.ChatID]
		if !ok {
			return state
		}
		next := state
		chats := cloneChats(state.Chats)
		if target.Category == CategoryActiveFan {
			for id, chat := range chats {
				if chat.Category == CategoryActiveFan {
					chat.Minimized = true
					chats[id] = chat
				}
			}
		}
		target = chats[a.ChatID]
		target.Minimized = a.Minimized
		chats[a.ChatID] = target
		next.Chats = chats
		return next
	case AppendChatMessage:
		return patchChat(state, a.ChatID, func(chat *ChatState) {
			messages := make([]ChatMessage, len(chat.Messages), len(chat.Messages)+1)
			copy(messages, chat.Messages)
			chat.Messages = append(messages, a.Message)
		})
	case RemoveChat:
		if _, ok := state.Chats[a.ChatID]; !ok {
			return state
		}
		next := state
		chats := cloneChats(state.Chats)
		delete(chats, a.ChatID)
		next.Chats = chats
		return next
	case Reset:
		return InitialState()
	default:
		return state
	}
}

func withParticipant(state BroadcastState, role Role, participant ParticipantState) BroadcastState {
	next := state
	participants := make(map[Role]ParticipantState, len(state.Participants)+1)
	for existing, record := range state.Participants {
		participants[existing] = record
	}
	participants[role] = participant
	next.Participants = participants
	return next
}

func patchParticipant(state BroadcastState, role Role, apply func(*ParticipantState)) BroadcastState {
	participant := state.Participants[role]
	apply(&participant)
	return withParticipant(state, role, participant)
}

func patchChat(state BroadcastState, chatID string, apply func(*ChatState)) BroadcastState {
	chat, ok := state.Chats[chatID]
	if !ok {
		return state
	}
	apply(&chat)
	next := state
	chats := cloneChats(state.Chats)
	chats[chatID] = chat
	next.Chats = chats
	return next
}

func cloneChats(chats map[string]ChatState) map[string]ChatState {
	out := make(map[string]ChatState, len(chats)+1)
	for id, chat := range chats {
		out[id] = chat
	}
	return out
}

func cloneEventOrNew(event *BroadcastEvent) *BroadcastEvent {
	if event == nil {
		return &BroadcastEvent{}
	}
	clone := *event
	return &clone
}

func applyStatePatch(state BroadcastState, patch StatePatch) BroadcastState {
	next := state
	if patch.Event != nil {
		next.Event = patch.Event
	}
	if patch.Connecting != nil {
		next.Connecting = *patch.Connecting
	}
	if patch.Connected != nil {
		next.Connected = *patch.Connected
	}
	if patch.BackstageConnected != nil {
		next.BackstageConnected = *patch.BackstageConnected
	}
	if patch.PublishOnlyEnabled != nil {
		next.PublishOnlyEnabled = *patch.PublishOnlyEnabled
	}
	if patch.PrivateCall != nil {
		next.PrivateCall = patch.PrivateCall
	}
	if patch.Publishers != nil {
		next.Publishers = *patch.Publishers
	}
	if patch.Subscribers != nil {
		next.Subscribers = *patch.Subscribers
	}
	if patch.Participants != nil {
		next.Participants = patch.Participants
	}
	if patch.ActiveFans != nil {
		next.ActiveFans = *patch.ActiveFans
	}
	if patch.Chats != nil {
		next.Chats = patch.Chats
	}
	if patch.StageCountdown != nil {
		next.StageCountdown = *patch.StageCountdown
	}
	if patch.Viewers != nil {
		next.Viewers = *patch.Viewers
	}
	if patch.InteractiveLimit != nil {
		next.InteractiveLimit = *patch.InteractiveLimit
	}
	if patch.Archiving != nil {
		next.Archiving = *patch.Archiving
	}
	if patch.Reconnecting != nil {
		next.Reconnecting = *patch.Reconnecting
	}
	if patch.Disconnected != nil {
		next.Disconnected = *patch.Disconnected
	}
	if patch.ElapsedTime != nil {
		next.ElapsedTime = *patch.ElapsedTime
	}
	if patch.FanTransition != nil {
		next.FanTransition = *patch.FanTransition
	}
	return next
}
