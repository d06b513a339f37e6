package signal

import (
	"encoding/json"
	"log/slog"

	"stagecast/internal/broadcast"
	"stagecast/internal/media"
	"stagecast/internal/notify"
	"stagecast/internal/observability/metrics"
)

// Translator converts presence signals into reducer actions and media
// transport calls. Producer-only signals from other senders are dropped.
type Translator struct {
	Media    media.Controller
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Translate returns the reducer actions a signal maps to. Signals that only
// drive the media transport or the notification surface return no actions.
// Unknown signal types are counted and ignored, mirroring the reducer's
// permissive contract.
func (t Translator) Translate(event Event) []broadcast.Action {
	switch event.Type {
	case TypeGoLive:
		if !event.From.FromProducer() {
			return nil
		}
		metrics.Default().ObserveSignal(string(event.Type))
		return []broadcast.Action{broadcast.SetEventStatus{Status: broadcast.StatusLive}}
	case TypeFinishEvent:
		if !event.From.FromProducer() {
			return nil
		}
		metrics.Default().ObserveSignal(string(event.Type))
		return []broadcast.Action{broadcast.SetEventStatus{Status: broadcast.StatusClosed}}
	case TypeVideoOnOff:
		if !event.From.FromProducer() {
			return nil
		}
		metrics.Default().ObserveSignal(string(event.Type))
		var payload VideoPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.logDecodeError(event, err)
			return nil
		}
		if t.Media != nil {
			t.Media.ToggleLocalVideo(payload.Video == "on")
		}
		return nil
	case TypeMuteAudio:
		if !event.From.FromProducer() {
			return nil
		}
		metrics.Default().ObserveSignal(string(event.Type))
		var payload MutePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.logDecodeError(event, err)
			return nil
		}
		if t.Media != nil {
			t.Media.ToggleLocalAudio(payload.Mute == "off")
		}
		return nil
	case TypeChangeVolume:
		if !event.From.FromProducer() {
			return nil
		}
		metrics.Default().ObserveSignal(string(event.Type))
		var payload VolumePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.logDecodeError(event, err)
			return nil
		}
		if t.Media != nil {
			t.Media.ChangeVolume(broadcast.Role(payload.UserType), payload.Volume, true)
		}
		return nil
	case TypeNewBackstageFan:
		metrics.Default().ObserveSignal(string(event.Type))
		if t.Notifier != nil {
			t.Notifier.Info(notify.BackstageFanMessage)
		}
		return nil
	case TypeChatMessage, TypePrivateCall, TypeEndPrivateCall, TypeOpenChat:
		// Chat and private-call traffic arrives through dedicated producer
		// commands; the presence copies are acknowledged but not acted on.
		metrics.Default().ObserveSignal(string(event.Type))
		return nil
	default:
		metrics.Default().ObserveDroppedSignal()
		if t.Logger != nil {
			t.Logger.Debug("dropping unknown signal", "type", string(event.Type))
		}
		return nil
	}
}

func (t Translator) logDecodeError(event Event, err error) {
	if t.Logger != nil {
		t.Logger.Warn("signal payload decode failed", "type", string(event.Type), "error", err)
	}
}
