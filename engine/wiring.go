package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

func (e *Engine) wireEventHandlers() {
	// Picks: audit
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PickRecordedEvent).Event
		e.audit("pick", ev.ID, "recorded", "",
			fmt.Sprintf("line=%d tool=%d qty=%d", ev.DemandLineID, ev.ToolID, ev.QtyPicked), ev.PickedBy)
	}, EventPickRecorded)

	e.Events.SubscribeTypes(func(evt Event) {
		rec := evt.Payload.(PickUndoneEvent).Record
		e.audit("pick", rec.PickEventID, "undone",
			fmt.Sprintf("line=%d tool=%d qty=%d by=%s", rec.DemandLineID, rec.ToolID, rec.QtyPicked, rec.PickedBy), "", rec.UndoneBy)
	}, EventPickUndone)

	// Over-picks are audited against the demand line, not the pick.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OverPickEvent)
		w := ev.Warning
		e.audit("demand_line", w.DemandLineID, "over_pick",
			fmt.Sprintf("required=%d", w.Required), fmt.Sprintf("projected=%d excess=%d tool=%d", w.Projected, w.Excess(), w.ToolID), ev.Actor)
	}, EventOverPick)

	// Every rebuild replaces the shared read model in full.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LedgerRefreshedEvent)
		if ev.snapshot == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.partState.Replace(ctx, ev.snapshot.Parts, ev.snapshot.LoadedAt); err != nil {
			log.Error().Err(err).Msg("engine: part state cache is behind, serving local copy")
		}
	}, EventLedgerRefreshed)

	// Notices sent while disconnected were missed; catch up on reconnect.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		switch evt.Type {
		case EventMessagingConnected:
			log.Info().Msg("engine: " + ev.Detail)
			e.Invalidate("messaging reconnected")
		case EventMessagingDisconnected:
			log.Warn().Msg("engine: " + ev.Detail)
		}
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) audit(entityType string, entityID int64, action, oldValue, newValue, actor string) {
	if actor == "" {
		actor = "system"
	}
	if err := e.db.AppendAudit(entityType, entityID, action, oldValue, newValue, actor); err != nil {
		log.Error().Err(err).Str("entity", entityType).Int64("id", entityID).Str("action", action).Msg("engine: audit write failed")
	}
}
