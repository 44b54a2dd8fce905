package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/battle"
	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// battleButtons routes battle card button clicks to the coordinator. The
// battle is recovered from the message the click arrived on; the token only
// names the action.
type battleButtons struct {
	repo  *storage.Repository
	coord *battle.Coordinator
}

func (h *battleButtons) HandleButton(s router.Responder, i *discordgo.InteractionCreate, action string) error {
	ctx := context.Background()

	b, err := h.repo.GetBattleByMessage(ctx, i.Message.ID)
	if err != nil {
		// No battle behind this message; nothing to recover against.
		return fmt.Errorf("failed to locate battle for message %s: %w", i.Message.ID, err)
	}

	user := invokerID(i)

	var (
		actErr       error
		confirmation string
	)
	switch action {
	case battle.ActionJoin:
		actErr = h.coord.Join(ctx, b, user)
		confirmation = "You joined the battle!"
	case battle.ActionLeave:
		actErr = h.coord.Leave(ctx, b, user)
		confirmation = "You left the battle."
	case battle.ActionStart:
		actErr = h.coord.Start(ctx, b, user)
		confirmation = "Battle started. Good luck!"
	case battle.ActionWon:
		actErr = h.coord.ReportWon(ctx, b, user)
		confirmation = "Victory recorded!"
	case battle.ActionFailed:
		actErr = h.coord.ReportFailed(ctx, b, user)
		confirmation = "Defeat recorded. Better luck next time."
	case battle.ActionNotReceived:
		actErr = h.coord.ReportNotReceived(ctx, b, user)
		confirmation = "Recorded that the invite never arrived."
	case battle.ActionCancel:
		actErr = h.coord.Cancel(ctx, b, user)
		confirmation = "Battle cancelled."
	default:
		return fmt.Errorf("unknown battle action %q", action)
	}

	// Rejections from the state machine become a private explanation, not
	// a generic failure.
	var invalid *battle.InvalidTransitionError
	if errors.As(actErr, &invalid) {
		return respondEphemeral(s, i, invalid.Error())
	}
	if actErr != nil {
		return actErr
	}

	return respondEphemeral(s, i, confirmation)
}
