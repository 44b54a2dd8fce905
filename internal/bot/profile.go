package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
	"github.com/captbunzo/rotom-bot-sub001/internal/token"
)

const profileComponent = "profile"

// profileCommand opens the trainer profile modal and stores its submission.
type profileCommand struct {
	repo *storage.Repository
}

func (c *profileCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "profile",
		Description: "Set your trainer name and trainer code",
	}
}

func (c *profileCommand) Execute(s router.Responder, i *discordgo.InteractionCreate) error {
	customID, err := token.Encode(token.Token{Component: profileComponent, Action: "edit"})
	if err != nil {
		return fmt.Errorf("failed to encode profile token: %w", err)
	}

	// Prefill with the existing profile when there is one.
	var displayName, trainerCode string
	trainer, err := c.repo.GetTrainer(context.Background(), invokerID(i))
	if err == nil {
		displayName = trainer.DisplayName
		trainerCode = trainer.TrainerCode
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load trainer profile: %w", err)
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    "Trainer Profile",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  "display_name",
							Label:     "Trainer name",
							Style:     discordgo.TextInputShort,
							Required:  true,
							MaxLength: 50,
							Value:     displayName,
						},
					},
				},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  "trainer_code",
							Label:     "Trainer code (0000 0000 0000)",
							Style:     discordgo.TextInputShort,
							MaxLength: 20,
							Value:     trainerCode,
						},
					},
				},
			},
		},
	})
}

// HandleModal stores the submitted profile.
func (c *profileCommand) HandleModal(s router.Responder, i *discordgo.InteractionCreate, action string) error {
	if action != "edit" {
		return fmt.Errorf("unknown profile action %q", action)
	}

	data := i.ModalSubmitData()
	trainer := &storage.Trainer{
		DiscordID:   invokerID(i),
		DisplayName: modalValue(data, "display_name"),
		TrainerCode: modalValue(data, "trainer_code"),
	}

	if err := c.repo.UpsertTrainer(context.Background(), trainer); err != nil {
		return fmt.Errorf("failed to save trainer profile: %w", err)
	}

	return respondEphemeral(s, i, "Profile saved!")
}

// modalValue extracts one text input's value from a modal submission.
func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			input, ok := comp.(*discordgo.TextInput)
			if !ok {
				continue
			}
			if input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}
