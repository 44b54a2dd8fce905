package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/battle"
	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
	"github.com/captbunzo/rotom-bot-sub001/internal/token"
)

// raidCommand hosts a new raid battle. It also owns the boss-picker select
// menu shown when a free-text boss name is ambiguous.
type raidCommand struct {
	repo  *storage.Repository
	coord *battle.Coordinator
}

func (c *raidCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "raid",
		Description: "Host a raid battle for others to join",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "boss",
				Description:  "The boss to battle",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

func (c *raidCommand) Execute(s router.Responder, i *discordgo.InteractionCreate) error {
	ctx := context.Background()
	input := i.ApplicationCommandData().Options[0].StringValue()

	// Autocomplete submits the boss ID directly; free text falls back to a
	// name search.
	if bossID, err := strconv.ParseInt(input, 10, 64); err == nil {
		return c.host(ctx, s, i, bossID)
	}

	bosses, err := c.repo.SearchBossesByName(ctx, input, 25)
	if err != nil {
		return fmt.Errorf("failed to search bosses: %w", err)
	}

	switch len(bosses) {
	case 0:
		return respondEphemeral(s, i, fmt.Sprintf("No active boss matches `%s`.", input))
	case 1:
		return c.host(ctx, s, i, bosses[0].ID)
	}

	return c.respondBossPicker(s, i, bosses)
}

func (c *raidCommand) Autocomplete(s router.Responder, i *discordgo.InteractionCreate) error {
	return respondBossChoices(context.Background(), s, i, c.repo)
}

// host creates the battle and posts the card, then confirms privately.
func (c *raidCommand) host(ctx context.Context, s router.Responder, i *discordgo.InteractionCreate, bossID int64) error {
	b, err := c.coord.Host(ctx, i.GuildID, i.ChannelID, invokerID(i), bossID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return respondEphemeral(s, i, "That boss does not exist. Pick one from the suggestions.")
		}
		return err
	}

	return respondEphemeral(s, i, fmt.Sprintf("Battle #%d posted! Trainers can join from the card above.", b.ID))
}

// respondBossPicker answers an ambiguous boss name with a select menu.
func (c *raidCommand) respondBossPicker(s router.Responder, i *discordgo.InteractionCreate, bosses []*storage.Boss) error {
	customID, err := token.Encode(token.Token{Component: battle.ComponentBossSelect, Action: "host"})
	if err != nil {
		return fmt.Errorf("failed to encode boss picker token: %w", err)
	}

	options := make([]discordgo.SelectMenuOption, 0, len(bosses))
	for _, b := range bosses {
		options = append(options, discordgo.SelectMenuOption{
			Label: bossChoiceLabel(b),
			Value: strconv.FormatInt(b.ID, 10),
		})
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Several bosses match that name. Which one are you hosting?",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    customID,
							Placeholder: "Pick a boss",
							Options:     options,
						},
					},
				},
			},
		},
	})
}

// HandleSelect receives the boss-picker submission and hosts the battle.
func (c *raidCommand) HandleSelect(s router.Responder, i *discordgo.InteractionCreate, action string, values []string) error {
	if action != "host" {
		return fmt.Errorf("unknown boss select action %q", action)
	}
	if len(values) != 1 {
		return fmt.Errorf("expected one selected boss, got %d", len(values))
	}

	bossID, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid boss id %q: %w", values[0], err)
	}

	return c.host(context.Background(), s, i, bossID)
}
