package bot

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/battle"
	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// invokerID returns the Discord user ID behind an interaction, whether it
// arrived from a guild or a DM.
func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// respondEphemeral sends a private reply visible only to the invoker.
func respondEphemeral(s router.Responder, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// commandOptions indexes a command's options by name.
func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	indexed := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		indexed[opt.Name] = opt
	}
	return indexed
}

// respondBossChoices answers an autocomplete request with active bosses
// matching the focused option's partial value. Choice values carry the boss
// ID so Execute can skip the name search.
func respondBossChoices(ctx context.Context, s router.Responder, i *discordgo.InteractionCreate, repo *storage.Repository) error {
	var partial string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused {
			partial, _ = opt.Value.(string)
			break
		}
	}

	bosses, err := repo.SearchBossesByName(ctx, partial, 25)
	if err != nil {
		return err
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(bosses))
	for _, b := range bosses {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  bossChoiceLabel(b),
			Value: strconv.FormatInt(b.ID, 10),
		})
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
}

func bossChoiceLabel(b *storage.Boss) string {
	label := battle.DisplayName(b)
	switch b.BossType {
	case storage.BossTypeDynamax:
		label += " (Dynamax)"
	case storage.BossTypeGigantamax:
		label += " (Gigantamax)"
	default:
		label += " (Tier " + strconv.Itoa(b.Tier) + ")"
	}
	return label
}
