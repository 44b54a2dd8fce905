package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/battle"
	"github.com/captbunzo/rotom-bot-sub001/internal/links"
	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// whereisCommand looks up the best reference link for a boss.
type whereisCommand struct {
	repo     *storage.Repository
	resolver *links.Resolver
}

func (c *whereisCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "whereis",
		Description: "Find the reference page for a boss",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "boss",
				Description:  "The boss to look up",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

func (c *whereisCommand) Execute(s router.Responder, i *discordgo.InteractionCreate) error {
	ctx := context.Background()
	input := i.ApplicationCommandData().Options[0].StringValue()

	boss, err := c.findBoss(ctx, input)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return respondEphemeral(s, i, fmt.Sprintf("No boss matches `%s`. Pick one from the suggestions.", input))
		}
		return err
	}

	query := links.Query{
		TemplateID:       boss.TemplateID,
		CreatureID:       boss.CreatureID,
		IsMega:           boss.IsMega,
		IsSpecialVariant: boss.IsShadow || boss.BossType != storage.BossTypeRaid,
	}

	candidate, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to resolve link: %w", err)
	}
	if candidate == nil {
		return respondEphemeral(s, i, fmt.Sprintf("No reference link found for **%s**.", battle.DisplayName(boss)))
	}

	title := candidate.Title
	if title == "" {
		title = battle.DisplayName(boss)
	}
	return respondEphemeral(s, i, fmt.Sprintf("**%s**\n%s", title, candidate.URL))
}

func (c *whereisCommand) Autocomplete(s router.Responder, i *discordgo.InteractionCreate) error {
	return respondBossChoices(context.Background(), s, i, c.repo)
}

// findBoss resolves the option value: a boss ID from autocomplete, or a
// free-text name that must match exactly one active boss.
func (c *whereisCommand) findBoss(ctx context.Context, input string) (*storage.Boss, error) {
	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		return c.repo.GetBoss(ctx, id)
	}

	bosses, err := c.repo.SearchBossesByName(ctx, input, 2)
	if err != nil {
		return nil, err
	}
	if len(bosses) != 1 {
		return nil, storage.ErrNotFound
	}
	return bosses[0], nil
}
