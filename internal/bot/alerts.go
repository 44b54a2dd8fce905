package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// alertsCommand manages the guild's alert rules: which battles ping which
// role, in which channel.
type alertsCommand struct {
	repo *storage.Repository
}

func (c *alertsCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "alerts",
		Description: "Manage raid alert rules for this server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add an alert rule (empty filters match every battle)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "The role to ping",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to send alerts to (defaults to the battle's channel)",
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildText,
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "boss_type",
						Description: "Only battles of this type",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Raid", Value: string(storage.BossTypeRaid)},
							{Name: "Dynamax", Value: string(storage.BossTypeDynamax)},
							{Name: "Gigantamax", Value: string(storage.BossTypeGigantamax)},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "tier",
						Description: "Only bosses of this tier",
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "mega",
						Description: "Only mega (or only non-mega) bosses",
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "shadow",
						Description: "Only shadow (or only non-shadow) bosses",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove an alert rule",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "id",
						Description: "The rule ID shown by /alerts list",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List this server's alert rules",
			},
		},
	}
}

func (c *alertsCommand) Execute(s router.Responder, i *discordgo.InteractionCreate) error {
	ctx := context.Background()
	sub := i.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "add":
		return c.add(ctx, s, i, sub)
	case "remove":
		return c.remove(ctx, s, i, sub)
	case "list":
		return c.list(ctx, s, i)
	default:
		return fmt.Errorf("unknown alerts subcommand %q", sub.Name)
	}
}

func (c *alertsCommand) add(ctx context.Context, s router.Responder, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	opts := commandOptions(sub.Options)

	rule := &storage.AlertRule{
		GuildID: i.GuildID,
		RoleID:  opts["role"].RoleValue(nil, "").ID,
	}

	if opt, ok := opts["channel"]; ok {
		channelID := opt.ChannelValue(nil).ID
		rule.ChannelID = &channelID
	}
	if opt, ok := opts["boss_type"]; ok {
		bossType := opt.StringValue()
		rule.BossType = &bossType
	}
	if opt, ok := opts["tier"]; ok {
		tier := int(opt.IntValue())
		rule.Tier = &tier
	}
	if opt, ok := opts["mega"]; ok {
		mega := opt.BoolValue()
		rule.IsMega = &mega
	}
	if opt, ok := opts["shadow"]; ok {
		shadow := opt.BoolValue()
		rule.IsShadow = &shadow
	}

	if err := c.repo.CreateAlertRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	return respondEphemeral(s, i, fmt.Sprintf("Alert rule #%d added: %s", rule.ID, describeRule(rule)))
}

func (c *alertsCommand) remove(ctx context.Context, s router.Responder, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	id := sub.Options[0].IntValue()

	if err := c.repo.DeleteAlertRule(ctx, id, i.GuildID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return respondEphemeral(s, i, fmt.Sprintf("There is no alert rule #%d in this server.", id))
		}
		return fmt.Errorf("failed to remove alert rule: %w", err)
	}

	return respondEphemeral(s, i, fmt.Sprintf("Alert rule #%d removed.", id))
}

func (c *alertsCommand) list(ctx context.Context, s router.Responder, i *discordgo.InteractionCreate) error {
	alertRules, err := c.repo.GetAlertRulesByGuild(ctx, i.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	if len(alertRules) == 0 {
		return respondEphemeral(s, i, "No alert rules are configured.\nUse `/alerts add` to create one!")
	}

	var sb strings.Builder
	sb.WriteString("**Alert Rules:**\n\n")
	for _, rule := range alertRules {
		sb.WriteString(fmt.Sprintf("`#%d` %s\n", rule.ID, describeRule(rule)))
	}

	return respondEphemeral(s, i, sb.String())
}

// describeRule renders a rule's filters; absent filters are wildcards.
func describeRule(rule *storage.AlertRule) string {
	parts := []string{fmt.Sprintf("ping <@&%s>", rule.RoleID)}

	if rule.ChannelID != nil {
		parts = append(parts, fmt.Sprintf("in <#%s>", *rule.ChannelID))
	}
	if rule.BossType != nil {
		parts = append(parts, fmt.Sprintf("type %s", *rule.BossType))
	}
	if rule.Tier != nil {
		parts = append(parts, fmt.Sprintf("tier %d", *rule.Tier))
	}
	if rule.IsMega != nil {
		if *rule.IsMega {
			parts = append(parts, "mega only")
		} else {
			parts = append(parts, "non-mega only")
		}
	}
	if rule.IsShadow != nil {
		if *rule.IsShadow {
			parts = append(parts, "shadow only")
		} else {
			parts = append(parts, "non-shadow only")
		}
	}

	if len(parts) == 1 {
		parts = append(parts, "for every battle")
	}
	return strings.Join(parts, ", ")
}
