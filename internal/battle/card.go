package battle

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
	"github.com/captbunzo/rotom-bot-sub001/internal/token"
)

// Embed colors per battle status.
var statusColors = map[storage.BattleStatus]int{
	storage.BattleStatusPlanning:  0x3498DB, // blue
	storage.BattleStatusStarted:   0xF1C40F, // yellow
	storage.BattleStatusCompleted: 0x2ECC71, // green
	storage.BattleStatusFailed:    0xE74C3C, // red
	storage.BattleStatusCancelled: 0x95A5A6, // grey
}

var statusLabels = map[storage.BattleStatus]string{
	storage.BattleStatusPlanning:  "Planning",
	storage.BattleStatusStarted:   "Started",
	storage.BattleStatusCompleted: "Completed",
	storage.BattleStatusFailed:    "Failed",
	storage.BattleStatusCancelled: "Cancelled",
}

var memberStatusEmoji = map[storage.MemberStatus]string{
	storage.MemberStatusJoined:      "🙋",
	storage.MemberStatusCompleted:   "✅",
	storage.MemberStatusFailed:      "❌",
	storage.MemberStatusNotReceived: "📪",
}

// DisplayName renders a boss name with its variant prefixes and form.
func DisplayName(boss *storage.Boss) string {
	name := boss.Name
	if boss.IsMega {
		name = "Mega " + name
	}
	if boss.IsShadow {
		name = "Shadow " + name
	}
	if boss.Form != "" {
		name = fmt.Sprintf("%s (%s)", name, boss.Form)
	}
	return name
}

// bossTitle renders the card title line for a boss.
func bossTitle(boss *storage.Boss) string {
	switch boss.BossType {
	case storage.BossTypeDynamax:
		return fmt.Sprintf("Dynamax Battle — %s", DisplayName(boss))
	case storage.BossTypeGigantamax:
		return fmt.Sprintf("Gigantamax Battle — %s", DisplayName(boss))
	default:
		return fmt.Sprintf("Tier %d Raid — %s", boss.Tier, DisplayName(boss))
	}
}

// buildCard renders the announcement embed and the control set for a
// battle's current status. Terminal battles carry no controls.
func buildCard(battle *storage.Battle, boss *storage.Boss, members []*storage.BattleMember, names map[string]string) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	embed := &discordgo.MessageEmbed{
		Title: bossTitle(boss),
		Color: statusColors[battle.Status],
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Host",
				Value:  userLabel(battle.HostID, names),
				Inline: true,
			},
			{
				Name:   "Status",
				Value:  statusLabels[battle.Status],
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Battle #%d", battle.ID),
		},
	}

	if boss.IsShinyable {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Shiny",
			Value:  "✨ Can be shiny",
			Inline: true,
		})
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Trainers (%d)", len(members)),
		Value: memberList(members, names),
	})

	components, err := buildControls(battle.Status)
	if err != nil {
		return nil, nil, err
	}
	return embed, components, nil
}

func userLabel(discordID string, names map[string]string) string {
	if name, ok := names[discordID]; ok {
		return fmt.Sprintf("<@%s> (%s)", discordID, name)
	}
	return fmt.Sprintf("<@%s>", discordID)
}

func memberList(members []*storage.BattleMember, names map[string]string) string {
	if len(members) == 0 {
		return "No one has joined yet."
	}

	var sb strings.Builder
	for _, m := range members {
		sb.WriteString(fmt.Sprintf("%s %s\n", memberStatusEmoji[m.Status], userLabel(m.DiscordID, names)))
	}
	return sb.String()
}

// buildControls returns the button row for a battle status.
func buildControls(status storage.BattleStatus) ([]discordgo.MessageComponent, error) {
	type spec struct {
		label  string
		action string
		style  discordgo.ButtonStyle
		emoji  string
	}

	var specs []spec
	switch status {
	case storage.BattleStatusPlanning:
		specs = []spec{
			{"Join", ActionJoin, discordgo.PrimaryButton, "🙋"},
			{"Leave", ActionLeave, discordgo.SecondaryButton, ""},
			{"Start", ActionStart, discordgo.SuccessButton, "⚔️"},
			{"Cancel", ActionCancel, discordgo.DangerButton, ""},
		}
	case storage.BattleStatusStarted:
		specs = []spec{
			{"Won", ActionWon, discordgo.SuccessButton, "✅"},
			{"Failed", ActionFailed, discordgo.DangerButton, "❌"},
			{"Not Received", ActionNotReceived, discordgo.SecondaryButton, "📪"},
			{"Cancel", ActionCancel, discordgo.DangerButton, ""},
		}
	default:
		// Terminal: strip all controls.
		return []discordgo.MessageComponent{}, nil
	}

	buttons := make([]discordgo.MessageComponent, 0, len(specs))
	for _, s := range specs {
		customID, err := token.Encode(token.Token{Component: ComponentName, Action: s.action})
		if err != nil {
			return nil, fmt.Errorf("failed to encode button token: %w", err)
		}

		btn := discordgo.Button{
			Label:    s.label,
			Style:    s.style,
			CustomID: customID,
		}
		if s.emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: s.emoji}
		}
		buttons = append(buttons, btn)
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}, nil
}
