// Package battle owns the raid battle lifecycle: the battle and member
// state machines, the actor rules deciding who may trigger which
// transition, announcement card rendering, and alert fan-out.
package battle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// Store is the persistence surface the coordinator needs.
type Store interface {
	GetBoss(ctx context.Context, id int64) (*storage.Boss, error)
	CreateBattle(ctx context.Context, b *storage.Battle) error
	GetBattle(ctx context.Context, id int64) (*storage.Battle, error)
	GetBattleByMessage(ctx context.Context, messageID string) (*storage.Battle, error)
	UpdateBattleStatus(ctx context.Context, id int64, status storage.BattleStatus) error
	SetBattleMessage(ctx context.Context, id int64, channelID, messageID string) error
	UpsertMember(ctx context.Context, m *storage.BattleMember) error
	GetMember(ctx context.Context, battleID int64, discordID string) (*storage.BattleMember, error)
	DeleteMember(ctx context.Context, battleID int64, discordID string) error
	GetMembersByBattle(ctx context.Context, battleID int64) ([]*storage.BattleMember, error)
	GetTrainer(ctx context.Context, discordID string) (*storage.Trainer, error)
}

// RuleFinder returns the alert rules matching a newly created battle.
type RuleFinder interface {
	FindMatching(ctx context.Context, guildID string, battle *storage.Battle, boss *storage.Boss) ([]*storage.AlertRule, error)
}

// Messenger is the slice of the Discord session used for channel messages.
// *discordgo.Session satisfies it.
type Messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Coordinator advances battles and battle members through their lifecycles.
// All collaborators are injected; the coordinator holds no ambient globals.
type Coordinator struct {
	store  Store
	alerts RuleFinder
	msg    Messenger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(store Store, alerts RuleFinder, msg Messenger) *Coordinator {
	return &Coordinator{store: store, alerts: alerts, msg: msg}
}

// Host creates a battle in Planning, posts its announcement card, and fans
// out matching alerts.
func (c *Coordinator) Host(ctx context.Context, guildID, channelID, hostID string, bossID int64) (*storage.Battle, error) {
	boss, err := c.store.GetBoss(ctx, bossID)
	if err != nil {
		return nil, fmt.Errorf("failed to load boss %d: %w", bossID, err)
	}

	battle := &storage.Battle{
		BossID:    boss.ID,
		HostID:    hostID,
		GuildID:   guildID,
		ChannelID: channelID,
		Status:    storage.BattleStatusPlanning,
	}
	if err := c.store.CreateBattle(ctx, battle); err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}

	embed, components, err := buildCard(battle, boss, nil, c.trainerNames(ctx, battle, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to build battle card: %w", err)
	}

	msg, err := c.msg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post battle card: %w", err)
	}

	if err := c.store.SetBattleMessage(ctx, battle.ID, channelID, msg.ID); err != nil {
		return nil, fmt.Errorf("failed to record battle message: %w", err)
	}
	battle.MessageID = msg.ID

	c.announce(ctx, battle, boss)

	return battle, nil
}

// announce notifies every matching alert rule about a new battle. Rule-level
// failures are logged and skipped; announcements are best-effort.
func (c *Coordinator) announce(ctx context.Context, battle *storage.Battle, boss *storage.Boss) {
	matched, err := c.alerts.FindMatching(ctx, battle.GuildID, battle, boss)
	if err != nil {
		slog.Error("Failed to match alert rules", "battleID", battle.ID, "error", err)
		return
	}

	for _, rule := range matched {
		channelID := battle.ChannelID
		if rule.ChannelID != nil && *rule.ChannelID != "" {
			channelID = *rule.ChannelID
		}

		content := fmt.Sprintf("<@&%s> A %s battle against **%s** is forming! %s",
			rule.RoleID, boss.BossType, DisplayName(boss), battle.MessageLink())
		if _, err := c.msg.ChannelMessageSend(channelID, content); err != nil {
			slog.Error("Failed to send alert", "battleID", battle.ID, "ruleID", rule.ID, "error", err)
			continue
		}
		slog.Info("Sent battle alert", "battleID", battle.ID, "ruleID", rule.ID, "roleID", rule.RoleID)
	}
}

// Join adds a non-host participant to a battle.
func (c *Coordinator) Join(ctx context.Context, battle *storage.Battle, userID string) error {
	if IsTerminal(battle.Status) {
		return errAlreadyResolved(ActionJoin, battle.Status)
	}
	if userID == battle.HostID {
		return &InvalidTransitionError{Action: ActionJoin, Status: battle.Status,
			Reason: "You are hosting this battle, no need to join it."}
	}

	member := &storage.BattleMember{
		BattleID:  battle.ID,
		DiscordID: userID,
		Status:    storage.MemberStatusJoined,
	}
	if err := c.store.UpsertMember(ctx, member); err != nil {
		return fmt.Errorf("failed to join battle: %w", err)
	}

	c.refresh(ctx, battle)
	return nil
}

// Leave removes a participant from a battle.
func (c *Coordinator) Leave(ctx context.Context, battle *storage.Battle, userID string) error {
	if IsTerminal(battle.Status) {
		return errAlreadyResolved(ActionLeave, battle.Status)
	}
	if userID == battle.HostID {
		return &InvalidTransitionError{Action: ActionLeave, Status: battle.Status,
			Reason: "The host cannot leave their own battle. Use Cancel to call it off."}
	}

	if err := c.store.DeleteMember(ctx, battle.ID, userID); err != nil {
		return fmt.Errorf("failed to leave battle: %w", err)
	}

	c.refresh(ctx, battle)
	return nil
}

// Start moves a battle from Planning to Started. Host only.
func (c *Coordinator) Start(ctx context.Context, battle *storage.Battle, invokerID string) error {
	if invokerID != battle.HostID {
		return &InvalidTransitionError{Action: ActionStart, Status: battle.Status,
			Reason: "Only the host can start the battle."}
	}
	return c.transition(ctx, battle, storage.BattleStatusStarted, ActionStart)
}

// ReportWon records a victory. For the host this completes the battle; for
// a member it marks only that member's own outcome — the same control
// targets a different entity depending on who clicked it.
func (c *Coordinator) ReportWon(ctx context.Context, battle *storage.Battle, invokerID string) error {
	if invokerID == battle.HostID {
		return c.transition(ctx, battle, storage.BattleStatusCompleted, ActionWon)
	}
	return c.reportMemberOutcome(ctx, battle, invokerID, storage.MemberStatusCompleted, ActionWon)
}

// ReportFailed records a defeat, host or member, mirroring ReportWon.
func (c *Coordinator) ReportFailed(ctx context.Context, battle *storage.Battle, invokerID string) error {
	if invokerID == battle.HostID {
		return c.transition(ctx, battle, storage.BattleStatusFailed, ActionFailed)
	}
	return c.reportMemberOutcome(ctx, battle, invokerID, storage.MemberStatusFailed, ActionFailed)
}

// ReportNotReceived records that a member never received the invite. It is
// member-only: the host sends invites rather than receiving one.
func (c *Coordinator) ReportNotReceived(ctx context.Context, battle *storage.Battle, invokerID string) error {
	if invokerID == battle.HostID {
		return &InvalidTransitionError{Action: ActionNotReceived, Status: battle.Status,
			Reason: "You are hosting this battle, so there is no invite for you to receive."}
	}
	return c.reportMemberOutcome(ctx, battle, invokerID, storage.MemberStatusNotReceived, ActionNotReceived)
}

// reportMemberOutcome mutates one member's own row, never the battle.
func (c *Coordinator) reportMemberOutcome(ctx context.Context, battle *storage.Battle, userID string, status storage.MemberStatus, action string) error {
	if IsTerminal(battle.Status) {
		return errAlreadyResolved(action, battle.Status)
	}

	if _, err := c.store.GetMember(ctx, battle.ID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &InvalidTransitionError{Action: action, Status: battle.Status,
				Reason: "You have not joined this battle yet."}
		}
		return fmt.Errorf("failed to load battle member: %w", err)
	}

	member := &storage.BattleMember{BattleID: battle.ID, DiscordID: userID, Status: status}
	if err := c.store.UpsertMember(ctx, member); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	c.refresh(ctx, battle)
	return nil
}

// Cancel calls off a battle. Host only. Every current member is pinged that
// the battle was called off; members that cannot be resolved are skipped
// without aborting the rest.
func (c *Coordinator) Cancel(ctx context.Context, battle *storage.Battle, invokerID string) error {
	if invokerID != battle.HostID {
		return &InvalidTransitionError{Action: ActionCancel, Status: battle.Status,
			Reason: "Only the host can cancel the battle."}
	}

	// Best-effort snapshot taken before the transition; a member leaving
	// mid-cancel may or may not be pinged.
	members, err := c.store.GetMembersByBattle(ctx, battle.ID)
	if err != nil {
		slog.Error("Failed to snapshot members for cancel ping", "battleID", battle.ID, "error", err)
		members = nil
	}

	if err := c.transition(ctx, battle, storage.BattleStatusCancelled, ActionCancel); err != nil {
		return err
	}

	c.pingCancelled(ctx, battle, members)
	return nil
}

// pingCancelled notifies the member snapshot that the battle was called off.
func (c *Coordinator) pingCancelled(ctx context.Context, battle *storage.Battle, members []*storage.BattleMember) {
	if len(members) == 0 {
		return
	}

	bossName := "the boss"
	if boss, err := c.store.GetBoss(ctx, battle.BossID); err == nil {
		bossName = DisplayName(boss)
	}

	mentions := make([]string, 0, len(members))
	for _, m := range members {
		if _, err := c.store.GetMember(ctx, battle.ID, m.DiscordID); err != nil {
			// Member no longer resolvable; skip, keep pinging the rest.
			slog.Warn("Skipping unresolvable member in cancel ping",
				"battleID", battle.ID, "discordID", m.DiscordID, "error", err)
			continue
		}
		mentions = append(mentions, fmt.Sprintf("<@%s>", m.DiscordID))
	}
	if len(mentions) == 0 {
		return
	}

	content := fmt.Sprintf("The battle against **%s** was cancelled by the host. %s",
		bossName, strings.Join(mentions, " "))
	if _, err := c.msg.ChannelMessageSend(battle.ChannelID, content); err != nil {
		slog.Error("Failed to send cancel ping", "battleID", battle.ID, "error", err)
	}
}

// transition applies one battle-status change and re-renders the card.
func (c *Coordinator) transition(ctx context.Context, battle *storage.Battle, to storage.BattleStatus, action string) error {
	if IsTerminal(battle.Status) {
		return errAlreadyResolved(action, battle.Status)
	}
	if !CanTransition(battle.Status, to) {
		return &InvalidTransitionError{Action: action, Status: battle.Status}
	}

	if err := c.store.UpdateBattleStatus(ctx, battle.ID, to); err != nil {
		return fmt.Errorf("failed to update battle status: %w", err)
	}
	battle.Status = to

	c.refresh(ctx, battle)
	return nil
}

// refresh re-renders the announcement card in place. Render failures are
// logged, not returned: the state change has already been applied.
func (c *Coordinator) refresh(ctx context.Context, battle *storage.Battle) {
	if battle.MessageID == "" {
		return
	}

	boss, err := c.store.GetBoss(ctx, battle.BossID)
	if err != nil {
		slog.Error("Failed to load boss for card refresh", "battleID", battle.ID, "error", err)
		return
	}

	members, err := c.store.GetMembersByBattle(ctx, battle.ID)
	if err != nil {
		slog.Error("Failed to load members for card refresh", "battleID", battle.ID, "error", err)
		return
	}

	embed, components, err := buildCard(battle, boss, members, c.trainerNames(ctx, battle, members))
	if err != nil {
		slog.Error("Failed to build battle card", "battleID", battle.ID, "error", err)
		return
	}

	edit := discordgo.NewMessageEdit(battle.ChannelID, battle.MessageID)
	edit.Embeds = &[]*discordgo.MessageEmbed{embed}
	edit.Components = &components
	if _, err := c.msg.ChannelMessageEditComplex(edit); err != nil {
		slog.Error("Failed to update battle card", "battleID", battle.ID, "error", err)
	}
}

// trainerNames looks up known trainer display names for the host and
// members. Missing profiles are fine; the card falls back to mentions.
func (c *Coordinator) trainerNames(ctx context.Context, battle *storage.Battle, members []*storage.BattleMember) map[string]string {
	names := make(map[string]string)

	lookup := func(discordID string) {
		t, err := c.store.GetTrainer(ctx, discordID)
		if err != nil {
			return
		}
		if t.DisplayName != "" {
			names[discordID] = t.DisplayName
		}
	}

	lookup(battle.HostID)
	for _, m := range members {
		lookup(m.DiscordID)
	}
	return names
}
