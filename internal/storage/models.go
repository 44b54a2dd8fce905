package storage

import (
	"fmt"
	"time"
)

// BossType identifies the kind of raid a boss appears in.
type BossType string

const (
	BossTypeRaid       BossType = "raid"
	BossTypeDynamax    BossType = "dynamax"
	BossTypeGigantamax BossType = "gigantamax"
)

// BattleStatus is the lifecycle state of a hosted battle.
// Completed, Failed and Cancelled are terminal.
type BattleStatus string

const (
	BattleStatusPlanning  BattleStatus = "planning"
	BattleStatusStarted   BattleStatus = "started"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusFailed    BattleStatus = "failed"
	BattleStatusCancelled BattleStatus = "cancelled"
)

// MemberStatus is one participant's personal outcome within a battle,
// independent of the battle's own status.
type MemberStatus string

const (
	MemberStatusJoined      MemberStatus = "joined"
	MemberStatusCompleted   MemberStatus = "completed"
	MemberStatusFailed      MemberStatus = "failed"
	MemberStatusNotReceived MemberStatus = "not_received"
)

// Boss is a raid-able creature instance. Rows are created and updated by the
// reference-data loader; battle handling treats them as read-only.
type Boss struct {
	ID          int64
	Name        string
	BossType    BossType
	CreatureID  int64
	Form        string // empty for the default form
	Tier        int
	IsMega      bool
	IsShadow    bool
	IsActive    bool
	IsShinyable bool
	TemplateID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Battle is one hosted raid session against a boss.
// MessageID and ChannelID are set once the announcement card is posted;
// MessageID is the back-reference used to find the battle from a component
// callback on that message.
type Battle struct {
	ID        int64
	BossID    int64
	HostID    string // Discord user ID
	GuildID   string
	ChannelID string
	MessageID string
	Status    BattleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageLink returns the jump link to the battle's announcement card, or
// an empty string before the card has been posted.
func (b *Battle) MessageLink() string {
	if b.MessageID == "" {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", b.GuildID, b.ChannelID, b.MessageID)
}

// BattleMember is one non-host participant's relationship to a battle,
// keyed by (BattleID, DiscordID). Only that participant mutates it.
type BattleMember struct {
	BattleID  int64
	DiscordID string
	Status    MemberStatus
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// AlertRule is a guild-scoped notification subscription. Every optional
// (pointer) field is a wildcard: nil matches any value of that field, so a
// rule with all optional fields nil matches every battle in its guild.
type AlertRule struct {
	ID        int64
	GuildID   string
	RoleID    string
	ChannelID *string
	BossType  *string
	Tier      *int
	IsMega    *bool
	IsShadow  *bool
	CreatedAt time.Time
}

// LinkCandidate is a reference-link record for a creature/variant at one
// specificity level. TemplateID may be empty for name-level entries.
type LinkCandidate struct {
	ID               int64
	CreatureID       int64
	TemplateID       string
	Form             string
	IsMega           bool
	IsSpecialVariant bool
	URL              string
	Title            string
}

// LinkCriteria selects link candidates at one specificity level. The caller
// chooses the lookup key explicitly: ByTemplate matches on TemplateID,
// otherwise matching is on CreatureID ignoring form.
type LinkCriteria struct {
	ByTemplate       bool
	TemplateID       string
	CreatureID       int64
	IsMega           bool
	IsSpecialVariant bool
}

// Trainer stores per-user profile details shown on battle cards and pings.
type Trainer struct {
	DiscordID   string
	DisplayName string
	TrainerCode string
	UpdatedAt   time.Time
}
