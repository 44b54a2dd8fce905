// Package rules decides which guild alert rules apply to a battle.
package rules

import (
	"context"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// RuleSource provides the alert rules configured for a guild.
type RuleSource interface {
	GetAlertRulesByGuild(ctx context.Context, guildID string) ([]*storage.AlertRule, error)
}

// Matcher evaluates alert rules against concrete battles.
type Matcher struct {
	rules RuleSource
}

// NewMatcher creates a matcher backed by the given rule source.
func NewMatcher(rules RuleSource) *Matcher {
	return &Matcher{rules: rules}
}

// Matches reports whether a rule applies to a battle and its boss. Every nil
// optional field on the rule is a wildcard; every non-nil field must equal
// the corresponding boss field. All present constraints must hold.
func Matches(rule *storage.AlertRule, battle *storage.Battle, boss *storage.Boss) bool {
	if rule.GuildID != battle.GuildID {
		return false
	}
	if rule.BossType != nil && *rule.BossType != string(boss.BossType) {
		return false
	}
	if rule.Tier != nil && *rule.Tier != boss.Tier {
		return false
	}
	if rule.IsMega != nil && *rule.IsMega != boss.IsMega {
		return false
	}
	if rule.IsShadow != nil && *rule.IsShadow != boss.IsShadow {
		return false
	}
	return true
}

// FindMatching returns every rule in the guild that matches the battle.
// Zero, one, or many rules may match; multiple roles may legitimately be
// notified for the same battle. The result is stable for a given rule set.
func (m *Matcher) FindMatching(ctx context.Context, guildID string, battle *storage.Battle, boss *storage.Boss) ([]*storage.AlertRule, error) {
	rules, err := m.rules.GetAlertRulesByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var matched []*storage.AlertRule
	for _, rule := range rules {
		if Matches(rule, battle, boss) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}
