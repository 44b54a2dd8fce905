package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bosses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(100) NOT NULL,
			boss_type VARCHAR(20) NOT NULL,
			creature_id INTEGER NOT NULL,
			form VARCHAR(50) NOT NULL DEFAULT '',
			tier INTEGER NOT NULL DEFAULT 1,
			is_mega INTEGER NOT NULL DEFAULT 0,
			is_shadow INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_shinyable INTEGER NOT NULL DEFAULT 0,
			template_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(template_id)
		)`,
		`CREATE TABLE IF NOT EXISTS battles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			boss_id INTEGER NOT NULL,
			host_id VARCHAR(20) NOT NULL,
			guild_id VARCHAR(20) NOT NULL,
			channel_id VARCHAR(20) NOT NULL DEFAULT '',
			message_id VARCHAR(20) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (boss_id) REFERENCES bosses(id)
		)`,
		`CREATE TABLE IF NOT EXISTS battle_members (
			battle_id INTEGER NOT NULL,
			discord_id VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (battle_id, discord_id),
			FOREIGN KEY (battle_id) REFERENCES battles(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id VARCHAR(20) NOT NULL,
			role_id VARCHAR(20) NOT NULL,
			channel_id VARCHAR(20),
			boss_type VARCHAR(20),
			tier INTEGER,
			is_mega INTEGER,
			is_shadow INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS link_candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			creature_id INTEGER NOT NULL,
			template_id VARCHAR(100) NOT NULL DEFAULT '',
			form VARCHAR(50) NOT NULL DEFAULT '',
			is_mega INTEGER NOT NULL DEFAULT 0,
			is_special_variant INTEGER NOT NULL DEFAULT 0,
			url VARCHAR(500) NOT NULL,
			title VARCHAR(200) NOT NULL DEFAULT '',
			UNIQUE(creature_id, template_id, form, is_mega, is_special_variant)
		)`,
		`CREATE TABLE IF NOT EXISTS trainers (
			discord_id VARCHAR(20) PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			trainer_code VARCHAR(20) NOT NULL DEFAULT '',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_battles_message ON battles(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_battles_guild ON battles(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_rules_guild ON alert_rules(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bosses_name ON bosses(name)`,
		`CREATE INDEX IF NOT EXISTS idx_link_candidates_creature ON link_candidates(creature_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Boss operations

// UpsertBoss inserts or updates a boss keyed by template ID.
func (r *Repository) UpsertBoss(ctx context.Context, b *Boss) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bosses (name, boss_type, creature_id, form, tier, is_mega, is_shadow, is_active, is_shinyable, template_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(template_id) DO UPDATE SET
			name = excluded.name,
			boss_type = excluded.boss_type,
			creature_id = excluded.creature_id,
			form = excluded.form,
			tier = excluded.tier,
			is_mega = excluded.is_mega,
			is_shadow = excluded.is_shadow,
			is_active = excluded.is_active,
			is_shinyable = excluded.is_shinyable,
			updated_at = CURRENT_TIMESTAMP`,
		b.Name, b.BossType, b.CreatureID, b.Form, b.Tier, b.IsMega, b.IsShadow, b.IsActive, b.IsShinyable, b.TemplateID,
	)
	if err != nil {
		return err
	}

	return r.db.QueryRowContext(ctx,
		`SELECT id FROM bosses WHERE template_id = ?`, b.TemplateID,
	).Scan(&b.ID)
}

const bossColumns = `id, name, boss_type, creature_id, form, tier, is_mega, is_shadow, is_active, is_shinyable, template_id, created_at, updated_at`

func scanBoss(row interface{ Scan(...any) error }) (*Boss, error) {
	b := &Boss{}
	err := row.Scan(&b.ID, &b.Name, &b.BossType, &b.CreatureID, &b.Form, &b.Tier,
		&b.IsMega, &b.IsShadow, &b.IsActive, &b.IsShinyable, &b.TemplateID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBoss finds a boss by ID.
func (r *Repository) GetBoss(ctx context.Context, id int64) (*Boss, error) {
	b, err := scanBoss(r.db.QueryRowContext(ctx,
		`SELECT `+bossColumns+` FROM bosses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// SearchBossesByName returns active bosses whose name matches the prefix,
// for autocomplete and ambiguous-name selection.
func (r *Repository) SearchBossesByName(ctx context.Context, prefix string, limit int) ([]*Boss, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bossColumns+` FROM bosses
		 WHERE is_active = 1 AND name LIKE ? ORDER BY name, tier LIMIT ?`,
		prefix+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bosses []*Boss
	for rows.Next() {
		b, err := scanBoss(rows)
		if err != nil {
			return nil, err
		}
		bosses = append(bosses, b)
	}
	return bosses, rows.Err()
}

// Battle operations

// CreateBattle inserts a new battle and assigns its ID.
func (r *Repository) CreateBattle(ctx context.Context, b *Battle) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO battles (boss_id, host_id, guild_id, channel_id, message_id, status) VALUES (?, ?, ?, ?, ?, ?)`,
		b.BossID, b.HostID, b.GuildID, b.ChannelID, b.MessageID, b.Status,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

const battleColumns = `id, boss_id, host_id, guild_id, channel_id, message_id, status, created_at, updated_at`

func scanBattle(row interface{ Scan(...any) error }) (*Battle, error) {
	b := &Battle{}
	err := row.Scan(&b.ID, &b.BossID, &b.HostID, &b.GuildID, &b.ChannelID, &b.MessageID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBattle finds a battle by ID.
func (r *Repository) GetBattle(ctx context.Context, id int64) (*Battle, error) {
	return scanBattle(r.db.QueryRowContext(ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = ?`, id))
}

// GetBattleByMessage finds the battle whose announcement card is the given
// message. This is how component callbacks recover battle identity.
func (r *Repository) GetBattleByMessage(ctx context.Context, messageID string) (*Battle, error) {
	return scanBattle(r.db.QueryRowContext(ctx,
		`SELECT `+battleColumns+` FROM battles WHERE message_id = ?`, messageID))
}

// UpdateBattleStatus sets a battle's status.
func (r *Repository) UpdateBattleStatus(ctx context.Context, id int64, status BattleStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE battles SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	return err
}

// SetBattleMessage records where the announcement card was posted.
func (r *Repository) SetBattleMessage(ctx context.Context, id int64, channelID, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE battles SET channel_id = ?, message_id = ?, updated_at = ? WHERE id = ?`,
		channelID, messageID, time.Now(), id,
	)
	return err
}

// Battle member operations

// UpsertMember creates or updates a participant's row for a battle.
func (r *Repository) UpsertMember(ctx context.Context, m *BattleMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO battle_members (battle_id, discord_id, status) VALUES (?, ?, ?)
		 ON CONFLICT(battle_id, discord_id) DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP`,
		m.BattleID, m.DiscordID, m.Status,
	)
	return err
}

// GetMember finds one participant's row.
func (r *Repository) GetMember(ctx context.Context, battleID int64, discordID string) (*BattleMember, error) {
	m := &BattleMember{}
	err := r.db.QueryRowContext(ctx,
		`SELECT battle_id, discord_id, status, joined_at, updated_at FROM battle_members WHERE battle_id = ? AND discord_id = ?`,
		battleID, discordID,
	).Scan(&m.BattleID, &m.DiscordID, &m.Status, &m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMember removes a participant from a battle.
func (r *Repository) DeleteMember(ctx context.Context, battleID int64, discordID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM battle_members WHERE battle_id = ? AND discord_id = ?`,
		battleID, discordID,
	)
	return err
}

// GetMembersByBattle returns all participants of a battle in join order.
func (r *Repository) GetMembersByBattle(ctx context.Context, battleID int64) ([]*BattleMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT battle_id, discord_id, status, joined_at, updated_at FROM battle_members WHERE battle_id = ? ORDER BY joined_at`,
		battleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*BattleMember
	for rows.Next() {
		m := &BattleMember{}
		if err := rows.Scan(&m.BattleID, &m.DiscordID, &m.Status, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Alert rule operations

// CreateAlertRule inserts a new alert rule and assigns its ID.
func (r *Repository) CreateAlertRule(ctx context.Context, rule *AlertRule) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_rules (guild_id, role_id, channel_id, boss_type, tier, is_mega, is_shadow) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.GuildID, rule.RoleID, rule.ChannelID, rule.BossType, rule.Tier, rule.IsMega, rule.IsShadow,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID = id
	return nil
}

// DeleteAlertRule removes a rule, scoped to its guild.
func (r *Repository) DeleteAlertRule(ctx context.Context, id int64, guildID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alert_rules WHERE id = ? AND guild_id = ?`,
		id, guildID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAlertRulesByGuild returns all alert rules configured for a guild.
func (r *Repository) GetAlertRulesByGuild(ctx context.Context, guildID string) ([]*AlertRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, role_id, channel_id, boss_type, tier, is_mega, is_shadow, created_at FROM alert_rules WHERE guild_id = ?`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*AlertRule
	for rows.Next() {
		rule := &AlertRule{}
		if err := rows.Scan(&rule.ID, &rule.GuildID, &rule.RoleID, &rule.ChannelID,
			&rule.BossType, &rule.Tier, &rule.IsMega, &rule.IsShadow, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Link candidate operations

// UpsertLinkCandidate inserts or updates a reference-link record.
func (r *Repository) UpsertLinkCandidate(ctx context.Context, c *LinkCandidate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO link_candidates (creature_id, template_id, form, is_mega, is_special_variant, url, title)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(creature_id, template_id, form, is_mega, is_special_variant) DO UPDATE SET
			url = excluded.url,
			title = excluded.title`,
		c.CreatureID, c.TemplateID, c.Form, c.IsMega, c.IsSpecialVariant, c.URL, c.Title,
	)
	return err
}

// FindLinkCandidates returns all candidates matching one specificity level.
func (r *Repository) FindLinkCandidates(ctx context.Context, crit LinkCriteria) ([]*LinkCandidate, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if crit.ByTemplate {
		rows, err = r.db.QueryContext(ctx,
			`SELECT id, creature_id, template_id, form, is_mega, is_special_variant, url, title
			 FROM link_candidates WHERE template_id = ? AND is_mega = ? AND is_special_variant = ?`,
			crit.TemplateID, crit.IsMega, crit.IsSpecialVariant,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT id, creature_id, template_id, form, is_mega, is_special_variant, url, title
			 FROM link_candidates WHERE creature_id = ? AND is_mega = ? AND is_special_variant = ?`,
			crit.CreatureID, crit.IsMega, crit.IsSpecialVariant,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*LinkCandidate
	for rows.Next() {
		c := &LinkCandidate{}
		if err := rows.Scan(&c.ID, &c.CreatureID, &c.TemplateID, &c.Form, &c.IsMega, &c.IsSpecialVariant, &c.URL, &c.Title); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// Trainer operations

// UpsertTrainer creates or updates a trainer profile.
func (r *Repository) UpsertTrainer(ctx context.Context, t *Trainer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trainers (discord_id, display_name, trainer_code) VALUES (?, ?, ?)
		 ON CONFLICT(discord_id) DO UPDATE SET
			display_name = excluded.display_name,
			trainer_code = excluded.trainer_code,
			updated_at = CURRENT_TIMESTAMP`,
		t.DiscordID, t.DisplayName, t.TrainerCode,
	)
	return err
}

// GetTrainer finds a trainer profile by Discord user ID.
func (r *Repository) GetTrainer(ctx context.Context, discordID string) (*Trainer, error) {
	t := &Trainer{}
	err := r.db.QueryRowContext(ctx,
		`SELECT discord_id, display_name, trainer_code, updated_at FROM trainers WHERE discord_id = ?`,
		discordID,
	).Scan(&t.DiscordID, &t.DisplayName, &t.TrainerCode, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
