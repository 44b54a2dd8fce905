package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/captbunzo/rotom-bot-sub001/internal/battle"
	"github.com/captbunzo/rotom-bot-sub001/internal/bossdata"
	"github.com/captbunzo/rotom-bot-sub001/internal/config"
	"github.com/captbunzo/rotom-bot-sub001/internal/links"
	"github.com/captbunzo/rotom-bot-sub001/internal/router"
	"github.com/captbunzo/rotom-bot-sub001/internal/rules"
	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// Bot represents the Discord bot instance
type Bot struct {
	config    *config.Config
	session   *discordgo.Session
	repo      *storage.Repository
	router    *router.Router
	refresher *bossdata.Refresher
	commands  []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Core collaborators, all explicitly injected
	matcher := rules.NewMatcher(repo)
	resolver := links.NewResolver(repo)
	coordinator := battle.NewCoordinator(repo, matcher, session)

	// Build the interaction router
	r := router.New()
	raid := &raidCommand{repo: repo, coord: coordinator}
	profile := &profileCommand{repo: repo}
	err = errors.Join(
		r.RegisterCommand(raid),
		r.RegisterCommand(&alertsCommand{repo: repo}),
		r.RegisterCommand(&whereisCommand{repo: repo, resolver: resolver}),
		r.RegisterCommand(profile),
		r.RegisterButton(battle.ComponentName, &battleButtons{repo: repo, coord: coordinator}),
		r.RegisterSelect(battle.ComponentBossSelect, raid),
		r.RegisterModal(profileComponent, profile),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	b := &Bot{
		config:  cfg,
		session: session,
		repo:    repo,
		router:  r,
	}

	if cfg.BossDataURL != "" {
		client := bossdata.NewClient(cfg.BossDataURL)
		b.refresher = bossdata.NewRefresher(client, repo, cfg.RefreshSchedule)
	}

	// Register gateway handlers
	session.AddHandler(r.HandleInteraction)
	session.AddHandler(func(s *discordgo.Session, ready *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(ready.Guilds))
	})

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the boss data refresher
	if b.refresher != nil {
		go func() {
			if err := b.refresher.Start(ctx); err != nil {
				slog.Error("Failed to start boss data refresher", "error", err)
			}
		}()
	} else {
		slog.Warn("BOSS_DATA_URL not set, boss data will not be refreshed")
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the refresher
	if b.refresher != nil {
		b.refresher.Stop()
	}

	// Remove registered commands (optional - comment out to keep commands)
	// b.removeCommands()

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	definitions := b.router.CommandDefinitions()
	registered := make([]*discordgo.ApplicationCommand, 0, len(definitions))

	for _, cmd := range definitions {
		created, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registered = append(registered, created)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registered
	slog.Info("Slash commands registered", "count", len(registered))
	return nil
}

// removeCommands removes all registered slash commands
func (b *Bot) removeCommands() {
	for _, cmd := range b.commands {
		err := b.session.ApplicationCommandDelete(b.session.State.User.ID, "", cmd.ID)
		if err != nil {
			slog.Error("Failed to remove command", "name", cmd.Name, "error", err)
		}
	}
}
