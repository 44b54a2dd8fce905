// Package router dispatches inbound Discord interactions to registered
// handlers. Routing for message components is stateless: the component's
// custom ID carries a token naming the owning handler and its sub-action.
package router

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/captbunzo/rotom-bot-sub001/internal/token"
)

// Responder is the slice of the Discord session the router and its handlers
// use to answer an interaction. *discordgo.Session satisfies it; tests
// supply a fake.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// CommandHandler owns one slash command.
type CommandHandler interface {
	// Definition returns the command schema to register with Discord.
	Definition() *discordgo.ApplicationCommand

	// Execute handles an invocation of the command.
	Execute(s Responder, i *discordgo.InteractionCreate) error
}

// Autocompleter is implemented by command handlers that serve autocomplete
// requests for their options.
type Autocompleter interface {
	Autocomplete(s Responder, i *discordgo.InteractionCreate) error
}

// ButtonHandler owns button clicks for one component name.
type ButtonHandler interface {
	HandleButton(s Responder, i *discordgo.InteractionCreate, action string) error
}

// SelectHandler owns select-menu submissions for one component name.
type SelectHandler interface {
	HandleSelect(s Responder, i *discordgo.InteractionCreate, action string, values []string) error
}

// ModalHandler owns modal submissions for one component name.
type ModalHandler interface {
	HandleModal(s Responder, i *discordgo.InteractionCreate, action string) error
}

// Router holds the per-category handler registries. Registration happens
// during startup, before the session opens; dispatch never mutates shared
// state, so concurrent interactions stay isolated from each other.
type Router struct {
	commands map[string]CommandHandler
	buttons  map[string]ButtonHandler
	selects  map[string]SelectHandler
	modals   map[string]ModalHandler
}

// New creates an empty router.
func New() *Router {
	return &Router{
		commands: make(map[string]CommandHandler),
		buttons:  make(map[string]ButtonHandler),
		selects:  make(map[string]SelectHandler),
		modals:   make(map[string]ModalHandler),
	}
}

// RegisterCommand adds a slash command handler keyed by its definition name.
func (r *Router) RegisterCommand(h CommandHandler) error {
	if h == nil {
		return fmt.Errorf("command handler is nil")
	}
	def := h.Definition()
	if def == nil || def.Name == "" {
		return fmt.Errorf("command handler has no definition name")
	}
	if _, exists := r.commands[def.Name]; exists {
		return fmt.Errorf("command %q already registered", def.Name)
	}
	r.commands[def.Name] = h
	return nil
}

// RegisterButton adds a button handler for a component name.
func (r *Router) RegisterButton(name string, h ButtonHandler) error {
	if name == "" || h == nil {
		return fmt.Errorf("button handler requires a name and implementation")
	}
	if _, exists := r.buttons[name]; exists {
		return fmt.Errorf("button component %q already registered", name)
	}
	r.buttons[name] = h
	return nil
}

// RegisterSelect adds a select-menu handler for a component name.
func (r *Router) RegisterSelect(name string, h SelectHandler) error {
	if name == "" || h == nil {
		return fmt.Errorf("select handler requires a name and implementation")
	}
	if _, exists := r.selects[name]; exists {
		return fmt.Errorf("select component %q already registered", name)
	}
	r.selects[name] = h
	return nil
}

// RegisterModal adds a modal handler for a component name.
func (r *Router) RegisterModal(name string, h ModalHandler) error {
	if name == "" || h == nil {
		return fmt.Errorf("modal handler requires a name and implementation")
	}
	if _, exists := r.modals[name]; exists {
		return fmt.Errorf("modal component %q already registered", name)
	}
	r.modals[name] = h
	return nil
}

// CommandDefinitions returns the schemas of all registered commands, for
// registration with Discord at startup.
func (r *Router) CommandDefinitions() []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, h := range r.commands {
		defs = append(defs, h.Definition())
	}
	return defs
}

// HandleInteraction is the discordgo gateway handler.
func (r *Router) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	r.Dispatch(s, i)
}

// Dispatch routes one interaction to exactly one handler. Handler failures
// are contained here: the error is logged with full routing context and the
// user receives a single generic failure message for the category. No
// retries; a failed invocation is terminal for that one event.
func (r *Router) Dispatch(s Responder, i *discordgo.InteractionCreate) {
	eventID := uuid.NewString()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		h, ok := r.commands[name]
		if !ok {
			slog.Warn("No handler for command", "command", name, "eventID", eventID)
			return
		}
		r.invoke(s, i, eventID, "command", name, "", func() error {
			return h.Execute(s, i)
		})

	case discordgo.InteractionApplicationCommandAutocomplete:
		name := i.ApplicationCommandData().Name
		h, ok := r.commands[name]
		if !ok {
			slog.Warn("No handler for autocomplete", "command", name, "eventID", eventID)
			return
		}
		ac, ok := h.(Autocompleter)
		if !ok {
			slog.Warn("Command does not support autocomplete", "command", name, "eventID", eventID)
			return
		}
		// Autocomplete gets no failure reply; Discord drops the
		// suggestion list silently.
		if err := safely(func() error { return ac.Autocomplete(s, i) }); err != nil {
			slog.Error("Autocomplete handler failed", "command", name, "eventID", eventID, "error", err)
		}

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		tok, err := token.Decode(data.CustomID)
		if err != nil {
			slog.Error("Undecodable component custom ID", "customID", data.CustomID, "eventID", eventID, "error", err)
			return
		}

		if data.ComponentType == discordgo.ButtonComponent {
			h, ok := r.buttons[tok.Component]
			if !ok {
				slog.Warn("No handler for button component", "component", tok.Component, "eventID", eventID)
				return
			}
			r.invoke(s, i, eventID, "button", tok.Component, tok.Action, func() error {
				return h.HandleButton(s, i, tok.Action)
			})
			return
		}

		h, ok := r.selects[tok.Component]
		if !ok {
			slog.Warn("No handler for select component", "component", tok.Component, "eventID", eventID)
			return
		}
		r.invoke(s, i, eventID, "select", tok.Component, tok.Action, func() error {
			return h.HandleSelect(s, i, tok.Action, data.Values)
		})

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		tok, err := token.Decode(data.CustomID)
		if err != nil {
			slog.Error("Undecodable modal custom ID", "customID", data.CustomID, "eventID", eventID, "error", err)
			return
		}
		h, ok := r.modals[tok.Component]
		if !ok {
			slog.Warn("No handler for modal component", "component", tok.Component, "eventID", eventID)
			return
		}
		r.invoke(s, i, eventID, "modal", tok.Component, tok.Action, func() error {
			return h.HandleModal(s, i, tok.Action)
		})
	}
}

// invoke runs one handler and contains its failure.
func (r *Router) invoke(s Responder, i *discordgo.InteractionCreate, eventID, category, name, action string, fn func() error) {
	err := safely(fn)
	if err == nil {
		return
	}

	slog.Error("Handler failed",
		"category", category,
		"component", name,
		"action", action,
		"eventID", eventID,
		"error", err,
	)

	r.sendFailure(s, i, category)
}

// safely converts a handler panic into an error so one bad handler cannot
// take down the gateway dispatcher.
func safely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn()
}

var failureMessages = map[string]string{
	"command": "Something went wrong running that command. Please try again.",
	"button":  "Something went wrong handling that button. Please try again.",
	"select":  "Something went wrong handling that selection. Please try again.",
	"modal":   "Something went wrong handling that form. Please try again.",
}

// sendFailure delivers exactly one generic failure message: a fresh reply if
// the handler never responded, otherwise a follow-up. The user never sees
// two replies or zero replies.
func (r *Router) sendFailure(s Responder, i *discordgo.InteractionCreate, category string) {
	content, ok := failureMessages[category]
	if !ok {
		content = failureMessages["command"]
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}

	// Responding failed, most likely because the handler already sent the
	// initial response before erroring. Fall back to a follow-up.
	if _, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		slog.Error("Failed to deliver failure message", "category", category, "error", err)
	}
}
