package router

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captbunzo/rotom-bot-sub001/internal/token"
)

// fakeResponder records interaction responses and follow-ups.
type fakeResponder struct {
	mu         sync.Mutex
	respondErr error
	responses  []*discordgo.InteractionResponse
	followups  []*discordgo.WebhookParams
}

func (f *fakeResponder) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

func (f *fakeResponder) responseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses)
}

type fakeCommand struct {
	name     string
	err      error
	executed int
}

func (c *fakeCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.name, Description: "test"}
}

func (c *fakeCommand) Execute(s Responder, i *discordgo.InteractionCreate) error {
	c.executed++
	return c.err
}

type fakeButton struct {
	mu      sync.Mutex
	err     error
	panics  bool
	actions []string
}

func (b *fakeButton) HandleButton(s Responder, i *discordgo.InteractionCreate, action string) error {
	if b.panics {
		panic("boom")
	}
	b.mu.Lock()
	b.actions = append(b.actions, action)
	b.mu.Unlock()
	return b.err
}

type fakeSelect struct {
	values []string
}

func (f *fakeSelect) HandleSelect(s Responder, i *discordgo.InteractionCreate, action string, values []string) error {
	f.values = values
	return nil
}

type fakeModal struct {
	actions []string
}

func (f *fakeModal) HandleModal(s Responder, i *discordgo.InteractionCreate, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

func commandInteraction(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func componentInteraction(customID string, componentType discordgo.ComponentType, values ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: componentType,
			Values:        values,
		},
	}}
}

func modalInteraction(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionModalSubmit,
		Data: discordgo.ModalSubmitInteractionData{CustomID: customID},
	}}
}

func mustEncode(t *testing.T, component, action string) string {
	t.Helper()
	s, err := token.Encode(token.Token{Component: component, Action: action})
	require.NoError(t, err)
	return s
}

func TestRegistrationValidation(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterCommand(&fakeCommand{name: "raid"}))
	assert.Error(t, r.RegisterCommand(&fakeCommand{name: "raid"}), "duplicate command")
	assert.Error(t, r.RegisterCommand(nil))
	assert.Error(t, r.RegisterCommand(&fakeCommand{}), "missing name")

	require.NoError(t, r.RegisterButton("battle", &fakeButton{}))
	assert.Error(t, r.RegisterButton("battle", &fakeButton{}), "duplicate button")
	assert.Error(t, r.RegisterButton("", &fakeButton{}))
	assert.Error(t, r.RegisterSelect("picker", nil))
	require.NoError(t, r.RegisterModal("profile", &fakeModal{}))
}

func TestDispatchCommand(t *testing.T) {
	r := New()
	cmd := &fakeCommand{name: "raid"}
	require.NoError(t, r.RegisterCommand(cmd))

	resp := &fakeResponder{}
	r.Dispatch(resp, commandInteraction("raid"))

	assert.Equal(t, 1, cmd.executed)
	assert.Zero(t, resp.responseCount(), "router sends nothing on success")
}

func TestDispatchButtonPassesAction(t *testing.T) {
	r := New()
	btn := &fakeButton{}
	require.NoError(t, r.RegisterButton("battle", btn))

	resp := &fakeResponder{}
	r.Dispatch(resp, componentInteraction(mustEncode(t, "battle", "join"), discordgo.ButtonComponent))

	assert.Equal(t, []string{"join"}, btn.actions)
}

func TestDispatchSelectPassesValues(t *testing.T) {
	r := New()
	sel := &fakeSelect{}
	require.NoError(t, r.RegisterSelect("picker", sel))

	resp := &fakeResponder{}
	r.Dispatch(resp, componentInteraction(mustEncode(t, "picker", "host"), discordgo.SelectMenuComponent, "42"))

	assert.Equal(t, []string{"42"}, sel.values)
}

func TestDispatchModal(t *testing.T) {
	r := New()
	modal := &fakeModal{}
	require.NoError(t, r.RegisterModal("profile", modal))

	resp := &fakeResponder{}
	r.Dispatch(resp, modalInteraction(mustEncode(t, "profile", "edit")))

	assert.Equal(t, []string{"edit"}, modal.actions)
}

func TestDispatchUnknownHandlerIsSilent(t *testing.T) {
	r := New()
	resp := &fakeResponder{}

	r.Dispatch(resp, commandInteraction("nope"))
	r.Dispatch(resp, componentInteraction(mustEncode(t, "ghost", "x"), discordgo.ButtonComponent))
	r.Dispatch(resp, modalInteraction(mustEncode(t, "ghost", "x")))

	// Unhandled events are logged, never replied to.
	assert.Zero(t, resp.responseCount())
}

func TestDispatchMalformedTokenIsSilent(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterButton("battle", &fakeButton{}))
	resp := &fakeResponder{}

	r.Dispatch(resp, componentInteraction("not a token", discordgo.ButtonComponent))

	assert.Zero(t, resp.responseCount())
}

func TestHandlerErrorYieldsOneFailureReply(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(&fakeCommand{name: "raid", err: fmt.Errorf("db down")}))

	resp := &fakeResponder{}
	r.Dispatch(resp, commandInteraction("raid"))

	require.Len(t, resp.responses, 1)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.responses[0].Data.Flags)
	assert.Empty(t, resp.followups)
}

func TestHandlerErrorAfterReplyUsesFollowup(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterCommand(&fakeCommand{name: "raid", err: fmt.Errorf("late failure")}))

	// The initial response slot is taken, as when the handler replied
	// before erroring.
	resp := &fakeResponder{respondErr: fmt.Errorf("interaction already acknowledged")}
	r.Dispatch(resp, commandInteraction("raid"))

	assert.Empty(t, resp.responses)
	require.Len(t, resp.followups, 1)
}

func TestHandlerPanicIsContained(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterButton("battle", &fakeButton{panics: true}))

	resp := &fakeResponder{}
	require.NotPanics(t, func() {
		r.Dispatch(resp, componentInteraction(mustEncode(t, "battle", "join"), discordgo.ButtonComponent))
	})

	require.Len(t, resp.responses, 1)
}

func TestFailureIsolation(t *testing.T) {
	// A handler failing for event A must not prevent correct processing of
	// a concurrently dispatched, unrelated event B.
	r := New()
	bad := &fakeButton{err: fmt.Errorf("broken")}
	good := &fakeButton{}
	require.NoError(t, r.RegisterButton("bad", bad))
	require.NoError(t, r.RegisterButton("good", good))

	respA := &fakeResponder{}
	respB := &fakeResponder{}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Dispatch(respA, componentInteraction(mustEncode(t, "bad", "x"), discordgo.ButtonComponent))
		}()
		go func() {
			defer wg.Done()
			r.Dispatch(respB, componentInteraction(mustEncode(t, "good", "y"), discordgo.ButtonComponent))
		}()
	}
	wg.Wait()

	good.mu.Lock()
	defer good.mu.Unlock()
	assert.Len(t, good.actions, 25)
	assert.Equal(t, 25, respA.responseCount(), "each failure gets its reply")
	assert.Zero(t, respB.responseCount(), "successes get no router reply")
}
