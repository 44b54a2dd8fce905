package battle

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	bosses   map[int64]*storage.Boss
	battles  map[int64]*storage.Battle
	members  map[string]*storage.BattleMember
	trainers map[string]*storage.Trainer
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bosses:   make(map[int64]*storage.Boss),
		battles:  make(map[int64]*storage.Battle),
		members:  make(map[string]*storage.BattleMember),
		trainers: make(map[string]*storage.Trainer),
	}
}

func memberKey(battleID int64, discordID string) string {
	return fmt.Sprintf("%d:%s", battleID, discordID)
}

func (f *fakeStore) GetBoss(ctx context.Context, id int64) (*storage.Boss, error) {
	b, ok := f.bosses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) CreateBattle(ctx context.Context, b *storage.Battle) error {
	f.nextID++
	b.ID = f.nextID
	copied := *b
	f.battles[b.ID] = &copied
	return nil
}

func (f *fakeStore) GetBattle(ctx context.Context, id int64) (*storage.Battle, error) {
	b, ok := f.battles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) GetBattleByMessage(ctx context.Context, messageID string) (*storage.Battle, error) {
	for _, b := range f.battles {
		if b.MessageID == messageID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpdateBattleStatus(ctx context.Context, id int64, status storage.BattleStatus) error {
	b, ok := f.battles[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeStore) SetBattleMessage(ctx context.Context, id int64, channelID, messageID string) error {
	b, ok := f.battles[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.ChannelID = channelID
	b.MessageID = messageID
	return nil
}

func (f *fakeStore) UpsertMember(ctx context.Context, m *storage.BattleMember) error {
	copied := *m
	f.members[memberKey(m.BattleID, m.DiscordID)] = &copied
	return nil
}

func (f *fakeStore) GetMember(ctx context.Context, battleID int64, discordID string) (*storage.BattleMember, error) {
	m, ok := f.members[memberKey(battleID, discordID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeStore) DeleteMember(ctx context.Context, battleID int64, discordID string) error {
	delete(f.members, memberKey(battleID, discordID))
	return nil
}

func (f *fakeStore) GetMembersByBattle(ctx context.Context, battleID int64) ([]*storage.BattleMember, error) {
	var out []*storage.BattleMember
	for _, m := range f.members {
		if m.BattleID == battleID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTrainer(ctx context.Context, discordID string) (*storage.Trainer, error) {
	t, ok := f.trainers[discordID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

// fakeMessenger records outbound channel traffic.
type fakeMessenger struct {
	nextMsg int
	posts   []*discordgo.MessageSend
	edits   []*discordgo.MessageEdit
	texts   []string
}

func (f *fakeMessenger) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.nextMsg++
	f.posts = append(f.posts, data)
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", f.nextMsg), ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessageEditComplex(m *discordgo.MessageEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID}, nil
}

func (f *fakeMessenger) ChannelMessageSend(channelID string, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.nextMsg++
	f.texts = append(f.texts, content)
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", f.nextMsg), ChannelID: channelID}, nil
}

// fakeRules returns a fixed rule set.
type fakeRules struct {
	rules []*storage.AlertRule
}

func (f *fakeRules) FindMatching(ctx context.Context, guildID string, battle *storage.Battle, boss *storage.Boss) ([]*storage.AlertRule, error) {
	return f.rules, nil
}

func setup(t *testing.T) (*Coordinator, *fakeStore, *fakeMessenger) {
	t.Helper()
	store := newFakeStore()
	store.bosses[1] = &storage.Boss{
		ID: 1, Name: "Charizard", BossType: storage.BossTypeRaid,
		CreatureID: 6, Tier: 5, TemplateID: "RAID_CHARIZARD",
	}
	msg := &fakeMessenger{}
	coord := NewCoordinator(store, &fakeRules{}, msg)
	return coord, store, msg
}

func hostBattle(t *testing.T, coord *Coordinator) *storage.Battle {
	t.Helper()
	b, err := coord.Host(context.Background(), "guild", "chan", "H", 1)
	require.NoError(t, err)
	return b
}

func TestHostCreatesPlanningBattle(t *testing.T) {
	coord, store, msg := setup(t)

	b := hostBattle(t, coord)

	assert.Equal(t, storage.BattleStatusPlanning, b.Status)
	assert.Equal(t, "H", b.HostID)
	assert.NotEmpty(t, b.MessageID)

	stored := store.battles[b.ID]
	assert.Equal(t, b.MessageID, stored.MessageID)

	require.Len(t, msg.posts, 1)
	require.Len(t, msg.posts[0].Embeds, 1)
	assert.Contains(t, msg.posts[0].Embeds[0].Title, "Charizard")
	assert.NotEmpty(t, msg.posts[0].Components, "planning card carries controls")
}

func TestHostUnknownBoss(t *testing.T) {
	coord, _, _ := setup(t)

	_, err := coord.Host(context.Background(), "guild", "chan", "H", 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHostFansOutAlerts(t *testing.T) {
	store := newFakeStore()
	store.bosses[1] = &storage.Boss{ID: 1, Name: "Charizard", BossType: storage.BossTypeRaid, Tier: 5}
	msg := &fakeMessenger{}
	altChannel := "alerts"
	coord := NewCoordinator(store, &fakeRules{rules: []*storage.AlertRule{
		{ID: 1, GuildID: "guild", RoleID: "raiders"},
		{ID: 2, GuildID: "guild", RoleID: "elite", ChannelID: &altChannel},
	}}, msg)

	_, err := coord.Host(context.Background(), "guild", "chan", "H", 1)
	require.NoError(t, err)

	require.Len(t, msg.texts, 2)
	assert.Contains(t, msg.texts[0], "<@&raiders>")
	assert.Contains(t, msg.texts[1], "<@&elite>")
}

func TestJoinAndLeave(t *testing.T) {
	coord, store, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, b, "M"))
	m, err := store.GetMember(ctx, b.ID, "M")
	require.NoError(t, err)
	assert.Equal(t, storage.MemberStatusJoined, m.Status)

	require.NoError(t, coord.Leave(ctx, b, "M"))
	_, err = store.GetMember(ctx, b.ID, "M")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHostCannotJoinOrLeave(t *testing.T) {
	coord, _, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	var invalid *InvalidTransitionError
	assert.ErrorAs(t, coord.Join(ctx, b, "H"), &invalid)
	assert.ErrorAs(t, coord.Leave(ctx, b, "H"), &invalid)
}

func TestMemberOutcomeDoesNotTouchBattle(t *testing.T) {
	coord, store, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, b, "M"))
	require.NoError(t, coord.ReportWon(ctx, b, "M"))

	m, err := store.GetMember(ctx, b.ID, "M")
	require.NoError(t, err)
	assert.Equal(t, storage.MemberStatusCompleted, m.Status)

	stored, err := store.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.BattleStatusPlanning, stored.Status, "member outcome never moves the battle")
}

func TestHostOutcomeDoesNotTouchMembers(t *testing.T) {
	coord, store, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	require.NoError(t, coord.Start(ctx, b, "H"))
	require.NoError(t, coord.ReportWon(ctx, b, "H"))

	stored, err := store.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.BattleStatusCompleted, stored.Status)
	assert.Empty(t, store.members, "host outcome never creates member rows")
}

func TestMemberMustJoinBeforeReporting(t *testing.T) {
	coord, _, _ := setup(t)
	b := hostBattle(t, coord)

	var invalid *InvalidTransitionError
	assert.ErrorAs(t, coord.ReportWon(context.Background(), b, "M"), &invalid)
}

func TestOnlyHostStartsAndCancels(t *testing.T) {
	coord, _, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	var invalid *InvalidTransitionError
	require.ErrorAs(t, coord.Start(ctx, b, "M"), &invalid)
	require.ErrorAs(t, coord.Cancel(ctx, b, "M"), &invalid)
	assert.Equal(t, storage.BattleStatusPlanning, b.Status)
}

func TestNotReceivedIsMemberOnly(t *testing.T) {
	coord, _, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	var invalid *InvalidTransitionError
	require.ErrorAs(t, coord.ReportNotReceived(ctx, b, "H"), &invalid)
	assert.Contains(t, invalid.Reason, "hosting")

	require.NoError(t, coord.Join(ctx, b, "M"))
	require.NoError(t, coord.ReportNotReceived(ctx, b, "M"))
}

func TestHostCannotCompleteFromPlanning(t *testing.T) {
	coord, store, _ := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	var invalid *InvalidTransitionError
	require.ErrorAs(t, coord.ReportWon(ctx, b, "H"), &invalid)

	stored, err := store.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.BattleStatusPlanning, stored.Status)
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminal := []storage.BattleStatus{
		storage.BattleStatusCompleted,
		storage.BattleStatusFailed,
		storage.BattleStatusCancelled,
	}

	for _, status := range terminal {
		t.Run(string(status), func(t *testing.T) {
			coord, store, _ := setup(t)
			b := hostBattle(t, coord)
			ctx := context.Background()
			require.NoError(t, coord.Join(ctx, b, "M"))
			require.NoError(t, store.UpdateBattleStatus(ctx, b.ID, status))
			b.Status = status

			actions := map[string]error{
				"join":        coord.Join(ctx, b, "M2"),
				"leave":       coord.Leave(ctx, b, "M"),
				"start":       coord.Start(ctx, b, "H"),
				"hostWon":     coord.ReportWon(ctx, b, "H"),
				"memberWon":   coord.ReportWon(ctx, b, "M"),
				"notReceived": coord.ReportNotReceived(ctx, b, "M"),
				"cancel":      coord.Cancel(ctx, b, "H"),
			}
			for name, err := range actions {
				var invalid *InvalidTransitionError
				assert.ErrorAs(t, err, &invalid, name)
			}

			stored, err := store.GetBattle(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, status, stored.Status, "terminal state unchanged")
		})
	}
}

func TestCancelPingsMembers(t *testing.T) {
	coord, _, msg := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, b, "M1"))
	require.NoError(t, coord.Join(ctx, b, "M2"))
	require.NoError(t, coord.Cancel(ctx, b, "H"))

	require.Len(t, msg.texts, 1)
	assert.Contains(t, msg.texts[0], "cancelled")
	assert.Contains(t, msg.texts[0], "<@M1>")
	assert.Contains(t, msg.texts[0], "<@M2>")
}

func TestCancelWithoutMembersSendsNoPing(t *testing.T) {
	coord, _, msg := setup(t)
	b := hostBattle(t, coord)

	require.NoError(t, coord.Cancel(context.Background(), b, "H"))
	assert.Empty(t, msg.texts)
}

func TestTransitionsRerenderCard(t *testing.T) {
	coord, _, msg := setup(t)
	b := hostBattle(t, coord)
	ctx := context.Background()

	require.NoError(t, coord.Start(ctx, b, "H"))
	require.Len(t, msg.edits, 1)
	assert.Equal(t, b.MessageID, msg.edits[0].ID)

	require.NoError(t, coord.Cancel(ctx, b, "H"))
	require.Len(t, msg.edits, 2)
	// Cancel strips the controls.
	require.NotNil(t, msg.edits[1].Components)
	assert.Empty(t, *msg.edits[1].Components)
}

func TestEndToEndScenario(t *testing.T) {
	// Host H creates B1; member M joins and reports a win; H cancels.
	coord, store, msg := setup(t)
	ctx := context.Background()

	b, err := coord.Host(ctx, "guild", "chan", "H", 1)
	require.NoError(t, err)
	require.Equal(t, storage.BattleStatusPlanning, b.Status)

	require.NoError(t, coord.Join(ctx, b, "M"))
	m, err := store.GetMember(ctx, b.ID, "M")
	require.NoError(t, err)
	require.Equal(t, storage.MemberStatusJoined, m.Status)

	require.NoError(t, coord.ReportWon(ctx, b, "M"))
	m, err = store.GetMember(ctx, b.ID, "M")
	require.NoError(t, err)
	assert.Equal(t, storage.MemberStatusCompleted, m.Status)

	stored, err := store.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.BattleStatusPlanning, stored.Status)

	require.NoError(t, coord.Cancel(ctx, b, "H"))
	stored, err = store.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.BattleStatusCancelled, stored.Status)

	pinged := false
	for _, text := range msg.texts {
		if strings.Contains(text, "<@M>") {
			pinged = true
		}
	}
	assert.True(t, pinged, "cancel ping lists M")

	var invalid *InvalidTransitionError
	require.ErrorAs(t, coord.ReportWon(ctx, b, "M"), &invalid)
	require.ErrorAs(t, coord.Join(ctx, b, "M"), &invalid)
}

func TestStateMachineTable(t *testing.T) {
	assert.True(t, CanTransition(storage.BattleStatusPlanning, storage.BattleStatusStarted))
	assert.True(t, CanTransition(storage.BattleStatusPlanning, storage.BattleStatusCancelled))
	assert.True(t, CanTransition(storage.BattleStatusStarted, storage.BattleStatusCompleted))
	assert.True(t, CanTransition(storage.BattleStatusStarted, storage.BattleStatusFailed))
	assert.True(t, CanTransition(storage.BattleStatusStarted, storage.BattleStatusCancelled))

	assert.False(t, CanTransition(storage.BattleStatusPlanning, storage.BattleStatusCompleted))
	assert.False(t, CanTransition(storage.BattleStatusCompleted, storage.BattleStatusStarted))
	assert.False(t, CanTransition(storage.BattleStatusCancelled, storage.BattleStatusPlanning))

	assert.False(t, IsTerminal(storage.BattleStatusPlanning))
	assert.False(t, IsTerminal(storage.BattleStatusStarted))
	assert.True(t, IsTerminal(storage.BattleStatusCompleted))
	assert.True(t, IsTerminal(storage.BattleStatusFailed))
	assert.True(t, IsTerminal(storage.BattleStatusCancelled))
}
