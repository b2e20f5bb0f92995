package room_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/room"
)

func TestJoinCreatesRoomWithSoleParticipant(t *testing.T) {
	reg := room.NewRegistry()

	joined, err := reg.Join("r1", "alice")
	require.NoError(t, err)
	assert.True(t, joined.Added)

	summary := joined.Room
	assert.Equal(t, "r1", summary.ID)
	assert.Equal(t, "r1", summary.Name)
	assert.Equal(t, "alice", summary.Creator)
	assert.Equal(t, 1, summary.ParticipantCount)
	assert.Equal(t, []string{"alice"}, reg.Participants("r1"))
}

func TestJoinRejectsBlankParameters(t *testing.T) {
	tests := []struct {
		name     string
		roomID   string
		username string
	}{
		{name: "missing room", roomID: "", username: "alice"},
		{name: "missing username", roomID: "r1", username: ""},
		{name: "whitespace only", roomID: "  ", username: "\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := room.NewRegistry()
			_, err := reg.Join(tt.roomID, tt.username)
			require.ErrorIs(t, err, room.ErrInvalidRequest)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestRejoinDoesNotDuplicateParticipant(t *testing.T) {
	reg := room.NewRegistry()

	first, err := reg.Join("r1", "alice")
	require.NoError(t, err)
	assert.True(t, first.Added)
	second, err := reg.Join("r1", "alice")
	require.NoError(t, err)
	assert.False(t, second.Added, "a second connection does not add a participant")
	assert.Equal(t, 1, second.Room.ParticipantCount)
	assert.True(t, reg.IsParticipant("r1", "alice"))

	// first connection closes; alice still has one open
	result := reg.Leave("r1", "alice")
	assert.False(t, result.Left)
	assert.False(t, result.Deleted)
	assert.Equal(t, 1, result.Room.ParticipantCount)

	result = reg.Leave("r1", "alice")
	assert.True(t, result.Left)
	assert.True(t, result.Deleted)
	assert.False(t, reg.IsParticipant("r1", "alice"))
}

func TestLastLeaveDeletesRoomAndRejoinStartsFresh(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := room.NewRegistry(room.WithClock(func() time.Time { return clock }))

	_, err := reg.Join("r1", "alice")
	require.NoError(t, err)
	_, err = reg.Join("r1", "bob")
	require.NoError(t, err)

	result := reg.Leave("r1", "bob")
	assert.True(t, result.Left)
	assert.False(t, result.Deleted)
	assert.Equal(t, 1, result.Room.ParticipantCount)

	result = reg.Leave("r1", "alice")
	assert.True(t, result.Deleted)
	_, ok := reg.Get("r1")
	assert.False(t, ok)

	clock = clock.Add(time.Minute)
	rejoined, err := reg.Join("r1", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", rejoined.Room.Creator)
	assert.Equal(t, clock, rejoined.Room.CreatedAt)
}

func TestLeaveUnknownRoomOrUserIsNoop(t *testing.T) {
	reg := room.NewRegistry()
	assert.Equal(t, room.LeaveResult{}, reg.Leave("missing", "alice"))

	_, err := reg.Join("r1", "alice")
	require.NoError(t, err)
	result := reg.Leave("r1", "bob")
	assert.False(t, result.Left)
	assert.Equal(t, 1, result.Room.ParticipantCount)
}

func TestParticipantSetMatchesJoinLeaveSequence(t *testing.T) {
	reg := room.NewRegistry()
	ops := []struct {
		join bool
		user string
	}{
		{true, "a"}, {true, "b"}, {true, "c"}, {false, "b"}, {true, "d"},
		{false, "a"}, {true, "b"}, {false, "zz"}, {false, "c"},
	}

	expected := map[string]bool{}
	for _, op := range ops {
		if op.join {
			_, err := reg.Join("r", op.user)
			require.NoError(t, err)
			expected[op.user] = true
		} else {
			reg.Leave("r", op.user)
			delete(expected, op.user)
		}
	}

	var want []string
	for _, name := range []string{"a", "b", "c", "d"} {
		if expected[name] {
			want = append(want, name)
		}
	}
	assert.Equal(t, want, reg.Participants("r"))
}

func TestConcurrentJoinsCreateSingleRoom(t *testing.T) {
	reg := room.NewRegistry()

	const joiners = 100
	var wg sync.WaitGroup
	wg.Add(joiners)
	for i := 0; i < joiners; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := reg.Join("fresh", fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Len())
	summary, ok := reg.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, joiners, summary.ParticipantCount)
}

func TestConcurrentJoinLeaveNeverLosesUpdates(t *testing.T) {
	reg := room.NewRegistry()
	_, err := reg.Join("r", "anchor")
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i)
			for j := 0; j < 20; j++ {
				_, err := reg.Join("r", name)
				assert.NoError(t, err)
				reg.Leave("r", name)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"anchor"}, reg.Participants("r"))
}

func TestCreateRenameDelete(t *testing.T) {
	reg := room.NewRegistry(room.WithRetainCreated(true))

	created, err := reg.Create("lobby", "Lobby", "admin")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", created.Name)
	assert.True(t, created.Retained)
	assert.Equal(t, 0, created.ParticipantCount)

	_, err = reg.Create("lobby", "Again", "admin")
	require.ErrorIs(t, err, room.ErrRoomExists)

	renamed, err := reg.Rename("lobby", "Main Hall")
	require.NoError(t, err)
	assert.Equal(t, "Main Hall", renamed.Name)

	_, err = reg.Rename("lobby", " ")
	require.ErrorIs(t, err, room.ErrInvalidRequest)

	_, err = reg.Rename("missing", "x")
	require.ErrorIs(t, err, room.ErrRoomNotFound)

	require.NoError(t, reg.Delete("lobby"))
	require.ErrorIs(t, reg.Delete("lobby"), room.ErrRoomNotFound)
}

func TestCreateGeneratesIDWhenEmpty(t *testing.T) {
	reg := room.NewRegistry()

	created, err := reg.Create("", "", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.ID, created.Name)
}

func TestRetainedRoomSurvivesEmptying(t *testing.T) {
	tests := []struct {
		name        string
		retain      bool
		wantDeleted bool
	}{
		{name: "retained", retain: true, wantDeleted: false},
		{name: "ephemeral", retain: false, wantDeleted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := room.NewRegistry(room.WithRetainCreated(tt.retain))
			_, err := reg.Create("class", "Class", "admin")
			require.NoError(t, err)
			_, err = reg.Join("class", "alice")
			require.NoError(t, err)

			result := reg.Leave("class", "alice")
			assert.True(t, result.Left)
			assert.Equal(t, tt.wantDeleted, result.Deleted)
			_, ok := reg.Get("class")
			assert.Equal(t, !tt.wantDeleted, ok)
		})
	}
}

func TestEnsureRoom(t *testing.T) {
	reg := room.NewRegistry()

	first, err := reg.EnsureRoom("r1")
	require.NoError(t, err)
	second, err := reg.EnsureRoom("r1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reg.Len())

	_, err = reg.EnsureRoom("")
	require.ErrorIs(t, err, room.ErrInvalidRequest)
}

func TestEnsuredRoomIsRetained(t *testing.T) {
	reg := room.NewRegistry()

	ensured, err := reg.EnsureRoom("r1")
	require.NoError(t, err)
	assert.True(t, ensured.Retained)

	_, err = reg.Join("r1", "alice")
	require.NoError(t, err)
	result := reg.Leave("r1", "alice")
	assert.True(t, result.Left)
	assert.False(t, result.Deleted)

	_, ok := reg.Get("r1")
	assert.True(t, ok)
	require.NoError(t, reg.Delete("r1"))
	assert.Equal(t, 0, reg.Len())

	// ensuring a room someone already joined leaves it ephemeral
	_, err = reg.Join("r2", "bob")
	require.NoError(t, err)
	existing, err := reg.EnsureRoom("r2")
	require.NoError(t, err)
	assert.False(t, existing.Retained)
}

func TestIsParticipant(t *testing.T) {
	reg := room.NewRegistry()
	_, err := reg.Join("r1", "alice")
	require.NoError(t, err)

	assert.True(t, reg.IsParticipant("r1", "alice"))
	assert.True(t, reg.IsParticipant(" r1 ", "alice "))
	assert.False(t, reg.IsParticipant("r1", "mallory"))
	assert.False(t, reg.IsParticipant("r2", "alice"))
}

func TestListOrdersByCreation(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := room.NewRegistry(room.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	for _, id := range []string{"c", "a", "b"} {
		_, err := reg.Join(id, "u")
		require.NoError(t, err)
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}
