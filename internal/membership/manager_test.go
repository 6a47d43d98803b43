package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/models"
	"campus-chat-service/internal/repositories"
)

// In-memory repositories backing the manager under test. They mimic the
// Mongo implementations closely enough to exercise the join/leave rules,
// including the unique (roomId, userId) document per pair.

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[primitive.ObjectID]models.Room
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[primitive.ObjectID]models.Room)}
}

func (r *fakeRoomRepo) CreateRoom(_ context.Context, room models.Room) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room.ID = primitive.NewObjectID()
	r.rooms[room.ID] = room
	return room, nil
}

func (r *fakeRoomRepo) GetRoom(_ context.Context, roomID primitive.ObjectID) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.Room{}, repositories.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeRoomRepo) ListRoomsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Room
	for _, id := range ids {
		if room, ok := r.rooms[id]; ok {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) TouchRoom(_ context.Context, roomID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	room.UpdatedAt = time.Now().UTC()
	r.rooms[roomID] = room
	return nil
}

type fakeMembershipRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Membership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{docs: make(map[primitive.ObjectID]models.Membership)}
}

func (r *fakeMembershipRepo) Find(_ context.Context, roomID, userID primitive.ObjectID) (models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.RoomID == roomID && doc.UserID == userID {
			return doc, nil
		}
	}
	return models.Membership{}, repositories.ErrMembershipNotFound
}

func (r *fakeMembershipRepo) Insert(_ context.Context, membership models.Membership) (models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership.ID = primitive.NewObjectID()
	r.docs[membership.ID] = membership
	return membership, nil
}

func (r *fakeMembershipRepo) Reactivate(_ context.Context, membershipID primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[membershipID]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	doc.IsActive = true
	doc.JoinedAt = at
	r.docs[membershipID] = doc
	return nil
}

func (r *fakeMembershipRepo) Deactivate(_ context.Context, roomID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.docs {
		if doc.RoomID == roomID && doc.UserID == userID && doc.IsActive {
			doc.IsActive = false
			r.docs[id] = doc
			return nil
		}
	}
	return repositories.ErrMembershipNotFound
}

func (r *fakeMembershipRepo) CountActive(_ context.Context, roomID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, doc := range r.docs {
		if doc.RoomID == roomID && doc.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *fakeMembershipRepo) IsActiveMember(_ context.Context, roomID, userID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.RoomID == roomID && doc.UserID == userID && doc.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMembershipRepo) ListActiveByRoom(_ context.Context, roomID primitive.ObjectID) ([]models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Membership
	for _, doc := range r.docs {
		if doc.RoomID == roomID && doc.IsActive {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) ListActiveByRooms(_ context.Context, roomIDs []primitive.ObjectID) ([]models.Membership, error) {
	var out []models.Membership
	for _, id := range roomIDs {
		docs, _ := r.ListActiveByRoom(context.Background(), id)
		out = append(out, docs...)
	}
	return out, nil
}

func (r *fakeMembershipRepo) ListActiveByUser(_ context.Context, userID primitive.ObjectID) ([]models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Membership
	for _, doc := range r.docs {
		if doc.UserID == userID && doc.IsActive {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) UpdateLastRead(_ context.Context, roomID, userID primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, doc := range r.docs {
		if doc.RoomID == roomID && doc.UserID == userID && doc.IsActive {
			stamp := at
			doc.LastReadAt = &stamp
			r.docs[id] = doc
			return nil
		}
	}
	return repositories.ErrMembershipNotFound
}

var (
	_ repositories.RoomRepository       = (*fakeRoomRepo)(nil)
	_ repositories.MembershipRepository = (*fakeMembershipRepo)(nil)
)

func newTestRoom(t *testing.T, rooms *fakeRoomRepo, maxMembers int) models.Room {
	t.Helper()
	room, err := rooms.CreateRoom(context.Background(), models.Room{
		Name:       "cs201",
		Kind:       models.RoomKindCourse,
		MaxMembers: maxMembers,
		CreatedBy:  primitive.NewObjectID(),
	})
	require.NoError(t, err)
	return room
}

func TestJoinAndLeave(t *testing.T) {
	rooms := newFakeRoomRepo()
	members := newFakeMembershipRepo()
	manager := NewManager(rooms, members)
	room := newTestRoom(t, rooms, 10)
	userID := primitive.NewObjectID()
	ctx := context.Background()

	require.NoError(t, manager.Join(ctx, room.ID, userID))
	require.NoError(t, manager.RequireActiveMember(ctx, room.ID, userID))

	err := manager.Join(ctx, room.ID, userID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	require.NoError(t, manager.Leave(ctx, room.ID, userID))
	assert.ErrorIs(t, manager.RequireActiveMember(ctx, room.ID, userID), ErrNotMember)
	assert.ErrorIs(t, manager.Leave(ctx, room.ID, userID), ErrNotMember)
}

func TestJoinRoomNotFound(t *testing.T) {
	manager := NewManager(newFakeRoomRepo(), newFakeMembershipRepo())

	err := manager.Join(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
}

func TestRejoinKeepsReadCursorAndSingleDocument(t *testing.T) {
	rooms := newFakeRoomRepo()
	members := newFakeMembershipRepo()
	manager := NewManager(rooms, members)
	room := newTestRoom(t, rooms, 10)
	userID := primitive.NewObjectID()
	ctx := context.Background()

	require.NoError(t, manager.Join(ctx, room.ID, userID))
	readAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, members.UpdateLastRead(ctx, room.ID, userID, readAt))

	require.NoError(t, manager.Leave(ctx, room.ID, userID))
	require.NoError(t, manager.Join(ctx, room.ID, userID))

	doc, err := members.Find(ctx, room.ID, userID)
	require.NoError(t, err)
	assert.True(t, doc.IsActive)
	require.NotNil(t, doc.LastReadAt)
	assert.True(t, doc.LastReadAt.Equal(readAt))
	assert.Len(t, members.docs, 1)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	rooms := newFakeRoomRepo()
	members := newFakeMembershipRepo()
	manager := NewManager(rooms, members)

	const capacity = 5
	const contenders = 20
	room := newTestRoom(t, rooms, capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- manager.Join(ctx, room.ID, primitive.NewObjectID())
		}()
	}
	wg.Wait()
	close(results)

	var joined, full int
	for err := range results {
		switch {
		case err == nil:
			joined++
		case assert.ErrorIs(t, err, ErrRoomFull):
			full++
		}
	}
	assert.Equal(t, capacity, joined)
	assert.Equal(t, contenders-capacity, full)

	count, err := members.CountActive(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(capacity), count)
}

func TestLeaveFreesASlot(t *testing.T) {
	rooms := newFakeRoomRepo()
	members := newFakeMembershipRepo()
	manager := NewManager(rooms, members)
	room := newTestRoom(t, rooms, 2)
	ctx := context.Background()

	first := primitive.NewObjectID()
	second := primitive.NewObjectID()
	third := primitive.NewObjectID()

	require.NoError(t, manager.Join(ctx, room.ID, first))
	require.NoError(t, manager.Join(ctx, room.ID, second))
	assert.ErrorIs(t, manager.Join(ctx, room.ID, third), ErrRoomFull)

	require.NoError(t, manager.Leave(ctx, room.ID, first))
	require.NoError(t, manager.Join(ctx, room.ID, third))
}
