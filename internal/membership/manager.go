package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/models"
	"campus-chat-service/internal/repositories"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyMember = errors.New("already a member of this room")
	ErrNotMember     = errors.New("not a member of this room")
)

// Manager enforces the join/leave rules for rooms. All mutation of a
// room's membership is serialized through a per-room mutex so the
// capacity check and the lookup-then-insert-or-reactivate window cannot
// race; the unique (roomId, userId) index is the storage backstop.
type Manager struct {
	rooms   repositories.RoomRepository
	members repositories.MembershipRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager constructs a Manager.
func NewManager(rooms repositories.RoomRepository, members repositories.MembershipRepository) *Manager {
	return &Manager{
		rooms:   rooms,
		members: members,
		locks:   make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex guarding one room's membership mutations.
// Locks are retained for the life of the process, one per room ever
// joined or left; at a few bytes per room the map stays small next to
// the rooms collection itself.
func (m *Manager) roomLock(roomID primitive.ObjectID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roomID.Hex()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Join adds the user to the room. A previously left membership is
// reactivated in place, preserving its read cursor, rather than
// duplicated.
func (m *Manager) Join(ctx context.Context, roomID, userID primitive.ObjectID) error {
	lock := m.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := m.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	existing, findErr := m.members.Find(ctx, roomID, userID)
	switch {
	case findErr == nil && existing.IsActive:
		return ErrAlreadyMember
	case findErr != nil && !errors.Is(findErr, repositories.ErrMembershipNotFound):
		return fmt.Errorf("find membership: %w", findErr)
	}

	active, err := m.members.CountActive(ctx, roomID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if active >= int64(room.MaxMembers) {
		return ErrRoomFull
	}

	now := time.Now().UTC()
	if findErr == nil {
		// Inactive membership from an earlier leave: flip it back on.
		return m.members.Reactivate(ctx, existing.ID, now)
	}

	_, err = m.members.Insert(ctx, models.Membership{
		RoomID:   roomID,
		UserID:   userID,
		Role:     models.MemberRoleMember,
		IsActive: true,
		JoinedAt: now,
	})
	return err
}

// Leave soft-deactivates the user's membership, keeping its history.
func (m *Manager) Leave(ctx context.Context, roomID, userID primitive.ObjectID) error {
	lock := m.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	err := m.members.Deactivate(ctx, roomID, userID)
	if errors.Is(err, repositories.ErrMembershipNotFound) {
		return ErrNotMember
	}
	return err
}

// RequireActiveMember gates every message read and write on an active
// membership.
func (m *Manager) RequireActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	active, err := m.members.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !active {
		return ErrNotMember
	}
	return nil
}
