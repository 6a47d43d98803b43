package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/models"
	"campus-chat-service/internal/repositories"
	"campus-chat-service/internal/ws"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	args := m.Called(ctx, room)
	var created models.Room
	if val := args.Get(0); val != nil {
		created = val.(models.Room)
	}
	return created, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID primitive.ObjectID) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Room, error) {
	args := m.Called(ctx, ids)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) TouchRoom(ctx context.Context, roomID primitive.ObjectID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MembershipRepositoryMock struct {
	mock.Mock
}

func (m *MembershipRepositoryMock) Find(ctx context.Context, roomID, userID primitive.ObjectID) (models.Membership, error) {
	args := m.Called(ctx, roomID, userID)
	var membership models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(models.Membership)
	}
	return membership, args.Error(1)
}

func (m *MembershipRepositoryMock) Insert(ctx context.Context, membership models.Membership) (models.Membership, error) {
	args := m.Called(ctx, membership)
	var inserted models.Membership
	if val := args.Get(0); val != nil {
		inserted = val.(models.Membership)
	}
	return inserted, args.Error(1)
}

func (m *MembershipRepositoryMock) Reactivate(ctx context.Context, membershipID primitive.ObjectID, at time.Time) error {
	args := m.Called(ctx, membershipID, at)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) Deactivate(ctx context.Context, roomID, userID primitive.ObjectID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) CountActive(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MembershipRepositoryMock) IsActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MembershipRepositoryMock) ListActiveByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Membership, error) {
	args := m.Called(ctx, roomID)
	var memberships []models.Membership
	if val := args.Get(0); val != nil {
		memberships = val.([]models.Membership)
	}
	return memberships, args.Error(1)
}

func (m *MembershipRepositoryMock) ListActiveByRooms(ctx context.Context, roomIDs []primitive.ObjectID) ([]models.Membership, error) {
	args := m.Called(ctx, roomIDs)
	var memberships []models.Membership
	if val := args.Get(0); val != nil {
		memberships = val.([]models.Membership)
	}
	return memberships, args.Error(1)
}

func (m *MembershipRepositoryMock) ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Membership, error) {
	args := m.Called(ctx, userID)
	var memberships []models.Membership
	if val := args.Get(0); val != nil {
		memberships = val.([]models.Membership)
	}
	return memberships, args.Error(1)
}

func (m *MembershipRepositoryMock) UpdateLastRead(ctx context.Context, roomID, userID primitive.ObjectID, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID primitive.ObjectID) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, int64, error) {
	args := m.Called(ctx, roomID, page, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Get(1).(int64), args.Error(2)
}

func (m *MessageRepositoryMock) CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, roomID, userID primitive.ObjectID, lastReadAt *time.Time) (int64, error) {
	args := m.Called(ctx, roomID, userID, lastReadAt)
	return args.Get(0).(int64), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type MembershipServiceMock struct {
	mock.Mock
}

func (m *MembershipServiceMock) Join(ctx context.Context, roomID, userID primitive.ObjectID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MembershipServiceMock) Leave(ctx context.Context, roomID, userID primitive.ObjectID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MembershipServiceMock) RequireActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastNewMessage(roomID string, msg models.MessageView) {
	m.Called(roomID, msg)
}

var (
	_ repositories.RoomRepository       = (*RoomRepositoryMock)(nil)
	_ repositories.MembershipRepository = (*MembershipRepositoryMock)(nil)
	_ repositories.MessageRepository    = (*MessageRepositoryMock)(nil)
	_ repositories.UserRepository       = (*UserRepositoryMock)(nil)
	_ ws.Broadcaster                    = (*BroadcasterMock)(nil)
)
