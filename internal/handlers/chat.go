package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campus-chat-service/internal/membership"
	"campus-chat-service/internal/models"
	"campus-chat-service/internal/observability"
	"campus-chat-service/internal/repositories"
	"campus-chat-service/internal/telemetry"
	"campus-chat-service/internal/ws"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	maxContentLength = 2000
	maxRoomNameLen   = 100

	defaultMaxMembers = 100
	maxRoomCapacity   = 1000
)

// MembershipService is the join/leave policy the facade depends on.
type MembershipService interface {
	Join(ctx context.Context, roomID, userID primitive.ObjectID) error
	Leave(ctx context.Context, roomID, userID primitive.ObjectID) error
	RequireActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) error
}

// ChatHandler is the single entry point for the chat API. All operations
// are multiplexed on the action query parameter of one endpoint.
type ChatHandler struct {
	rooms       repositories.RoomRepository
	members     repositories.MembershipRepository
	messages    repositories.MessageRepository
	users       repositories.UserRepository
	memberships MembershipService
	broadcaster ws.Broadcaster
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	rooms repositories.RoomRepository,
	members repositories.MembershipRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	memberships MembershipService,
	broadcaster ws.Broadcaster,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		rooms:       rooms,
		members:     members,
		messages:    messages,
		users:       users,
		memberships: memberships,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// HandleGet dispatches read operations: action=rooms (default) | messages.
func (h *ChatHandler) HandleGet(c *gin.Context) {
	switch c.DefaultQuery("action", "rooms") {
	case "rooms":
		h.listRooms(c)
	case "messages":
		h.listMessages(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// HandlePost dispatches write operations: action=create | send (default) | join.
func (h *ChatHandler) HandlePost(c *gin.Context) {
	switch c.DefaultQuery("action", "send") {
	case "create":
		h.createRoom(c)
	case "send":
		h.sendMessage(c)
	case "join":
		h.joinRoom(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

// HandleDelete serves the leave operation.
func (h *ChatHandler) HandleDelete(c *gin.Context) {
	h.leaveRoom(c)
}

// listRooms returns every room the caller actively belongs to, enriched
// with members, creator profile, message count and unread count, newest
// activity first.
func (h *ChatHandler) listRooms(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	own, err := h.members.ListActiveByUser(ctx, userID)
	if err != nil {
		log.Printf("list memberships: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	ownByRoom := make(map[primitive.ObjectID]models.Membership, len(own))
	roomIDs := make([]primitive.ObjectID, 0, len(own))
	for _, m := range own {
		ownByRoom[m.RoomID] = m
		roomIDs = append(roomIDs, m.RoomID)
	}

	rooms, err := h.rooms.ListRoomsByIDs(ctx, roomIDs)
	if err != nil {
		log.Printf("list rooms: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	memberships, err := h.members.ListActiveByRooms(ctx, roomIDs)
	if err != nil {
		log.Printf("list room members: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	membersByRoom := make(map[primitive.ObjectID][]models.Membership)
	for _, m := range memberships {
		membersByRoom[m.RoomID] = append(membersByRoom[m.RoomID], m)
	}

	profileIDs := make([]primitive.ObjectID, 0, len(memberships)+len(rooms))
	seen := map[primitive.ObjectID]struct{}{}
	collect := func(id primitive.ObjectID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			profileIDs = append(profileIDs, id)
		}
	}
	for _, m := range memberships {
		collect(m.UserID)
	}
	for _, room := range rooms {
		collect(room.CreatedBy)
	}
	profiles, err := h.users.GetUsersByIDs(ctx, profileIDs)
	if err != nil {
		log.Printf("load profiles: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	profileByID := make(map[primitive.ObjectID]models.User, len(profiles))
	for _, u := range profiles {
		profileByID[u.ID] = u
	}

	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := models.RoomView{Room: room}

		for _, m := range membersByRoom[room.ID] {
			profile, ok := profileByID[m.UserID]
			if !ok {
				continue
			}
			view.Members = append(view.Members, models.RoomMemberView{
				User:     profile,
				Role:     m.Role,
				JoinedAt: m.JoinedAt,
			})
		}
		sort.Slice(view.Members, func(i, j int) bool {
			return view.Members[i].JoinedAt.Before(view.Members[j].JoinedAt)
		})

		if creator, ok := profileByID[room.CreatedBy]; ok {
			view.Creator = &creator
		}

		if view.MessageCount, err = h.messages.CountByRoom(ctx, room.ID); err != nil {
			log.Printf("count messages for room %s: %v", room.ID.Hex(), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
			return
		}
		mine := ownByRoom[room.ID]
		if view.UnreadCount, err = h.messages.CountUnread(ctx, room.ID, userID, mine.LastReadAt); err != nil {
			log.Printf("count unread for room %s: %v", room.ID.Hex(), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
			return
		}

		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})

	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

// listMessages returns one page of a room's messages, oldest first, and
// advances the caller's read cursor as a side effect.
func (h *ChatHandler) listMessages(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	roomID, err := primitive.ObjectIDFromHex(c.Query("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	page, limit := pageParams(c)

	if _, err := h.rooms.GetRoom(ctx, roomID); err != nil {
		h.respondRoomError(c, err)
		return
	}
	if err := h.memberships.RequireActiveMember(ctx, roomID, userID); err != nil {
		h.respondMembershipError(c, err)
		return
	}

	msgs, total, err := h.messages.ListMessages(ctx, roomID, page, limit)
	if err != nil {
		log.Printf("list messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	views, err := h.enrichMessages(ctx, msgs)
	if err != nil {
		log.Printf("enrich messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	// Reading a page marks the room read; losing the cursor update only
	// inflates the unread count until the next read.
	if err := h.members.UpdateLastRead(ctx, roomID, userID, time.Now().UTC()); err != nil {
		log.Printf("update last read: %v", err)
	}

	pages := int64(0)
	if total > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": views,
		"pagination": models.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

func (h *ChatHandler) enrichMessages(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	replyByID := map[primitive.ObjectID]models.Message{}
	for _, m := range msgs {
		if m.ReplyToID == nil {
			continue
		}
		if _, ok := replyByID[*m.ReplyToID]; ok {
			continue
		}
		reply, err := h.messages.GetMessage(ctx, *m.ReplyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				continue
			}
			return nil, fmt.Errorf("load reply target: %w", err)
		}
		replyByID[reply.ID] = reply
	}

	senderIDs := make([]primitive.ObjectID, 0, len(msgs))
	seen := map[primitive.ObjectID]struct{}{}
	collect := func(id primitive.ObjectID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			senderIDs = append(senderIDs, id)
		}
	}
	for _, m := range msgs {
		collect(m.SenderID)
	}
	for _, m := range replyByID {
		collect(m.SenderID)
	}

	profiles, err := h.users.GetUsersByIDs(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}
	profileByID := make(map[primitive.ObjectID]models.User, len(profiles))
	for _, u := range profiles {
		profileByID[u.ID] = u
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{Message: m}
		if sender, ok := profileByID[m.SenderID]; ok {
			view.Sender = &sender
		}
		if m.ReplyToID != nil {
			if reply, ok := replyByID[*m.ReplyToID]; ok {
				replyView := models.ReplyView{Message: reply}
				if sender, ok := profileByID[reply.SenderID]; ok {
					replyView.Sender = &sender
				}
				view.ReplyTo = &replyView
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// createRoom stores a new room and makes the creator its admin member.
func (h *ChatHandler) createRoom(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Kind        string `json:"kind"`
		IsPrivate   bool   `json:"is_private"`
		MaxMembers  int    `json:"max_members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxRoomNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room name must be 1-100 characters"})
		return
	}
	kind := models.RoomKind(req.Kind)
	if req.Kind == "" {
		kind = models.RoomKindGroup
	}
	if !models.ValidRoomKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room kind"})
		return
	}
	if req.MaxMembers == 0 {
		req.MaxMembers = defaultMaxMembers
	}
	if req.MaxMembers < 2 || req.MaxMembers > maxRoomCapacity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_members out of range"})
		return
	}

	room, err := h.rooms.CreateRoom(ctx, models.Room{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Kind:        kind,
		IsPrivate:   req.IsPrivate,
		MaxMembers:  req.MaxMembers,
		CreatedBy:   userID,
	})
	if err != nil {
		log.Printf("create room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	// The creator joins as admin directly; the room is empty so capacity
	// cannot be exceeded here.
	if _, err := h.members.Insert(ctx, models.Membership{
		RoomID:   room.ID,
		UserID:   userID,
		Role:     models.MemberRoleAdmin,
		IsActive: true,
		JoinedAt: room.CreatedAt,
	}); err != nil {
		log.Printf("insert creator membership: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.audit.Emit(ctx, "INFO", "room created: "+room.ID.Hex(), requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// sendMessage validates, stores and fans out a message.
func (h *ChatHandler) sendMessage(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	var req struct {
		RoomID      string `json:"room_id"`
		Content     string `json:"content"`
		MessageType string `json:"message_type"`
		FileURL     string `json:"file_url"`
		FileName    string `json:"file_name"`
		FileSize    int64  `json:"file_size"`
		ReplyToID   string `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID, err := primitive.ObjectIDFromHex(req.RoomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	msgType := models.MessageType(req.MessageType)
	if req.MessageType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message type"})
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	switch msgType {
	case models.MessageTypeImage, models.MessageTypeFile:
		if req.FileURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_url is required for file messages"})
			return
		}
	default:
		if req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
			return
		}
	}
	if len(req.Content) > maxContentLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content too long"})
		return
	}

	if _, err := h.rooms.GetRoom(ctx, roomID); err != nil {
		h.respondRoomError(c, err)
		return
	}
	if err := h.memberships.RequireActiveMember(ctx, roomID, userID); err != nil {
		h.respondMembershipError(c, err)
		return
	}

	var replyToID *primitive.ObjectID
	if req.ReplyToID != "" {
		id, err := primitive.ObjectIDFromHex(req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reply_to_id"})
			return
		}
		replyTo, err := h.messages.GetMessage(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not found in this room"})
				return
			}
			log.Printf("load reply target: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
			return
		}
		if replyTo.RoomID != roomID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not found in this room"})
			return
		}
		replyToID = &id
	}

	msg, err := h.messages.CreateMessage(ctx, models.Message{
		RoomID:      roomID,
		SenderID:    userID,
		Content:     req.Content,
		MessageType: msgType,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ReplyToID:   replyToID,
	})
	if err != nil {
		log.Printf("store message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	observability.IncMessageStored(string(msgType))

	// Activity ordering for the rooms listing.
	if err := h.rooms.TouchRoom(ctx, roomID); err != nil {
		log.Printf("touch room %s: %v", roomID.Hex(), err)
	}

	views, err := h.enrichMessages(ctx, []models.Message{msg})
	if err != nil || len(views) != 1 {
		log.Printf("enrich stored message: %v", err)
		views = []models.MessageView{{Message: msg}}
	}

	h.broadcaster.BroadcastNewMessage(roomID.Hex(), views[0])
	h.audit.Emit(ctx, "INFO", "message sent in room "+roomID.Hex(), requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, gin.H{"message": views[0]})
}

// joinRoom adds the caller to a room through the membership manager.
func (h *ChatHandler) joinRoom(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	var req struct {
		RoomID string `json:"room_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roomID, err := primitive.ObjectIDFromHex(req.RoomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.memberships.Join(ctx, roomID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, membership.ErrRoomFull):
			c.JSON(http.StatusConflict, gin.H{"error": "room is full", "code": "ROOM_FULL"})
		case errors.Is(err, membership.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "already a member of this room", "code": "ALREADY_MEMBER"})
		default:
			log.Printf("join room: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		}
		return
	}

	h.audit.Emit(ctx, "INFO", "joined room "+roomID.Hex(), requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// leaveRoom soft-removes the caller from a room.
func (h *ChatHandler) leaveRoom(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	roomID, err := primitive.ObjectIDFromHex(c.Query("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.memberships.Leave(ctx, roomID, userID); err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
			return
		}
		log.Printf("leave room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave room"})
		return
	}

	h.audit.Emit(ctx, "INFO", "left room "+roomID.Hex(), requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) respondRoomError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	log.Printf("load room: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
}

func (h *ChatHandler) respondMembershipError(c *gin.Context, err error) {
	if errors.Is(err, membership.ErrNotMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}
	log.Printf("check membership: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
