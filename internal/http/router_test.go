package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"studyspace/internal/domain"
	"studyspace/internal/repository"
	"studyspace/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUserRepo struct {
	users map[string]domain.User
}

func (m *memUserRepo) Create(_ context.Context, user domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memUserRepo) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memUserRepo) UpdateOTP(_ context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.OtpCodeHash = otpHash
	u.OtpExpiresAt = &otpExpiresAt
	m.users[id] = u
	return nil
}

func (m *memUserRepo) ClearOTP(_ context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.OtpCodeHash = ""
	u.OtpExpiresAt = nil
	m.users[id] = u
	return nil
}

type memConversationRepo struct {
	conversations map[string]domain.Conversation
}

func convPairKey(a, b string) string {
	p1, p2 := repository.SortPair(a, b)
	return p1 + "|" + p2
}

func (m *memConversationRepo) Create(_ context.Context, conv domain.Conversation) error {
	for _, existing := range m.conversations {
		if convPairKey(existing.Participant1ID, existing.Participant2ID) == convPairKey(conv.Participant1ID, conv.Participant2ID) {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	conv.Participant1ID, conv.Participant2ID = repository.SortPair(conv.Participant1ID, conv.Participant2ID)
	m.conversations[conv.ID] = conv
	return nil
}

func (m *memConversationRepo) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	conv, ok := m.conversations[id]
	if !ok {
		return domain.Conversation{}, pgx.ErrNoRows
	}
	return conv, nil
}

func (m *memConversationRepo) FindByParticipants(_ context.Context, userA, userB string) (domain.Conversation, error) {
	key := convPairKey(userA, userB)
	for _, conv := range m.conversations {
		if convPairKey(conv.Participant1ID, conv.Participant2ID) == key {
			return conv, nil
		}
	}
	return domain.Conversation{}, pgx.ErrNoRows
}

func (m *memConversationRepo) ListForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, conv := range m.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	activity := func(c domain.Conversation) time.Time {
		if c.LastMessageAt != nil {
			return *c.LastMessageAt
		}
		return c.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool { return activity(out[i]).After(activity(out[j])) })
	return out, nil
}

type memMessageRepo struct {
	convs    *memConversationRepo
	messages []domain.Message
}

func (m *memMessageRepo) Append(_ context.Context, msg domain.Message) error {
	conv, ok := m.convs.conversations[msg.ConversationID]
	if !ok {
		return pgx.ErrNoRows
	}
	s1, s2 := repository.SortPair(msg.SenderID, msg.ReceiverID)
	if s1 != conv.Participant1ID || s2 != conv.Participant2ID {
		return repository.ErrNotConversationParticipant
	}
	m.messages = append(m.messages, msg)
	ts := msg.Timestamp
	conv.LastMessageAt = &ts
	m.convs.conversations[conv.ID] = conv
	return nil
}

func (m *memMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return domain.Message{}, pgx.ErrNoRows
}

func (m *memMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memMessageRepo) LatestByConversation(ctx context.Context, conversationID string) (domain.Message, error) {
	msgs, _ := m.ListByConversation(ctx, conversationID)
	if len(msgs) == 0 {
		return domain.Message{}, pgx.ErrNoRows
	}
	return msgs[len(msgs)-1], nil
}

func (m *memMessageRepo) MarkRead(_ context.Context, messageID string) error {
	for i, msg := range m.messages {
		if msg.ID == messageID {
			m.messages[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memMessageRepo) MarkConversationRead(_ context.Context, conversationID, receiverID string) (int64, error) {
	var marked int64
	for i, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == receiverID && !msg.Read {
			m.messages[i].Read = true
			marked++
		}
	}
	return marked, nil
}

func (m *memMessageRepo) UnreadCountForUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.ReceiverID == userID && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (m *memMessageRepo) UnreadCountByConversation(_ context.Context, conversationID, userID string) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.Read {
			count++
		}
	}
	return count, nil
}

type memNotificationRepo struct {
	notifications map[string]domain.Notification
}

func (m *memNotificationRepo) Create(_ context.Context, n domain.Notification) error {
	m.notifications[n.ID] = n
	return nil
}

func (m *memNotificationRepo) ListForUser(_ context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return pgx.ErrNoRows
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

type memWaitlistRepo struct {
	cabins  map[string]domain.Cabin
	entries map[string]domain.WaitlistEntry
}

func (m *memWaitlistRepo) CreateEntry(_ context.Context, entry domain.WaitlistEntry) error {
	m.entries[entry.ID] = entry
	return nil
}

func (m *memWaitlistRepo) FindByUserAndCabin(_ context.Context, userID, cabinID string) (domain.WaitlistEntry, error) {
	for _, e := range m.entries {
		if e.UserID == userID && e.CabinID == cabinID {
			return e, nil
		}
	}
	return domain.WaitlistEntry{}, pgx.ErrNoRows
}

func (m *memWaitlistRepo) ListForUser(_ context.Context, userID string) ([]domain.WaitlistEntry, error) {
	var out []domain.WaitlistEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memWaitlistRepo) ListForCabin(_ context.Context, cabinID string) ([]domain.WaitlistEntry, error) {
	var out []domain.WaitlistEntry
	for _, e := range m.entries {
		if e.CabinID == cabinID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memWaitlistRepo) Delete(_ context.Context, id, userID string) error {
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.entries, id)
	return nil
}

func (m *memWaitlistRepo) GetCabin(_ context.Context, id string) (domain.Cabin, error) {
	c, ok := m.cabins[id]
	if !ok {
		return domain.Cabin{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memWaitlistRepo) ReleaseCabin(_ context.Context, cabinID string) error {
	c, ok := m.cabins[cabinID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = domain.CabinAvailable
	c.CurrentOccupantID = ""
	m.cabins[cabinID] = c
	return nil
}

type stubEmailSender struct{}

func (stubEmailSender) SendPasswordResetOTP(context.Context, string, string, time.Time) error {
	return nil
}

func (stubEmailSender) SendCabinAvailable(context.Context, string, string, string, string) error {
	return nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type apiFixture struct {
	router   *gin.Engine
	users    *memUserRepo
	convs    *memConversationRepo
	messages *memMessageRepo
	waitlist *memWaitlistRepo
	notifs   *memNotificationRepo
	jwt      *service.JWTService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := zap.NewNop()
	users := &memUserRepo{users: make(map[string]domain.User)}
	convs := &memConversationRepo{conversations: make(map[string]domain.Conversation)}
	messages := &memMessageRepo{convs: convs}
	waitlist := &memWaitlistRepo{
		cabins:  make(map[string]domain.Cabin),
		entries: make(map[string]domain.WaitlistEntry),
	}
	notifs := &memNotificationRepo{notifications: make(map[string]domain.Notification)}

	jwtSvc := service.NewJWTService("test-secret", time.Minute, time.Hour)
	userSvc := service.NewUserService(logger, users, stubEmailSender{}, allowAllLimiter{})
	messagingSvc := service.NewMessagingService(logger, users, convs, messages, nil)
	waitlistSvc := service.NewWaitlistService(logger, waitlist, users, stubEmailSender{})

	router := NewRouter(
		logger,
		jwtSvc,
		NewUserHandler(logger, userSvc, jwtSvc),
		NewMessageHandler(logger, messagingSvc),
		NewWaitlistHandler(logger, waitlistSvc),
		NewNotificationHandler(logger, notifs),
	)

	return &apiFixture{
		router:   router,
		users:    users,
		convs:    convs,
		messages: messages,
		waitlist: waitlist,
		notifs:   notifs,
		jwt:      jwtSvc,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// registerUser da de alta un usuario via API y devuelve su id y access token.
func (f *apiFixture) registerUser(t *testing.T, email, name, role string) (string, string) {
	t.Helper()

	w := f.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    email,
		"password": "secret123",
		"name":     name,
		"role":     role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	user := body["user"].(map[string]any)
	tokens := body["tokens"].(map[string]any)
	return user["id"].(string), tokens["access_token"].(string)
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "secret123",
		"name":     "Alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	tokens := body["tokens"].(map[string]any)
	access := tokens["access_token"].(string)
	refresh := tokens["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("expected tokens in register response, got %v", tokens)
	}

	w = f.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/auth/me", access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}
	me := decodeBody(t, w)["user"].(map[string]any)
	if me["email"] != "alice@example.com" {
		t.Fatalf("unexpected me payload: %v", me)
	}

	w = f.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", w.Code, w.Body.String())
	}
	rotated := decodeBody(t, w)["tokens"].(map[string]any)
	if rotated["refresh_token"].(string) == refresh {
		t.Fatalf("refresh must rotate the token")
	}

	// el refresh usado ya no sirve
	w = f.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh: status %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/logout", "", gin.H{
		"refresh_token": rotated["refresh_token"].(string),
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/auth/refresh", "", gin.H{
		"refresh_token": rotated["refresh_token"].(string),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/messages/conversations"},
		{http.MethodGet, "/messages/unread-count"},
		{http.MethodGet, "/waitlist/me"},
		{http.MethodGet, "/notifications"},
		{http.MethodGet, "/auth/me"},
	} {
		w := f.do(t, route.method, route.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: status %d", route.method, route.path, w.Code)
		}
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	f := newAPIFixture(t)

	_, studentToken := f.registerUser(t, "student@example.com", "Student", "")
	_, adminToken := f.registerUser(t, "admin@example.com", "Admin", domain.RoleAdmin)

	w := f.do(t, http.MethodGet, "/users", studentToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("student on admin route: status %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list users: status %d body %s", w.Code, w.Body.String())
	}
}

func TestWaitlistEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	userID, token := f.registerUser(t, "student@example.com", "Student", "")
	_, adminToken := f.registerUser(t, "admin@example.com", "Admin", domain.RoleAdmin)

	f.waitlist.cabins["cab-1"] = domain.Cabin{
		ID:            "cab-1",
		ReadingRoomID: "room-1",
		Number:        "12",
		Status:        domain.CabinOccupied,
	}

	w := f.do(t, http.MethodPost, "/waitlist", token, gin.H{
		"cabin_id":        "cab-1",
		"reading_room_id": "room-1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("join waitlist: status %d body %s", w.Code, w.Body.String())
	}
	entry := decodeBody(t, w)
	if entry["user_id"] != userID {
		t.Fatalf("unexpected entry owner: %v", entry)
	}

	w = f.do(t, http.MethodPost, "/waitlist", token, gin.H{
		"cabin_id":        "cab-1",
		"reading_room_id": "room-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate join: status %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/waitlist/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list waitlist: status %d", w.Code)
	}

	// liberar la cabina es ruta de admin
	w = f.do(t, http.MethodPut, "/cabins/cab-1/release", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("student release: status %d", w.Code)
	}
	w = f.do(t, http.MethodPut, "/cabins/cab-1/release", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin release: status %d body %s", w.Code, w.Body.String())
	}
	released := decodeBody(t, w)
	if released["notified"].(float64) != 1 {
		t.Fatalf("expected 1 notified, got %v", released)
	}

	entryID := entry["id"].(string)
	w = f.do(t, http.MethodDelete, "/waitlist/"+entryID, token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("leave waitlist: status %d", w.Code)
	}
	w = f.do(t, http.MethodDelete, "/waitlist/"+entryID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("leave twice: status %d", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	userID, token := f.registerUser(t, "student@example.com", "Student", "")
	f.notifs.notifications["n1"] = domain.Notification{
		ID:        "n1",
		UserID:    userID,
		Title:     "New message from Alice",
		Kind:      domain.NotificationInfo,
		CreatedAt: time.Now().UTC(),
	}

	w := f.do(t, http.MethodGet, "/notifications", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list notifications: status %d", w.Code)
	}
	list := decodeBody(t, w)["notifications"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}

	w = f.do(t, http.MethodPut, "/notifications/n1/read", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark notification read: status %d", w.Code)
	}
	if !f.notifs.notifications["n1"].Read {
		t.Fatalf("notification must be read")
	}

	w = f.do(t, http.MethodPut, "/notifications/missing/read", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing notification: status %d", w.Code)
	}
}
