package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/models"
)

// fakeCache is an in-memory database.Cache for service tests. Error fields,
// when set, are returned by the corresponding operation.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
	ttls   map[string]time.Duration

	getErr    error
	setErr    error
	deleteErr error
	pushErr   error
	rangeErr  error
	expireErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]string),
		lists:  make(map[string][]string),
		ttls:   make(map[string]time.Duration),
	}
}

var _ database.Cache = (*fakeCache)(nil)

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	val, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrCacheMiss
	}
	return val, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.values, key)
	delete(c.lists, key)
	delete(c.ttls, key)
	return nil
}

func (c *fakeCache) PushRight(_ context.Context, key string, values ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	c.lists[key] = append(c.lists[key], values...)
	return nil
}

func (c *fakeCache) Range(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rangeErr != nil {
		return nil, c.rangeErr
	}
	list := c.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (c *fakeCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expireErr != nil {
		return c.expireErr
	}
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) ttl(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// fakeProfileRepo records SetFacts calls; the query methods serve a single
// stored profile.
type fakeProfileRepo struct {
	mu      sync.Mutex
	profile *models.Profile

	setFactsCalls int
	setFactsErr   error
	lastFacts     *models.AstrologicalFacts
}

func (r *fakeProfileRepo) Create(_ context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = profile
	return nil
}

func (r *fakeProfileRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil || r.profile.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return r.profile, nil
}

func (r *fakeProfileRepo) GetOwned(_ context.Context, userID, id uuid.UUID) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil || r.profile.ID != id || r.profile.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return r.profile, nil
}

func (r *fakeProfileRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil || r.profile.UserID != userID {
		return []*models.Profile{}, nil
	}
	return []*models.Profile{r.profile}, nil
}

func (r *fakeProfileRepo) Update(_ context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = profile
	return nil
}

func (r *fakeProfileRepo) Delete(_ context.Context, _, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = nil
	return nil
}

func (r *fakeProfileRepo) SetFacts(_ context.Context, _ uuid.UUID, facts *models.AstrologicalFacts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setFactsCalls++
	if r.setFactsErr != nil {
		return r.setFactsErr
	}
	r.lastFacts = facts
	return nil
}

// fakeConversationRepo is an in-memory append-only conversation log.
type fakeConversationRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.ChatSession
	messages map[uuid.UUID][]*models.ChatMessage
	nextID   int64

	appendErr error
	listErr   error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		sessions: make(map[uuid.UUID]*models.ChatSession),
		messages: make(map[uuid.UUID][]*models.ChatMessage),
	}
}

func (r *fakeConversationRepo) CreateSession(_ context.Context, session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeConversationRepo) GetOwnedSession(_ context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return session, nil
}

func (r *fakeConversationRepo) AppendExchange(_ context.Context, sessionID uuid.UUID, userText, agentText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	at := time.Now().UTC()
	r.nextID++
	r.messages[sessionID] = append(r.messages[sessionID], &models.ChatMessage{
		ID: r.nextID, SessionID: sessionID, Sender: models.SenderUser, Message: userText, CreatedAt: at,
	})
	r.nextID++
	r.messages[sessionID] = append(r.messages[sessionID], &models.ChatMessage{
		ID: r.nextID, SessionID: sessionID, Sender: models.SenderAgent, Message: agentText, CreatedAt: at.Add(time.Microsecond),
	})
	return nil
}

func (r *fakeConversationRepo) ListMessages(_ context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*models.ChatMessage, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	return out, nil
}
