package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"herald/events"
	"herald/models"
)

// FakeBotUserID is the user ID the fake gateway reacts as
const FakeBotUserID int64 = 1

// MemoryStore is an in-memory stand-in for the database used by service tests.
// Writes apply immediately and are undone by Rollback or a failed Commit; row
// locks taken with the ForUpdate getters are held until the unit of work ends.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	giveaways    map[models.MessageKey]*models.Giveaway
	reactRoles   map[models.MessageKey]*models.ReactRoleMessage
	verification *models.VerificationPrompt
	sticky       map[int64]*models.StickyChannel

	rowLocksMu sync.Mutex
	rowLocks   map[string]*sync.Mutex

	// FailCommits makes the next n commits fail
	FailCommits int
	commits     int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		giveaways:  make(map[models.MessageKey]*models.Giveaway),
		reactRoles: make(map[models.MessageKey]*models.ReactRoleMessage),
		sticky:     make(map[int64]*models.StickyChannel),
		rowLocks:   make(map[string]*sync.Mutex),
	}
}

// Factory returns a unit of work factory over the store publishing to bus (may be nil)
func (s *MemoryStore) Factory(bus *events.Bus) UnitOfWorkFactory {
	return &memoryUoWFactory{store: s, bus: bus}
}

// Giveaways returns a copy of every stored giveaway
func (s *MemoryStore) Giveaways() []*models.Giveaway {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Giveaway, 0, len(s.giveaways))
	for _, g := range s.giveaways {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// Commits returns how many units of work committed successfully
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryStore) rowLock(name string) *sync.Mutex {
	s.rowLocksMu.Lock()
	defer s.rowLocksMu.Unlock()

	l, ok := s.rowLocks[name]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[name] = l
	}
	return l
}

type memoryUoWFactory struct {
	store *MemoryStore
	bus   *events.Bus
}

func (f *memoryUoWFactory) Create() UnitOfWork {
	return &memoryUoW{store: f.store, bus: events.NewTransactionalBus(f.bus)}
}

type memoryUoW struct {
	store  *MemoryStore
	bus    *events.TransactionalBus
	ctx    context.Context
	active bool
	held   map[string]*sync.Mutex
	undo   []func()
}

func (u *memoryUoW) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}
	u.active = true
	u.ctx = ctx
	u.held = make(map[string]*sync.Mutex)
	u.undo = nil
	return nil
}

func (u *memoryUoW) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}
	defer u.end()

	u.store.mu.Lock()
	if u.store.FailCommits > 0 {
		u.store.FailCommits--
		u.rollbackLocked()
		u.store.mu.Unlock()
		u.bus.Discard()
		return fmt.Errorf("commit failed")
	}
	u.store.commits++
	u.undo = nil
	u.store.mu.Unlock()

	return u.bus.Flush(u.ctx)
}

func (u *memoryUoW) Rollback() error {
	if !u.active {
		return nil
	}
	u.store.mu.Lock()
	u.rollbackLocked()
	u.store.mu.Unlock()

	u.bus.Discard()
	u.end()
	return nil
}

// rollbackLocked reverts this unit's writes; the store mutex must be held
func (u *memoryUoW) rollbackLocked() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

// onRollback registers how to revert a write; the store mutex must be held
func (u *memoryUoW) onRollback(fn func()) {
	u.undo = append(u.undo, fn)
}

func (u *memoryUoW) end() {
	u.active = false
	for _, l := range u.held {
		l.Unlock()
	}
	u.held = nil
}

// lock takes a row lock for the rest of the unit of work
func (u *memoryUoW) lock(name string) {
	if _, ok := u.held[name]; ok {
		return
	}
	l := u.store.rowLock(name)
	l.Lock()
	u.held[name] = l
}

func (u *memoryUoW) GiveawayRepository() GiveawayRepository {
	u.mustBeActive()
	return &memoryGiveawayRepo{uow: u}
}

func (u *memoryUoW) ReactRoleRepository() ReactRoleRepository {
	u.mustBeActive()
	return &memoryReactRoleRepo{uow: u}
}

func (u *memoryUoW) VerificationRepository() VerificationRepository {
	u.mustBeActive()
	return &memoryVerificationRepo{uow: u}
}

func (u *memoryUoW) StickyChannelRepository() StickyChannelRepository {
	u.mustBeActive()
	return &memoryStickyRepo{uow: u}
}

func (u *memoryUoW) EventBus() EventPublisher {
	return u.bus
}

func (u *memoryUoW) mustBeActive() {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
}

type memoryGiveawayRepo struct {
	uow *memoryUoW
}

func (r *memoryGiveawayRepo) Create(ctx context.Context, g *models.Giveaway) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.giveaways {
		if key.MessageID == g.MessageID {
			return fmt.Errorf("giveaway for message %d: %w", g.MessageID, ErrDuplicateKey)
		}
	}
	s.nextID++
	g.ID = s.nextID
	g.CreatedAt = time.Now()
	cp := *g
	key := g.Key()
	s.giveaways[key] = &cp
	r.uow.onRollback(func() { delete(s.giveaways, key) })
	return nil
}

func (r *memoryGiveawayRepo) GetByKey(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.giveaways[key]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *memoryGiveawayRepo) GetByKeyForUpdate(ctx context.Context, key models.MessageKey) (*models.Giveaway, error) {
	r.uow.lock("giveaway:" + key.String())
	return r.GetByKey(ctx, key)
}

func (r *memoryGiveawayRepo) GetAll(ctx context.Context) ([]*models.Giveaway, error) {
	return r.uow.store.Giveaways(), nil
}

func (r *memoryGiveawayRepo) Update(ctx context.Context, key models.MessageKey, patch models.GiveawayPatch) (*models.Giveaway, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.giveaways[key]
	if !ok {
		return nil, nil
	}
	before := *g
	r.uow.onRollback(func() { *g = before })
	if patch.Prize != nil {
		g.Prize = *patch.Prize
	}
	if patch.WinnerCount != nil {
		g.WinnerCount = *patch.WinnerCount
	}
	if patch.Deadline != nil {
		g.Deadline = *patch.Deadline
	}
	cp := *g
	return &cp, nil
}

func (r *memoryGiveawayRepo) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.giveaways[key]
	if ok {
		delete(s.giveaways, key)
		r.uow.onRollback(func() { s.giveaways[key] = g })
	}
	return ok, nil
}

type memoryReactRoleRepo struct {
	uow *memoryUoW
}

func copyReactRoleMessage(m *models.ReactRoleMessage) *models.ReactRoleMessage {
	cp := *m
	cp.Bindings = slices.Clone(m.Bindings)
	return &cp
}

func (r *memoryReactRoleRepo) GetByMessage(ctx context.Context, key models.MessageKey) (*models.ReactRoleMessage, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.reactRoles[key]
	if !ok {
		return nil, nil
	}
	return copyReactRoleMessage(m), nil
}

func (r *memoryReactRoleRepo) GetAll(ctx context.Context) ([]*models.ReactRoleMessage, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ReactRoleMessage, 0, len(s.reactRoles))
	for _, m := range s.reactRoles {
		out = append(out, copyReactRoleMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (r *memoryReactRoleRepo) AddBinding(ctx context.Context, key models.MessageKey, binding models.ReactRoleBinding) (bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.reactRoles[key]
	if !ok {
		m = &models.ReactRoleMessage{ChannelID: key.ChannelID, MessageID: key.MessageID, CreatedAt: time.Now()}
		s.reactRoles[key] = m
		r.uow.onRollback(func() { delete(s.reactRoles, key) })
	}
	if m.HasBinding(binding) {
		return false, nil
	}
	before := slices.Clone(m.Bindings)
	r.uow.onRollback(func() { m.Bindings = before })
	m.Bindings = append(m.Bindings, binding)
	m.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryReactRoleRepo) RemoveRole(ctx context.Context, key models.MessageKey, roleID int64) ([]models.ReactRoleBinding, bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.reactRoles[key]
	if !ok {
		return nil, false, nil
	}

	before := slices.Clone(m.Bindings)
	r.uow.onRollback(func() {
		m.Bindings = before
		s.reactRoles[key] = m
	})

	var removed, kept []models.ReactRoleBinding
	for _, b := range m.Bindings {
		if b.RoleID == roleID {
			removed = append(removed, b)
		} else {
			kept = append(kept, b)
		}
	}
	m.Bindings = kept

	if len(kept) == 0 {
		delete(s.reactRoles, key)
		return removed, true, nil
	}
	return removed, false, nil
}

func (r *memoryReactRoleRepo) Delete(ctx context.Context, key models.MessageKey) (bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.reactRoles[key]
	if ok {
		delete(s.reactRoles, key)
		r.uow.onRollback(func() { s.reactRoles[key] = m })
	}
	return ok, nil
}

type memoryVerificationRepo struct {
	uow *memoryUoW
}

func (r *memoryVerificationRepo) EnsureExists(ctx context.Context) (bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verification != nil {
		return false, nil
	}
	s.verification = &models.VerificationPrompt{UpdatedAt: time.Now()}
	r.uow.onRollback(func() { s.verification = nil })
	return true, nil
}

func (r *memoryVerificationRepo) Get(ctx context.Context) (*models.VerificationPrompt, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verification == nil {
		return nil, nil
	}
	cp := *s.verification
	return &cp, nil
}

func (r *memoryVerificationRepo) GetForUpdate(ctx context.Context) (*models.VerificationPrompt, error) {
	r.uow.lock("verification")
	return r.Get(ctx)
}

func (r *memoryVerificationRepo) Set(ctx context.Context, channelID, messageID int64) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.verification
	r.uow.onRollback(func() { s.verification = before })
	s.verification = &models.VerificationPrompt{
		Present:   true,
		ChannelID: &channelID,
		MessageID: &messageID,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (r *memoryVerificationRepo) Clear(ctx context.Context) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.verification
	r.uow.onRollback(func() { s.verification = before })
	s.verification = &models.VerificationPrompt{UpdatedAt: time.Now()}
	return nil
}

type memoryStickyRepo struct {
	uow *memoryUoW
}

func (r *memoryStickyRepo) GetByChannel(ctx context.Context, channelID int64) (*models.StickyChannel, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.sticky[channelID]
	if !ok {
		return nil, nil
	}
	cp := *sc
	return &cp, nil
}

func (r *memoryStickyRepo) GetAll(ctx context.Context) ([]*models.StickyChannel, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.StickyChannel, 0, len(s.sticky))
	for _, sc := range s.sticky {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

func (r *memoryStickyRepo) Upsert(ctx context.Context, sticky *models.StickyChannel) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	channelID := sticky.ChannelID
	before, existed := s.sticky[channelID]
	r.uow.onRollback(func() {
		if existed {
			s.sticky[channelID] = before
		} else {
			delete(s.sticky, channelID)
		}
	})

	cp := *sticky
	cp.UpdatedAt = time.Now()
	s.sticky[channelID] = &cp
	return nil
}

func (r *memoryStickyRepo) Delete(ctx context.Context, channelID int64) (bool, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.sticky[channelID]
	if ok {
		delete(s.sticky, channelID)
		r.uow.onRollback(func() { s.sticky[channelID] = sc })
	}
	return ok, nil
}

// SentMessage is a message posted through the fake gateway
type SentMessage struct {
	ChannelID    int64
	MessageID    int64
	Announcement models.Announcement
}

type fakeMessage struct {
	reactions map[string][]models.Participant
}

// FakeGateway is an in-memory chat platform for service tests
type FakeGateway struct {
	mu          sync.Mutex
	nextID      int64
	messages    map[models.MessageKey]*fakeMessage
	roles       map[int64]map[int64]bool
	sent        []SentMessage
	unavailable bool
	mutations   int
	failSend    bool
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		nextID:   1000,
		messages: make(map[models.MessageKey]*fakeMessage),
		roles:    make(map[int64]map[int64]bool),
	}
}

// AddMessage creates a message as if a user posted it and returns its ID
func (g *FakeGateway) AddMessage(channelID int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addMessageLocked(channelID)
}

func (g *FakeGateway) addMessageLocked(channelID int64) int64 {
	g.nextID++
	g.messages[models.MessageKey{ChannelID: channelID, MessageID: g.nextID}] = &fakeMessage{
		reactions: make(map[string][]models.Participant),
	}
	return g.nextID
}

// RemoveMessage deletes a message out from under the bot
func (g *FakeGateway) RemoveMessage(key models.MessageKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.messages, key)
}

// HasMessage reports whether a message still exists
func (g *FakeGateway) HasMessage(key models.MessageKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.messages[key]
	return ok
}

// AddReaction records a reaction on a message
func (g *FakeGateway) AddReaction(key models.MessageKey, emoji string, p models.Participant) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.messages[key]; ok {
		emoji = models.NormalizeEmoji(emoji)
		m.reactions[emoji] = append(m.reactions[emoji], p)
	}
}

// SetUnavailable makes every call fail with ErrExternalUnavailable
func (g *FakeGateway) SetUnavailable(unavailable bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = unavailable
}

// SetSendFailure makes SendMessage fail while leaving other calls working
func (g *FakeGateway) SetSendFailure(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSend = fail
}

// Sent returns every message posted through SendMessage
func (g *FakeGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sent)
}

// SentWithTitle returns the posted messages whose title matches
func (g *FakeGateway) SentWithTitle(title string) []SentMessage {
	var out []SentMessage
	for _, m := range g.Sent() {
		if m.Announcement.Title == title {
			out = append(out, m)
		}
	}
	return out
}

// SetRole gives or takes a role without counting as a mutation
func (g *FakeGateway) SetRole(userID, roleID int64, has bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setRoleLocked(userID, roleID, has)
}

func (g *FakeGateway) setRoleLocked(userID, roleID int64, has bool) {
	if g.roles[userID] == nil {
		g.roles[userID] = make(map[int64]bool)
	}
	g.roles[userID][roleID] = has
}

// HasRole reports whether a member holds a role
func (g *FakeGateway) HasRole(userID, roleID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roles[userID][roleID]
}

// RoleMutations returns how many grant and revoke calls changed a role
func (g *FakeGateway) RoleMutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutations
}

func (g *FakeGateway) FetchMessage(ctx context.Context, channelID, messageID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	if _, ok := g.messages[models.MessageKey{ChannelID: channelID, MessageID: messageID}]; !ok {
		return ErrNotFound
	}
	return nil
}

func (g *FakeGateway) SendMessage(ctx context.Context, channelID int64, msg *models.Announcement) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable || g.failSend {
		return 0, ErrExternalUnavailable
	}
	id := g.addMessageLocked(channelID)
	g.sent = append(g.sent, SentMessage{ChannelID: channelID, MessageID: id, Announcement: *msg})
	return id, nil
}

func (g *FakeGateway) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	key := models.MessageKey{ChannelID: channelID, MessageID: messageID}
	if _, ok := g.messages[key]; !ok {
		return ErrNotFound
	}
	delete(g.messages, key)
	return nil
}

func (g *FakeGateway) React(ctx context.Context, channelID, messageID int64, emoji string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	m, ok := g.messages[models.MessageKey{ChannelID: channelID, MessageID: messageID}]
	if !ok {
		return ErrNotFound
	}
	emoji = models.NormalizeEmoji(emoji)
	for _, p := range m.reactions[emoji] {
		if p.UserID == FakeBotUserID {
			return nil
		}
	}
	m.reactions[emoji] = append(m.reactions[emoji], models.Participant{UserID: FakeBotUserID, Bot: true})
	return nil
}

func (g *FakeGateway) RemoveReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	m, ok := g.messages[models.MessageKey{ChannelID: channelID, MessageID: messageID}]
	if !ok {
		return ErrNotFound
	}
	delete(m.reactions, models.NormalizeEmoji(emoji))
	return nil
}

// Reactions returns the participants who reacted with emoji
func (g *FakeGateway) Reactions(key models.MessageKey, emoji string) []models.Participant {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.messages[key]
	if !ok {
		return nil
	}
	return slices.Clone(m.reactions[models.NormalizeEmoji(emoji)])
}

func (g *FakeGateway) FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji string) ([]models.Participant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return nil, ErrExternalUnavailable
	}
	m, ok := g.messages[models.MessageKey{ChannelID: channelID, MessageID: messageID}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(m.reactions[models.NormalizeEmoji(emoji)]), nil
}

func (g *FakeGateway) MemberHasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return false, ErrExternalUnavailable
	}
	return g.roles[userID][roleID], nil
}

func (g *FakeGateway) GrantRole(ctx context.Context, userID, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	g.mutations++
	g.setRoleLocked(userID, roleID, true)
	return nil
}

func (g *FakeGateway) RevokeRole(ctx context.Context, userID, roleID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unavailable {
		return ErrExternalUnavailable
	}
	g.mutations++
	g.setRoleLocked(userID, roleID, false)
	return nil
}

type manualTimer struct {
	fireAt time.Time
	fn     func()
}

// ManualScheduler records deadlines and only fires them when told to
type ManualScheduler struct {
	mu      sync.Mutex
	pending map[string]manualTimer
}

// NewManualScheduler creates an empty manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[string]manualTimer)}
}

func (s *ManualScheduler) Schedule(key string, fireAt time.Time, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.pending[key]
	s.pending[key] = manualTimer{fireAt: fireAt, fn: fn}
	return replaced
}

func (s *ManualScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[key]
	delete(s.pending, key)
	return ok
}

// Pending returns how many deadlines are armed
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Deadline returns when key is due to fire
func (s *ManualScheduler) Deadline(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[key]
	return t.fireAt, ok
}

// Fire runs the callback for key synchronously, reporting whether it was pending
func (s *ManualScheduler) Fire(key string) bool {
	s.mu.Lock()
	t, ok := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()

	if ok {
		t.fn()
	}
	return ok
}

// FireAll runs every pending callback synchronously and returns how many ran.
// Callbacks that re-arm themselves are left pending.
func (s *ManualScheduler) FireAll() int {
	s.mu.Lock()
	due := s.pending
	s.pending = make(map[string]manualTimer)
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}
