package service

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/queue"
	"github.com/iliyamo/todoer/internal/repository"
)

// memTodos is an in-memory TodoStore with the same owner scoping as the
// SQL repository.
type memTodos struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Todo
	writes int
}

func newMemTodos() *memTodos { return &memTodos{rows: map[uint64]model.Todo{}} }

func (s *memTodos) Insert(_ context.Context, t *model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.rows[t.ID] = *t
	s.writes++
	return nil
}

func (s *memTodos) GetByIDAndOwner(_ context.Context, id, owner uint64) (*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.OwnerID != owner {
		return nil, repository.ErrTodoNotFound
	}
	return &t, nil
}

func (s *memTodos) ListByOwner(_ context.Context, owner uint64, trashed bool) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Todo
	for _, t := range s.rows {
		if t.OwnerID == owner && t.IsDeleted() == trashed {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memTodos) Update(_ context.Context, t *model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return repository.ErrTodoNotFound
	}
	s.rows[t.ID] = *t
	s.writes++
	return nil
}

// memProviders is an in-memory ProviderStore and SiteStore.
type memProviders struct {
	nextID uint64
	byKey  map[string]*model.ProviderRegistration
	links  map[[2]uint64]bool
	sites  map[uint64]model.Site
}

func newMemProviders() *memProviders {
	return &memProviders{
		byKey: map[string]*model.ProviderRegistration{},
		links: map[[2]uint64]bool{},
		sites: map[uint64]model.Site{},
	}
}

func (s *memProviders) GetByProvider(_ context.Context, provider string) (*model.ProviderRegistration, error) {
	p, ok := s.byKey[provider]
	if !ok {
		return nil, repository.ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memProviders) Create(_ context.Context, p *model.ProviderRegistration) error {
	s.nextID++
	p.ID = s.nextID
	cp := *p
	s.byKey[p.Provider] = &cp
	return nil
}

func (s *memProviders) Update(_ context.Context, p *model.ProviderRegistration) error {
	if _, ok := s.byKey[p.Provider]; !ok {
		return repository.ErrProviderNotFound
	}
	cp := *p
	s.byKey[p.Provider] = &cp
	return nil
}

func (s *memProviders) AddSite(_ context.Context, registrationID, siteID uint64) error {
	s.links[[2]uint64{registrationID, siteID}] = true
	return nil
}

func (s *memProviders) GetOrCreate(_ context.Context, id uint64, domain, name string) (model.Site, bool, error) {
	if site, ok := s.sites[id]; ok {
		return site, false, nil
	}
	site := model.Site{ID: id, Domain: domain, Name: name}
	s.sites[id] = site
	return site, true, nil
}

// memUsers is an in-memory UserStore and SocialStore.
type memUsers struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]*model.User
	social   map[string]*model.SocialAccount
	reserved map[string]bool // usernames that exist without a user row
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uint64]*model.User{}, social: map[string]*model.SocialAccount{}, reserved: map[string]bool{}}
}

func (s *memUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved[username] {
		return true, nil
	}
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Username == u.Username {
			return repository.ErrUsernameExists
		}
		if u.Email != "" && other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	s.nextID++
	u.ID = s.nextID
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email != "" && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *memUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUsers) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	for k, a := range s.social {
		if a.UserID == id {
			delete(s.social, k)
		}
	}
	return nil
}

func (s *memUsers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memUsers) GetByProviderUID(_ context.Context, provider, uid string) (*model.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.social[provider+"/"+uid]
	if !ok {
		return nil, repository.ErrSocialAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memUsers) SocialCreate(_ context.Context, a *model.SocialAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Provider + "/" + a.UID
	if _, ok := s.social[key]; ok {
		return repository.ErrSocialAccountExists
	}
	cp := *a
	s.social[key] = &cp
	return nil
}

// socialView adapts memUsers to SocialStore, whose Create would clash
// with UserStore's.
type socialView struct{ *memUsers }

func (v socialView) Create(ctx context.Context, a *model.SocialAccount) error {
	return v.SocialCreate(ctx, a)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	ch chan queue.UserRegisteredEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ch: make(chan queue.UserRegisteredEvent, 8)}
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, ev queue.UserRegisteredEvent) error {
	p.ch <- ev
	return nil
}
