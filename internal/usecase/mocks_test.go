package usecase

import (
	"context"
	"time"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

type stubUserRepo struct {
	users map[string]*domain.User

	failureCalls []struct {
		ID          string
		Attempts    int
		LockedUntil *time.Time
	}
	successCalls  []string
	passwordCalls map[string]string
	deleted       []string
	patched       map[string]domain.UserPatch
	created       []domain.User
	createErr     error
	masterCount   int
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	repo := &stubUserRepo{
		users:         make(map[string]*domain.User),
		passwordCalls: make(map[string]string),
		patched:       make(map[string]domain.UserPatch),
	}
	for _, user := range users {
		repo.users[user.ID] = user
		if user.Role == domain.RoleMasterAdmin {
			repo.masterCount++
		}
	}
	return repo
}

func (r *stubUserRepo) Create(_ context.Context, user domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, user)
	copied := user
	r.users[user.ID] = &copied
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, *user)
	}
	return out, nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubUserRepo) ApplyPatch(_ context.Context, id string, patch domain.UserPatch) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	r.patched[id] = patch
	return nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, role domain.Role) (int, error) {
	count := 0
	for _, user := range r.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id string, hash string) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.passwordCalls[id] = hash
	user.PasswordHash = &hash
	user.LegacyPassword = nil
	return nil
}

func (r *stubUserRepo) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	r.failureCalls = append(r.failureCalls, struct {
		ID          string
		Attempts    int
		LockedUntil *time.Time
	}{id, attempts, lockedUntil})
	if user, ok := r.users[id]; ok {
		user.FailedAttempts = attempts
		user.LockedUntil = lockedUntil
	}
	return nil
}

func (r *stubUserRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	r.successCalls = append(r.successCalls, id)
	if user, ok := r.users[id]; ok {
		user.FailedAttempts = 0
		user.LockedUntil = nil
		user.LastAccess = &at
	}
	return nil
}

type stubIdentityRepo struct {
	byCIP      map[string]*domain.PatientIdentity
	byHash     map[string]*domain.PatientIdentity
	createErrs []error
	hashErrs   []error
	existsHits int
	created    []domain.PatientIdentity
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{
		byCIP:  make(map[string]*domain.PatientIdentity),
		byHash: make(map[string]*domain.PatientIdentity),
	}
}

func (r *stubIdentityRepo) Create(_ context.Context, identity domain.PatientIdentity) error {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	copied := identity
	r.byCIP[identity.CIP] = &copied
	r.byHash[identity.RUTHash] = &copied
	r.created = append(r.created, identity)
	return nil
}

func (r *stubIdentityRepo) GetByCIP(_ context.Context, cip string) (*domain.PatientIdentity, error) {
	identity, ok := r.byCIP[cip]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *stubIdentityRepo) GetByRUTHash(_ context.Context, hash string) (*domain.PatientIdentity, error) {
	if len(r.hashErrs) > 0 {
		err := r.hashErrs[0]
		r.hashErrs = r.hashErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	identity, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *stubIdentityRepo) ExistsCIP(_ context.Context, cip string) (bool, error) {
	if r.existsHits > 0 {
		r.existsHits--
		return true, nil
	}
	_, ok := r.byCIP[cip]
	return ok, nil
}

type stubApprovalRepo struct {
	requests    map[string]*domain.ApprovalRequest
	resolveErr  error
	pendingHint int
	countCalls  int
}

func newStubApprovalRepo() *stubApprovalRepo {
	return &stubApprovalRepo{requests: make(map[string]*domain.ApprovalRequest)}
}

func (r *stubApprovalRepo) Create(_ context.Context, request domain.ApprovalRequest) error {
	copied := request
	r.requests[request.ID] = &copied
	return nil
}

func (r *stubApprovalRepo) GetByID(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	request, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *request
	return &copied, nil
}

func (r *stubApprovalRepo) ListPending(_ context.Context, _ int) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	for _, request := range r.requests {
		if request.Status == domain.ApprovalPending {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (r *stubApprovalRepo) ListByRequester(_ context.Context, requesterID string, _ int) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	for _, request := range r.requests {
		if request.RequesterID == requesterID {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (r *stubApprovalRepo) CountPending(ctx context.Context) (int, error) {
	r.countCalls++
	if r.pendingHint > 0 {
		return r.pendingHint, nil
	}
	pending, _ := r.ListPending(ctx, 0)
	return len(pending), nil
}

func (r *stubApprovalRepo) MarkResolved(_ context.Context, id string, status domain.ApprovalStatus, resolver domain.Actor, reason string, at time.Time) error {
	if r.resolveErr != nil {
		return r.resolveErr
	}
	request, ok := r.requests[id]
	if !ok {
		return repository.ErrAlreadyResolved
	}
	if request.Status != domain.ApprovalPending {
		return repository.ErrAlreadyResolved
	}
	request.Status = status
	request.ResolverID = &resolver.ID
	request.ResolverName = &resolver.Name
	request.ResolvedAt = &at
	request.ResolutionReason = &reason
	return nil
}

type stubAuditRepo struct {
	entries   []domain.AuditEntry
	insertErr error
}

func (r *stubAuditRepo) Insert(_ context.Context, entry domain.AuditEntry) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) GetByID(_ context.Context, id string) (*domain.AuditEntry, error) {
	for i := range r.entries {
		if r.entries[i].ID == id {
			copied := r.entries[i]
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAuditRepo) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, entry := range r.entries {
		if filter.Category != "" && entry.Category != filter.Category {
			continue
		}
		if filter.ActorID != "" && (entry.ActorID == nil || *entry.ActorID != filter.ActorID) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *stubAuditRepo) lastEntry() *domain.AuditEntry {
	if len(r.entries) == 0 {
		return nil
	}
	return &r.entries[len(r.entries)-1]
}

type stubPublisher struct {
	events     []domain.SecurityEvent
	publishErr error
}

func (p *stubPublisher) Publish(_ context.Context, event domain.SecurityEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type stubPlaceRepo struct {
	places  map[string]*domain.Place
	deleted []string
	patched map[string]domain.PlacePatch
}

func newStubPlaceRepo(places ...*domain.Place) *stubPlaceRepo {
	repo := &stubPlaceRepo{
		places:  make(map[string]*domain.Place),
		patched: make(map[string]domain.PlacePatch),
	}
	for _, place := range places {
		repo.places[place.ID] = place
	}
	return repo
}

func (r *stubPlaceRepo) Create(_ context.Context, place domain.Place) error {
	copied := place
	r.places[place.ID] = &copied
	return nil
}

func (r *stubPlaceRepo) GetByID(_ context.Context, id string) (*domain.Place, error) {
	place, ok := r.places[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *place
	return &copied, nil
}

func (r *stubPlaceRepo) List(_ context.Context) ([]domain.Place, error) {
	out := make([]domain.Place, 0, len(r.places))
	for _, place := range r.places {
		out = append(out, *place)
	}
	return out, nil
}

func (r *stubPlaceRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.places[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.places, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubPlaceRepo) ApplyPatch(_ context.Context, id string, patch domain.PlacePatch) error {
	if _, ok := r.places[id]; !ok {
		return repository.ErrNotFound
	}
	r.patched[id] = patch
	return nil
}

type stubBackupStore struct {
	files   map[string]domain.BackupFile
	deleted []string
}

func newStubBackupStore(names ...string) *stubBackupStore {
	store := &stubBackupStore{files: make(map[string]domain.BackupFile)}
	for _, name := range names {
		store.files[name] = domain.BackupFile{Name: name, CreatedAt: time.Now().UTC()}
	}
	return store
}

func (s *stubBackupStore) List(_ context.Context) ([]domain.BackupFile, error) {
	out := make([]domain.BackupFile, 0, len(s.files))
	for _, file := range s.files {
		out = append(out, file)
	}
	return out, nil
}

func (s *stubBackupStore) Exists(_ context.Context, name string) (bool, error) {
	_, ok := s.files[name]
	return ok, nil
}

func (s *stubBackupStore) Delete(_ context.Context, name string) error {
	delete(s.files, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *stubBackupStore) Snapshot(_ context.Context) (domain.BackupFile, error) {
	file := domain.BackupFile{Name: "respaldo_test.sql.gz", CreatedAt: time.Now().UTC()}
	s.files[file.Name] = file
	return file, nil
}

type stubTransactor struct {
	calls int
}

func (t *stubTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type stubCounterCache struct {
	count       int
	warm        bool
	sets        []int
	invalidated int
}

func (c *stubCounterCache) Get(_ context.Context) (int, bool, error) {
	return c.count, c.warm, nil
}

func (c *stubCounterCache) Set(_ context.Context, count int) error {
	c.count = count
	c.warm = true
	c.sets = append(c.sets, count)
	return nil
}

func (c *stubCounterCache) Invalidate(_ context.Context) error {
	c.warm = false
	c.invalidated++
	return nil
}
