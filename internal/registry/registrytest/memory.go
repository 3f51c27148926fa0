// Package registrytest provides an in-memory implementation of the
// registry repositories for tests that run without Postgres.
package registrytest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lostfound/internal/models"
	"lostfound/internal/registry"
)

// Store holds every table in maps. InTx serializes transactions and
// restores a snapshot when fn fails, which is enough to mimic rollback.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users      map[uuid.UUID]models.User
	categories map[uuid.UUID]models.Category
	pending    map[uuid.UUID]models.PendingCategory
	items      map[uuid.UUID]models.Item
	holds      map[uuid.UUID]map[uuid.UUID]bool

	// Now stamps created rows. Defaults to time.Now.
	Now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      map[uuid.UUID]models.User{},
		categories: map[uuid.UUID]models.Category{},
		pending:    map[uuid.UUID]models.PendingCategory{},
		items:      map[uuid.UUID]models.Item{},
		holds:      map[uuid.UUID]map[uuid.UUID]bool{},
		Now:        time.Now,
	}
}

// Repos returns repositories backed by the store.
func (s *Store) Repos() registry.Repos {
	return registry.Repos{
		Items:      &itemRepo{s},
		Categories: &categoryRepo{s},
		Pending:    &pendingRepo{s},
		Users:      &userRepo{s},
	}
}

// InTx implements registry.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(registry.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.Repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users      map[uuid.UUID]models.User
	categories map[uuid.UUID]models.Category
	pending    map[uuid.UUID]models.PendingCategory
	items      map[uuid.UUID]models.Item
	holds      map[uuid.UUID]map[uuid.UUID]bool
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		users:      copyMap(s.users),
		categories: copyMap(s.categories),
		pending:    copyMap(s.pending),
		items:      copyMap(s.items),
		holds:      make(map[uuid.UUID]map[uuid.UUID]bool, len(s.holds)),
	}
	for k, v := range s.holds {
		snap.holds[k] = copyMap(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.categories = snap.categories
	s.pending = snap.pending
	s.items = snap.items
	s.holds = snap.holds
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AddCategory inserts an approved category directly, for test setup.
func (s *Store) AddCategory(name string, parent *uuid.UUID) models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Category{ID: uuid.New(), Name: name, Slug: strings.ToLower(name), ParentID: parent, CreatedAt: s.Now(), UpdatedAt: s.Now()}
	s.categories[c.ID] = c
	return c
}

// AddUser inserts an account directly, for test setup. The password is
// hashed at bcrypt.MinCost.
func (s *Store) AddUser(username string, role models.Role) models.User {
	u, _ := (&userRepo{s}).Create(context.Background(), username, username+"@usls.edu.ph", "password123", role)
	return *u
}

// AddItem inserts an item directly, for test setup. Zero ID and PubDate
// are filled in.
func (s *Store) AddItem(item models.Item) models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.PubDate.IsZero() {
		item.PubDate = s.Now()
	}
	if item.Status == "" {
		item.Status = models.DefaultStatus
	}
	s.items[item.ID] = item
	return item
}

// Item returns the stored row without virtual fields.
func (s *Store) Item(id uuid.UUID) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

// PendingNames returns the pending category names in creation order.
func (s *Store) PendingNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]models.PendingCategory, 0, len(s.pending))
	for _, p := range s.pending {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names
}

// CategoryNames returns every approved category name, sorted.
func (s *Store) CategoryNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// --- items ---

type itemRepo struct{ s *Store }

// decorate fills virtual fields. Caller holds s.mu.
func (r *itemRepo) decorate(it models.Item, viewer *uuid.UUID) models.Item {
	if it.CategoryID != nil {
		it.CategoryName = r.s.categories[*it.CategoryID].Name
	}
	if it.UploadedBy != nil {
		it.UploaderName = r.s.users[*it.UploadedBy].Username
	}
	it.HolderCount = len(r.s.holds[it.ID])
	it.HeldByViewer = viewer != nil && r.s.holds[it.ID][*viewer]
	return it
}

func (r *itemRepo) Search(_ context.Context, q models.ItemQuery) ([]models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	text := strings.ToLower(q.Text)
	cats := map[uuid.UUID]bool{}
	for _, id := range q.CategoryIDs {
		cats[id] = true
	}

	var out []models.Item
	for _, it := range r.s.items {
		if !q.IncludeRetrieved && it.Status == models.StatusRetrieved {
			continue
		}
		if text != "" && !matchesText(it, text) {
			continue
		}
		if len(cats) > 0 && (it.CategoryID == nil || !cats[*it.CategoryID]) {
			continue
		}
		if q.FoundDate != nil && !sameDay(it.FoundDate, *q.FoundDate) {
			continue
		}
		out = append(out, r.decorate(it, q.ViewerID))
	}

	sortKey := q.Sort
	if sortKey == "" {
		sortKey = models.DefaultSort
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.HeldFirst && a.HeldByViewer != b.HeldByViewer {
			return a.HeldByViewer
		}
		if c := compareField(a, b, sortKey.Field()); c != 0 {
			if sortKey.Descending() {
				return c > 0
			}
			return c < 0
		}
		return strings.Compare(a.ID.String(), b.ID.String()) < 0
	})
	return out, nil
}

func matchesText(it models.Item, text string) bool {
	if strings.Contains(strings.ToLower(it.Name), text) ||
		strings.Contains(strings.ToLower(it.FoundLocation), text) {
		return true
	}
	return it.PendingCategoryName != nil && strings.Contains(strings.ToLower(*it.PendingCategoryName), text)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var statusRank = map[models.ItemStatus]int{
	models.StatusNotAtRepository: 0,
	models.StatusAtRepository:    1,
	models.StatusRetrieved:       2,
}

func compareField(a, b models.Item, field string) int {
	switch field {
	case "found_date":
		return a.FoundDate.Compare(b.FoundDate)
	case "pub_date":
		return a.PubDate.Compare(b.PubDate)
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "status":
		return statusRank[a.Status] - statusRank[b.Status]
	}
	return 0
}

func (r *itemRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	it = r.decorate(it, nil)
	return &it, nil
}

// LockByID needs no lock of its own: InTx already serializes transactions.
func (r *itemRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return r.FindByID(ctx, id)
}

func (r *itemRepo) Create(_ context.Context, item *models.Item) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if (item.CategoryID == nil) == (item.PendingCategoryName == nil) {
		return nil, errors.New("item needs exactly one of category or pending category")
	}
	it := *item
	it.ID = uuid.New()
	if it.PubDate.IsZero() {
		it.PubDate = r.s.Now()
	}
	it.CategoryName, it.UploaderName, it.HeldByViewer, it.HolderCount = "", "", false, 0
	r.s.items[it.ID] = it
	out := r.decorate(it, nil)
	return &out, nil
}

func (r *itemRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.items, id)
	delete(r.s.holds, id)
	return nil
}

func (r *itemRepo) SetStatus(_ context.Context, id uuid.UUID, status models.ItemStatus, retrievedBy *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return nil
	}
	it.Status = status
	it.RetrievedBy = retrievedBy
	r.s.items[id] = it
	return nil
}

func (r *itemRepo) ToggleHold(_ context.Context, itemID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.holds[itemID]
	if set[userID] {
		delete(set, userID)
		return false, nil
	}
	if set == nil {
		set = map[uuid.UUID]bool{}
		r.s.holds[itemID] = set
	}
	set[userID] = true
	return true, nil
}

func (r *itemRepo) AssignPending(_ context.Context, pendingName string, categoryID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, it := range r.s.items {
		if it.PendingCategoryName != nil && strings.EqualFold(*it.PendingCategoryName, pendingName) {
			cid := categoryID
			it.CategoryID = &cid
			it.PendingCategoryName = nil
			r.s.items[id] = it
			n++
		}
	}
	return n, nil
}

func (r *itemRepo) ClearPending(_ context.Context, pendingName string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, it := range r.s.items {
		if it.PendingCategoryName != nil && strings.EqualFold(*it.PendingCategoryName, pendingName) {
			it.PendingCategoryName = nil
			r.s.items[id] = it
			n++
		}
	}
	return n, nil
}

func (r *itemRepo) CountByCategory(_ context.Context, categoryID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, it := range r.s.items {
		if it.CategoryID != nil && *it.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *itemRepo) ListByUploader(_ context.Context, userID uuid.UUID) ([]models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Item
	for _, it := range r.s.items {
		if it.IsUploadedBy(userID) {
			out = append(out, r.decorate(it, &userID))
		}
	}
	sortByPubDateDesc(out)
	return out, nil
}

func (r *itemRepo) ListHeldBy(_ context.Context, userID uuid.UUID) ([]models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Item
	for id, set := range r.s.holds {
		if set[userID] {
			if it, ok := r.s.items[id]; ok {
				out = append(out, r.decorate(it, &userID))
			}
		}
	}
	sortByPubDateDesc(out)
	return out, nil
}

func sortByPubDateDesc(items []models.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].PubDate.After(items[j].PubDate) })
}

// --- categories ---

type categoryRepo struct{ s *Store }

func (r *categoryRepo) List(_ context.Context) ([]models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// FlatTree returns categories depth-first with Depth set.
func (r *categoryRepo) FlatTree(ctx context.Context) ([]models.Category, error) {
	all, _ := r.List(ctx)
	byParent := map[uuid.UUID][]models.Category{}
	var roots []models.Category
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}
	var out []models.Category
	var walk func(cs []models.Category, depth int)
	walk = func(cs []models.Category, depth int) {
		for _, c := range cs {
			c.Depth = depth
			out = append(out, c)
			walk(byParent[c.ID], depth+1)
		}
	}
	walk(roots, 0)
	return out, nil
}

func (r *categoryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *categoryRepo) FindByName(_ context.Context, name string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.findByName(name), nil
}

func (r *categoryRepo) findByName(name string) *models.Category {
	for _, c := range r.s.categories {
		if strings.EqualFold(c.Name, name) {
			return &c
		}
	}
	return nil
}

func (r *categoryRepo) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.findByName(c.Name) != nil {
		return nil, errors.New("duplicate category name")
	}
	out := *c
	out.ID = uuid.New()
	out.CreatedAt = r.s.Now()
	out.UpdatedAt = out.CreatedAt
	r.s.categories[out.ID] = out
	return &out, nil
}

func (r *categoryRepo) GetOrCreate(_ context.Context, name string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.findByName(name); c != nil {
		return c, nil
	}
	c := models.Category{ID: uuid.New(), Name: name, Slug: strings.ToLower(name), CreatedAt: r.s.Now(), UpdatedAt: r.s.Now()}
	r.s.categories[c.ID] = c
	return &c, nil
}

func (r *categoryRepo) CountChildren(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *categoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.categories, id)
	return nil
}

// --- pending categories ---

type pendingRepo struct{ s *Store }

func (r *pendingRepo) List(_ context.Context) ([]models.PendingCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.PendingCategory, 0, len(r.s.pending))
	for _, p := range r.s.pending {
		for _, it := range r.s.items {
			if it.PendingCategoryName != nil && strings.EqualFold(*it.PendingCategoryName, p.Name) {
				p.ItemCount++
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *pendingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PendingCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pending[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// LockByID needs no lock of its own: InTx already serializes transactions.
func (r *pendingRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.PendingCategory, error) {
	return r.FindByID(ctx, id)
}

func (r *pendingRepo) GetOrCreate(_ context.Context, name string) (*models.PendingCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.pending {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	// Keep creation order strict even when the clock does not advance.
	created := r.s.Now().Add(time.Duration(len(r.s.pending)) * time.Nanosecond)
	p := models.PendingCategory{ID: uuid.New(), Name: name, CreatedAt: created}
	r.s.pending[p.ID] = p
	return &p, nil
}

func (r *pendingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pending, id)
	return nil
}

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) List(_ context.Context) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *userRepo) Create(_ context.Context, username, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    r.s.Now(),
		UpdatedAt:    r.s.Now(),
	}
	r.s.users[u.ID] = u
	return &u, nil
}

func (r *userRepo) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (r *userRepo) SetTOTPSecret(_ context.Context, userID uuid.UUID, secret string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	u.TOTPSecret = &secret
	u.TOTPEnabled = false
	r.s.users[userID] = u
	return nil
}

func (r *userRepo) EnableTOTP(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	u.TOTPEnabled = true
	r.s.users[userID] = u
	return nil
}
