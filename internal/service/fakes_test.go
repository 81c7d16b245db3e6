package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/internal/repository"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

// memDB is an in-memory store whose primitives keep the same atomicity as
// the SQL statements they stand in for: each method runs under one lock.
type memDB struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*models.User
	badges      []models.Badge
	programs    map[string]*models.Program
	enrollments map[string]*models.Enrollment
	posts       map[string]*models.Post
	comments    map[string]*models.Comment
	likes       map[string]map[string]bool
}

func newMemDB() *memDB {
	return &memDB{
		users:       make(map[string]*models.User),
		programs:    make(map[string]*models.Program),
		enrollments: make(map[string]*models.Enrollment),
		posts:       make(map[string]*models.Post),
		comments:    make(map[string]*models.Comment),
		likes:       make(map[string]map[string]bool),
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) addUser(id string, role models.UserRole) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &models.User{ID: id, Email: id + "@example.com", Name: "User " + id, Role: role, CommunityLevel: 1, CommunityTitle: "Bronze"}
	db.users[id] = u
	return u
}

func (db *memDB) addProgram(id string, capacity, enrolled int) *models.Program {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := &models.Program{ID: id, Title: "Program " + id, Capacity: capacity, EnrolledCount: enrolled, IsActive: true}
	db.programs[id] = p
	return p
}

func (db *memDB) enrolledCount(programID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.programs[programID].EnrolledCount
}

func (db *memDB) heldSeats(programID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, e := range db.enrollments {
		if e.ProgramID == programID && e.CapacityHeld {
			n++
		}
	}
	return n
}

func (db *memDB) badgeCount(userID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.badges {
		if b.UserID == userID {
			n++
		}
	}
	return n
}

func (db *memDB) user(id string) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.users[id]
}

// fakeTx runs fn directly; tests rely on services checking before writing.
type fakeTx struct {
	calls int
	mu    sync.Mutex
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx sqlx.ExtContext) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx, nil)
}

type fakeJobs struct {
	mu       sync.Mutex
	jobs     []string
	payloads []interface{}
	err      error
}

func (f *fakeJobs) Submit(jobType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, jobType)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeJobs) last() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return nil
	}
	return f.payloads[len(f.payloads)-1]
}

func (f *fakeJobs) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.jobs...)
}

// memLedger implements ledgerStore.
type memLedger struct{ db *memDB }

func (l memLedger) AddExperience(ctx context.Context, _ sqlx.ExtContext, userID string, points int, at time.Time) (int, int, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return 0, 0, sql.ErrNoRows
	}
	u.Experience += points
	u.LastActiveAt = &at
	return u.Experience, u.CommunityLevel, nil
}

func (l memLedger) PromoteLevel(ctx context.Context, _ sqlx.ExtContext, userID string, level int, title string, at time.Time) (bool, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok || u.CommunityLevel >= level {
		return false, nil
	}
	u.CommunityLevel = level
	u.CommunityTitle = title
	return true, nil
}

func (l memLedger) LockLevel(ctx context.Context, _ sqlx.ExtContext, userID string) (int, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return u.CommunityLevel, nil
}

func (l memLedger) SetExperience(ctx context.Context, _ sqlx.ExtContext, userID string, exp, level int, title string, at time.Time) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.Experience, u.CommunityLevel, u.CommunityTitle = exp, level, title
	return nil
}

func (l memLedger) InsertBadge(ctx context.Context, _ sqlx.ExtContext, badge *models.Badge) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	badge.ID = l.db.nextID("badge")
	l.db.badges = append(l.db.badges, *badge)
	return nil
}

func (l memLedger) ListBadges(ctx context.Context, userID string, limit int) ([]models.Badge, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	out := make([]models.Badge, 0)
	for i := len(l.db.badges) - 1; i >= 0 && len(out) < limit; i-- {
		if l.db.badges[i].UserID == userID {
			out = append(out, l.db.badges[i])
		}
	}
	return out, nil
}

func (l memLedger) Experience(ctx context.Context, userID string) (int, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return u.Experience, nil
}

// memPrograms implements seatStore.
type memPrograms struct{ db *memDB }

func (p memPrograms) FindForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Program, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	prog, ok := p.db.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *prog
	return &cp, nil
}

func (p memPrograms) ReserveSeat(ctx context.Context, _ sqlx.ExtContext, id string) (bool, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	prog, ok := p.db.programs[id]
	if !ok || prog.EnrolledCount >= prog.Capacity {
		return false, nil
	}
	prog.EnrolledCount++
	return true, nil
}

func (p memPrograms) ReleaseSeat(ctx context.Context, _ sqlx.ExtContext, id string) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	if prog, ok := p.db.programs[id]; ok && prog.EnrolledCount > 0 {
		prog.EnrolledCount--
	}
	return nil
}

func (p memPrograms) ReconcileSeats(ctx context.Context) ([]string, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	held := make(map[string]int)
	for _, e := range p.db.enrollments {
		if e.CapacityHeld {
			held[e.ProgramID]++
		}
	}
	ids := make([]string, 0)
	for id, prog := range p.db.programs {
		if prog.EnrolledCount != held[id] {
			prog.EnrolledCount = held[id]
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memEnrollments implements enrollmentStore and the account deletion hooks.
type memEnrollments struct{ db *memDB }

func (m memEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.EnrollmentDetail, 0)
	for _, e := range m.db.enrollments {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return m.FindForUpdate(ctx, nil, id)
}

func (m memEnrollments) FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := m.FindForUpdate(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, ProgramTitle: "Program " + e.ProgramID, UserName: "User " + e.UserID, UserEmail: e.UserID + "@example.com"}, nil
}

func (m memEnrollments) FindForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Enrollment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m memEnrollments) WishlistExists(ctx context.Context, _ sqlx.ExtContext, userID, programID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, e := range m.db.enrollments {
		if e.UserID == userID && e.ProgramID == programID && e.Status == models.EnrollmentStatusWishlist {
			return true, nil
		}
	}
	return false, nil
}

func (m memEnrollments) Create(ctx context.Context, _ sqlx.ExtContext, e *models.Enrollment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if e.ID == "" {
		e.ID = m.db.nextID("enr")
	}
	if e.PaymentStatus == "" {
		e.PaymentStatus = models.PaymentPending
	}
	cp := *e
	m.db.enrollments[e.ID] = &cp
	return nil
}

func (m memEnrollments) Activate(ctx context.Context, _ sqlx.ExtContext, e *models.Enrollment) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.enrollments[e.ID]
	if !ok || stored.Status != models.EnrollmentStatusWishlist {
		return false, nil
	}
	stored.Status = models.EnrollmentStatusPending
	stored.StudentInfo = e.StudentInfo
	stored.EmergencyContact = e.EmergencyContact
	stored.Notes = e.Notes
	return true, nil
}

func (m memEnrollments) Transition(ctx context.Context, _ sqlx.ExtContext, id string, from, to models.EnrollmentStatus, held bool) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.enrollments[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	stored.CapacityHeld = held
	return true, nil
}

func (m memEnrollments) Delete(ctx context.Context, _ sqlx.ExtContext, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.enrollments[id]; !ok {
		return false, nil
	}
	delete(m.db.enrollments, id)
	return true, nil
}

func (m memEnrollments) DeleteByUser(ctx context.Context, _ sqlx.ExtContext, userID string) ([]repository.HeldSeat, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	seats := make([]repository.HeldSeat, 0)
	for id, e := range m.db.enrollments {
		if e.UserID == userID {
			seats = append(seats, repository.HeldSeat{ProgramID: e.ProgramID, CapacityHeld: e.CapacityHeld})
			delete(m.db.enrollments, id)
		}
	}
	return seats, nil
}

func (m memEnrollments) UpdatePayment(ctx context.Context, id string, status models.PaymentStatus, method, notes string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	stored.PaymentStatus, stored.PaymentMethod, stored.Notes = status, method, notes
	return nil
}

func (m memEnrollments) put(e models.Enrollment) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.enrollments[e.ID] = &e
}

func (m memEnrollments) get(id string) (models.Enrollment, bool) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.enrollments[id]
	if !ok {
		return models.Enrollment{}, false
	}
	return *e, true
}

func (db *memDB) addPost(p models.Post) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.posts[p.ID] = &p
}

func (db *memDB) likeCount(postID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.likes[postID])
}

// memPosts implements postStore.
type memPosts struct{ db *memDB }

func (m memPosts) List(ctx context.Context, filter models.PostFilter) ([]models.Post, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.Post, 0)
	for _, p := range m.db.posts {
		if !p.IsPublished {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if p.IsPrivate && !filter.ViewerAdmin && p.AuthorID != filter.ViewerID {
			continue
		}
		cp := *p
		cp.LikesCount = len(m.db.likes[p.ID])
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memPosts) FindByID(ctx context.Context, id string) (*models.Post, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.posts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	cp.LikesCount = len(m.db.likes[id])
	return &cp, nil
}

func (m memPosts) Create(ctx context.Context, post *models.Post) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if post.ID == "" {
		post.ID = m.db.nextID("post")
	}
	cp := *post
	m.db.posts[post.ID] = &cp
	return nil
}

func (m memPosts) Update(ctx context.Context, post *models.Post) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.posts[post.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *post
	m.db.posts[post.ID] = &cp
	return nil
}

func (m memPosts) Delete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.posts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.posts, id)
	delete(m.db.likes, id)
	for cid, c := range m.db.comments {
		if c.PostID == id {
			delete(m.db.comments, cid)
		}
	}
	return nil
}

func (m memPosts) IncrementViews(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.posts[id]; ok {
		p.Views++
	}
	return nil
}

func (m memPosts) SetFeatured(ctx context.Context, id string, featured bool) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.posts[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.IsFeatured = featured
	return nil
}

func (m memPosts) AppendImages(ctx context.Context, id string, paths []string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.posts[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Images = append(p.Images, paths...)
	return nil
}

func (m memPosts) ToggleLike(ctx context.Context, _ sqlx.ExtContext, postID, userID string) (bool, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	set, ok := m.db.likes[postID]
	if !ok {
		set = make(map[string]bool)
		m.db.likes[postID] = set
	}
	liked := !set[userID]
	if liked {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	return liked, len(set), nil
}

func (m memPosts) CountPublishedByAuthor(ctx context.Context, authorID string) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, p := range m.db.posts {
		if p.AuthorID == authorID && p.IsPublished {
			n++
		}
	}
	return n, nil
}

func (m memPosts) CountLikesReceived(ctx context.Context, authorID string) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for id, p := range m.db.posts {
		if p.AuthorID == authorID && p.IsPublished {
			n += len(m.db.likes[id])
		}
	}
	return n, nil
}

func (m memPosts) ResetLikes(ctx context.Context, postID string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for id, set := range m.db.likes {
		if postID != "" && id != postID {
			continue
		}
		n += int64(len(set))
		delete(m.db.likes, id)
	}
	return n, nil
}

// memComments implements commentStore.
type memComments struct{ db *memDB }

func (m memComments) Create(ctx context.Context, comment *models.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	cp := *comment
	m.db.comments[comment.ID] = &cp
	return nil
}

func (m memComments) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m memComments) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.Comment, 0)
	for _, c := range m.db.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memComments) SoftDelete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[id]
	if !ok || c.IsDeleted {
		return sql.ErrNoRows
	}
	c.IsDeleted = true
	c.Content = ""
	return nil
}

func (m memComments) CountActiveByAuthor(ctx context.Context, authorID string) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, c := range m.db.comments {
		if c.AuthorID == authorID && !c.IsDeleted {
			n++
		}
	}
	return n, nil
}

// memStats implements activityStatsWriter.
type memStats struct{ db *memDB }

func (m memStats) StoreActivityStats(ctx context.Context, userID string, stats models.ActivityStats) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.PostsCount, u.CommentsCount, u.LikesReceived = stats.PostsCount, stats.CommentsCount, stats.LikesReceived
	return nil
}

// memCache implements CacheRepository with JSON round trips like Redis.
type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// memFiles implements fileStore.
type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  error
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (f *memFiles) Save(name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.files[name] = data
	return name, nil
}

func (f *memFiles) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *memFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// failingLedger rejects every grant.
type failingLedger struct{ calls int }

func (l *failingLedger) GrantExperience(ctx context.Context, accountID string, points int, reason string) (*models.LevelChange, error) {
	l.calls++
	return nil, errors.New("ledger unavailable")
}

// memUsers implements the account repositories. Delete mimics the foreign
// key cascades of the users table.
type memUsers struct {
	db     *memDB
	tokens map[string]*models.RefreshToken
}

func newMemUsers(db *memDB) *memUsers {
	return &memUsers{db: db, tokens: make(map[string]*models.RefreshToken)}
}

func (m *memUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range m.db.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetTokenExpires.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if user.ID == "" {
		user.ID = m.db.nextID("user")
	}
	user.CommunityLevel = 1
	user.CommunityTitle = models.TitleFor(1)
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Name, stored.Phone, stored.Role = user.Name, user.Phone, user.Role
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if u, ok := m.db.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash, u.ResetTokenExpires = nil, nil
	return nil
}

func (m *memUsers) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.ResetTokenHash, u.ResetTokenExpires = &tokenHash, &expiresAt
	return nil
}

func (m *memUsers) Delete(ctx context.Context, _ sqlx.ExtContext, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.users, id)
	for pid, p := range m.db.posts {
		if p.AuthorID == id {
			delete(m.db.posts, pid)
			delete(m.db.likes, pid)
		}
	}
	for cid, c := range m.db.comments {
		if c.AuthorID == id {
			delete(m.db.comments, cid)
		} else if _, ok := m.db.posts[c.PostID]; !ok {
			delete(m.db.comments, cid)
		}
	}
	for _, set := range m.db.likes {
		delete(set, id)
	}
	kept := m.db.badges[:0]
	for _, b := range m.db.badges {
		if b.UserID != id {
			kept = append(kept, b)
		}
	}
	m.db.badges = kept
	for tid, t := range m.tokens {
		if t.UserID == id {
			delete(m.tokens, tid)
		}
	}
	return nil
}

func (m *memUsers) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if token.ID == "" {
		token.ID = m.db.nextID("rt")
	}
	cp := *token
	m.tokens[token.ID] = &cp
	return nil
}

func (m *memUsers) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if t, ok := m.tokens[id]; ok && t.RevokedAt == nil {
		t.RevokedAt = &revokedAt
	}
	return nil
}

func (m *memUsers) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *memUsers) activeTokens(userID string) int {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}
