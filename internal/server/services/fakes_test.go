package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	sessionsrepo "github.com/dmitrijs2005/chatauth/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

// newTxDB returns a real *sql.DB so dbx.WithTx can begin and commit. The
// fake repositories below keep their state in memory and ignore the tx, so
// rollback behaviour is covered by the sqlmock tests in identity_tx_test.go.
// The pool is left unbounded so concurrent callers hold overlapping
// transactions.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// memStore is an in-memory credential and session store with the same
// uniqueness and expiry rules as the Postgres schema.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int
	users    map[string]*models.User
	sessions map[string]*models.Session

	// errs injects a failure for the named method.
	errs map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		now:      time.Now,
		users:    map[string]*models.User{},
		sessions: map[string]*models.Session{},
		errs:     map[string]error{},
	}
}

func (m *memStore) fail(method string) error {
	return m.errs[method]
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copySession(s *models.Session) *models.Session {
	c := *s
	return &c
}

func (m *memStore) userWhere(pred func(u *models.User) bool) (*models.User, error) {
	for _, u := range m.users {
		if pred(u) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memRepoManager struct {
	store *memStore
}

func (r *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (r *memRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return &memUsers{r.store} }
func (r *memRepoManager) Sessions(dbx.DBTX) sessionsrepo.Repository    { return &memSessions{r.store} }

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, fmt.Errorf("%w: users_email_key", common.ErrConflict)
		}
		if existing.Username == u.Username {
			return nil, fmt.Errorf("%w: users_username_key", common.ErrConflict)
		}
	}
	u.ID = uuid.NewString()
	u.IsVerified = false
	u.Status = models.StatusOffline
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = copyUser(u)
	return u, nil
}

func (r *memUsers) find(method string, pred func(u *models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(method); err != nil {
		return nil, err
	}
	u, err := r.s.userWhere(pred)
	if err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

func (r *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	return r.find("FindByID", func(u *models.User) bool { return u.ID == id })
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find("FindByEmail", func(u *models.User) bool { return u.Email == email })
}

func (r *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find("FindByUsername", func(u *models.User) bool { return u.Username == username })
}

func (r *memUsers) FindByVerificationToken(_ context.Context, h string) (*models.User, error) {
	return r.find("FindByVerificationToken", func(u *models.User) bool {
		return u.VerificationTokenHash != nil && *u.VerificationTokenHash == h
	})
}

func (r *memUsers) FindByResetToken(_ context.Context, h string) (*models.User, error) {
	now := r.s.now()
	return r.find("FindByResetToken", func(u *models.User) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == h &&
			u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
	})
}

func (r *memUsers) MarkVerified(_ context.Context, h string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("MarkVerified"); err != nil {
		return nil, err
	}
	u, err := r.s.userWhere(func(u *models.User) bool {
		return u.VerificationTokenHash != nil && *u.VerificationTokenHash == h
	})
	if err != nil {
		return nil, err
	}
	u.IsVerified = true
	u.VerificationTokenHash = nil
	return copyUser(u), nil
}

func (r *memUsers) update(method, id string, fn func(u *models.User)) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(method); err != nil {
		return 0, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return 0, nil
	}
	fn(u)
	u.UpdatedAt = r.s.now()
	return 1, nil
}

func (r *memUsers) SetVerificationToken(_ context.Context, id, h string) (int64, error) {
	r.s.mu.Lock()
	u, ok := r.s.users[id]
	verified := ok && u.IsVerified
	r.s.mu.Unlock()
	if verified {
		return 0, nil
	}
	return r.update("SetVerificationToken", id, func(u *models.User) { u.VerificationTokenHash = &h })
}

func (r *memUsers) UpdatePasswordDigest(_ context.Context, id, digest string) (int64, error) {
	return r.update("UpdatePasswordDigest", id, func(u *models.User) { u.PasswordHash = digest })
}

func (r *memUsers) SetResetToken(_ context.Context, id, h string, expiresAt time.Time) (int64, error) {
	return r.update("SetResetToken", id, func(u *models.User) {
		u.ResetTokenHash = &h
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (r *memUsers) ClearResetToken(_ context.Context, id string) (int64, error) {
	return r.update("ClearResetToken", id, func(u *models.User) {
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
	})
}

func (r *memUsers) TouchLastLogin(_ context.Context, id string) (int64, error) {
	now := r.s.now()
	return r.update("TouchLastLogin", id, func(u *models.User) { u.LastLoginAt = &now })
}

func (r *memUsers) UpdateStatus(_ context.Context, id string, status models.UserStatus) (int64, error) {
	return r.update("UpdateStatus", id, func(u *models.User) { u.Status = status })
}

type memSessions struct{ s *memStore }

func (r *memSessions) Create(_ context.Context, sess *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("SessionCreate"); err != nil {
		return err
	}
	if _, dup := r.s.sessions[sess.RefreshTokenHash]; dup {
		return fmt.Errorf("%w: sessions_refresh_token_key", common.ErrConflict)
	}
	r.s.nextID++
	sess.ID = fmt.Sprintf("s-%d", r.s.nextID)
	sess.CreatedAt = r.s.now()
	r.s.sessions[sess.RefreshTokenHash] = copySession(sess)
	return nil
}

func (r *memSessions) FindActive(_ context.Context, h string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[h]
	if !ok || !sess.IsValid(r.s.now()) {
		return nil, common.ErrorNotFound
	}
	return copySession(sess), nil
}

func (r *memSessions) ConsumeActive(_ context.Context, h string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ConsumeActive"); err != nil {
		return nil, err
	}
	sess, ok := r.s.sessions[h]
	if !ok || !sess.IsValid(r.s.now()) {
		return nil, common.ErrorNotFound
	}
	delete(r.s.sessions, h)
	return sess, nil
}

func (r *memSessions) DeleteByToken(_ context.Context, h string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[h]; !ok {
		return 0, nil
	}
	delete(r.s.sessions, h)
	return 1, nil
}

func (r *memSessions) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("DeleteAllForUser"); err != nil {
		return 0, err
	}
	var n int64
	for h, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (r *memSessions) ListActiveForUser(_ context.Context, userID string) ([]*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Session, 0)
	now := r.s.now()
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.IsValid(now) {
			out = append(out, copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memSessions) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	now := r.s.now()
	for h, sess := range r.s.sessions {
		if !sess.IsValid(now) {
			delete(r.s.sessions, h)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	kind     string
	to       string
	username string
	token    string
}

// recordingNotifier captures what would have been emailed.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	ok   bool
}

func newRecordingNotifier() *recordingNotifier { return &recordingNotifier{ok: true} }

func (n *recordingNotifier) record(m sentMail) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return n.ok
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, to, username, token string) bool {
	return n.record(sentMail{"verification", to, username, token})
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, username, token string) bool {
	return n.record(sentMail{"reset", to, username, token})
}

func (n *recordingNotifier) SendWelcomeEmail(_ context.Context, to, username string) bool {
	return n.record(sentMail{"welcome", to, username, ""})
}

func (n *recordingNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) last(kind string) sentMail {
	all := n.byKind(kind)
	if len(all) == 0 {
		return sentMail{}
	}
	return all[len(all)-1]
}

// countingHasher wraps a real hasher and counts comparisons.
type countingHasher struct {
	inner interface {
		Hash(string) (string, error)
		Compare(string, string) bool
	}
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Hash(p string) (string, error) { return h.inner.Hash(p) }

func (h *countingHasher) Compare(p, d string) bool {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.inner.Compare(p, d)
}
