package service

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/cache"
	"github.com/taglink/taglink/internal/mailer"
	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository/sqlite"
)

const testBaseURL = "https://tags.example.com"

var testHashParams = auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeCache is an in-memory TagCache and PrincipalCache.
type fakeCache struct {
	mu         sync.Mutex
	tags       map[string]*model.CachedTag
	negative   map[string]bool
	gens       map[string]int
	scans      map[string]int64
	principals map[string]*model.Principal
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		tags:       make(map[string]*model.CachedTag),
		negative:   make(map[string]bool),
		gens:       make(map[string]int),
		scans:      make(map[string]int64),
		principals: make(map[string]*model.Principal),
	}
}

func (f *fakeCache) GetTag(_ context.Context, tagID string) (*model.CachedTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.tags[tagID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeCache) genLocked(tagID string) string {
	if n := f.gens[tagID]; n > 0 {
		return strconv.Itoa(n)
	}
	return ""
}

func (f *fakeCache) TagGeneration(_ context.Context, tagID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genLocked(tagID), nil
}

func (f *fakeCache) SetTag(_ context.Context, tag *model.Tag, gen string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.genLocked(tag.TagID) {
		return nil
	}
	f.tags[tag.TagID] = tag.ToCachedTag()
	delete(f.negative, tag.TagID)
	return nil
}

func (f *fakeCache) InvalidateTag(_ context.Context, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gens[tagID]++
	delete(f.tags, tagID)
	delete(f.negative, tagID)
	return nil
}

func (f *fakeCache) IsNegativelyCached(_ context.Context, tagID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.negative[tagID], nil
}

func (f *fakeCache) SetNegativeCache(_ context.Context, tagID, gen string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.genLocked(tagID) {
		return nil
	}
	f.negative[tagID] = true
	return nil
}

func (f *fakeCache) IncrementScans(_ context.Context, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[tagID]++
	return nil
}

func (f *fakeCache) DiscardScans(_ context.Context, tagID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scans, tagID)
	return nil
}

func (f *fakeCache) scanCount(tagID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans[tagID]
}

func (f *fakeCache) GetPrincipal(_ context.Context, tokenHash string) (*model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.principals[tokenHash], nil
}

func (f *fakeCache) SetPrincipal(_ context.Context, tokenHash string, p *model.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principals[tokenHash] = p
	return nil
}

func (f *fakeCache) DeletePrincipals(_ context.Context, hashes ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range hashes {
		delete(f.principals, h)
	}
	return nil
}

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type testEnv struct {
	store    *sqlite.Store
	cache    *fakeCache
	mail     *recordingMailer
	metrics  *metrics.InMemoryRecorder
	signer   *auth.ResetTokenSigner
	registry *TagRegistry
	resolver *Resolver
	accounts *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newTestStore(t)
	fc := newFakeCache()
	mail := &recordingMailer{}
	rec := metrics.NewInMemory()

	signer, err := auth.NewResetTokenSigner("test-secret")
	if err != nil {
		t.Fatalf("NewResetTokenSigner: %v", err)
	}

	registry := NewTagRegistry(store, fc, rec, nil)
	return &testEnv{
		store:    store,
		cache:    fc,
		mail:     mail,
		metrics:  rec,
		signer:   signer,
		registry: registry,
		resolver: NewResolver(registry, fc, nil, testBaseURL, rec, nil),
		accounts: newAccountService(store, fc, mail, signer, rec),
	}
}

func newAccountService(store *sqlite.Store, fc *fakeCache, mail mailer.Mailer, signer *auth.ResetTokenSigner, rec metrics.Recorder) *AccountService {
	return NewAccountService(AccountConfig{
		Accounts:    store,
		Sessions:    store,
		Principals:  fc,
		Hasher:      auth.NewPasswordHasher(testHashParams),
		ResetTokens: signer,
		Mailer:      mail,
		BaseURL:     testBaseURL + "/",
		Metrics:     rec,
	})
}

// registerAndLogin creates an account and returns its principal.
func (e *testEnv) registerAndLogin(t *testing.T, username string) *model.Principal {
	t.Helper()
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, username, username+"@example.com", "password123"); err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	res, err := e.accounts.Login(ctx, username, "password123")
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return res.Principal
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
