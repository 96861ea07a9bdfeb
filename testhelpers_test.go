package authkit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type memDirectory struct {
	mu    sync.Mutex
	byUID map[string]*Account

	failFind error
	failSet  error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byUID: make(map[string]*Account)}
}

func (d *memDirectory) add(account *Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if account.Version == 0 {
		account.Version = 1
	}
	d.byUID[account.UID] = account
}

func (d *memDirectory) get(uid string) *Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneAccount(d.byUID[uid])
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFind != nil {
		return nil, d.failFind
	}
	for _, account := range d.byUID {
		if account.Email == email {
			return cloneAccount(account), nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *memDirectory) FindByUID(_ context.Context, uid string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFind != nil {
		return nil, d.failFind
	}
	account, ok := d.byUID[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneAccount(account), nil
}

func (d *memDirectory) Create(_ context.Context, account *Account) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if account.UID == "" {
		account.UID = fmt.Sprintf("u%d", len(d.byUID)+1)
	}
	account.Version = 1
	d.byUID[account.UID] = cloneAccount(account)
	return account.UID, nil
}

func (d *memDirectory) SetTOTP(_ context.Context, uid string, enabled bool, secret []byte, expectVersion uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSet != nil {
		return d.failSet
	}
	account, ok := d.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	if account.Version != expectVersion {
		return ErrVersionConflict
	}
	account.TOTPEnabled = enabled
	account.TOTPSecret = append([]byte(nil), secret...)
	if secret == nil {
		account.TOTPSecret = nil
	}
	account.Version++
	return nil
}

func (d *memDirectory) SetBiometric(_ context.Context, uid string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSet != nil {
		return d.failSet
	}
	account, ok := d.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	account.BiometricEnabled = enabled
	account.Version++
	return nil
}

func (d *memDirectory) SetDisabled(_ context.Context, uid string, disabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSet != nil {
		return d.failSet
	}
	account, ok := d.byUID[uid]
	if !ok {
		return ErrUserNotFound
	}
	account.Disabled = disabled
	account.Version++
	return nil
}

func cloneAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	copied := *account
	copied.TOTPSecret = append([]byte(nil), account.TOTPSecret...)
	return &copied
}

type captureRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *captureRecorder) Log(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *captureRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *captureRecorder) last(t *testing.T) Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("expected at least one audit event")
	}
	return r.events[len(r.events)-1]
}

type failingRecorder struct{}

func (failingRecorder) Log(context.Context, Event) error {
	return fmt.Errorf("%w: sink down", ErrAuditDelivery)
}

type staticIssuer struct {
	token string
	err   error
}

func (i staticIssuer) IssueToken(context.Context, string, string, string) (string, error) {
	return i.token, i.err
}

func newTestEngine(t *testing.T, directory Directory, recorder Recorder) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := New().
		WithRedis(client).
		WithDirectory(directory).
		WithTokenIssuer(staticIssuer{token: "session-token"}).
		WithRecorder(recorder).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine, mr
}

func newTestEngineRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testAccount(t *testing.T, uid, email, password string) *Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &Account{
		UID:          uid,
		Email:        email,
		Username:     uid + "-name",
		PasswordHash: string(hash),
		Role:         "USER",
	}
}

func codeForNow(t *testing.T, secret []byte) string {
	t.Helper()

	code, err := hotpCode(secret, time.Now().Unix()/30, 6)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
