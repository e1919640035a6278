package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
	maxNicknameRunes  = 16
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidNickname    = errors.New("invalid nickname")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Manager keeps accounts and sessions in memory. Live rooms do not survive a
// restart either, so nothing here is persisted.
type Manager struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	now           func() time.Time
	sessions      map[string]sessionRecord // token -> account
	accountsByID  map[uint64]accountRecord
	accountsByKey map[string]uint64 // normalized username -> account
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type accountRecord struct {
	AccountID     uint64
	Username      string
	Nickname      string
	PasswordHash  []byte
	Registered    bool
	LastLoginTime time.Time
}

func (a accountRecord) displayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	if a.Username != "" {
		return a.Username
	}
	return fmt.Sprintf("guest-%d", a.AccountID)
}

// NewManager returns an empty manager. ttl <= 0 uses thirty days.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Manager{
		nextAccountID: 100000,
		sessionTTL:    ttl,
		now:           time.Now,
		sessions:      make(map[string]sessionRecord),
		accountsByID:  make(map[uint64]accountRecord),
		accountsByKey: make(map[string]uint64),
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

// bcrypt ignores bytes past 72.
func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func normalizeNickname(nickname string) (string, error) {
	nickname = strings.Join(strings.Fields(nickname), " ")
	n := utf8.RuneCountInString(nickname)
	if n == 0 || n > maxNicknameRunes {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}

func (m *Manager) issueSessionLocked(accountID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{
		AccountID: accountID,
		ExpiresAt: now.Add(m.sessionTTL),
	}
	return token
}

func (m *Manager) resolveSessionLocked(token string, now time.Time) (uint64, bool) {
	if token == "" {
		return 0, false
	}
	rec, exists := m.sessions[token]
	if !exists {
		return 0, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return 0, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	return rec.AccountID, true
}

// Guest resumes the session behind token when it is still valid, renaming the
// account if a nickname is given. Otherwise it creates a guest account.
func (m *Manager) Guest(nickname, token string) (accountID uint64, sessionToken string, resumed bool, err error) {
	var name string
	if strings.TrimSpace(nickname) != "" {
		if name, err = normalizeNickname(nickname); err != nil {
			return 0, "", false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if id, ok := m.resolveSessionLocked(token, now); ok {
		if name != "" {
			acc := m.accountsByID[id]
			acc.Nickname = name
			m.accountsByID[id] = acc
		}
		return id, token, true, nil
	}
	if name == "" {
		return 0, "", false, ErrInvalidNickname
	}

	m.nextAccountID++
	accountID = m.nextAccountID
	m.accountsByID[accountID] = accountRecord{
		AccountID:     accountID,
		Nickname:      name,
		LastLoginTime: now,
	}
	return accountID, m.issueSessionLocked(accountID, now), false, nil
}

// Register creates a named account and returns an authenticated session token.
func (m *Manager) Register(username, password string) (accountID uint64, sessionToken string, err error) {
	if err = validateUsername(username); err != nil {
		return 0, "", err
	}
	if err = validatePassword(password); err != nil {
		return 0, "", err
	}

	normalized := normalizeUsername(username)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accountsByKey[normalized]; exists {
		return 0, "", ErrUsernameTaken
	}

	m.nextAccountID++
	accountID = m.nextAccountID
	now := m.now()
	m.accountsByID[accountID] = accountRecord{
		AccountID:     accountID,
		Username:      normalized,
		PasswordHash:  passwordHash,
		Registered:    true,
		LastLoginTime: now,
	}
	m.accountsByKey[normalized] = accountID

	return accountID, m.issueSessionLocked(accountID, now), nil
}

// Login validates credentials and returns a fresh session.
func (m *Manager) Login(username, password string) (accountID uint64, sessionToken string, err error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accountID, exists := m.accountsByKey[normalized]
	if !exists {
		return 0, "", ErrInvalidCredentials
	}
	profile := m.accountsByID[accountID]
	if !profile.Registered || len(profile.PasswordHash) == 0 {
		return 0, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}

	now := m.now()
	profile.LastLoginTime = now
	m.accountsByID[accountID] = profile
	return accountID, m.issueSessionLocked(accountID, now), nil
}

// ResolveSession validates and refreshes a session token.
func (m *Manager) ResolveSession(token string) (accountID uint64, displayName string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.resolveSessionLocked(token, m.now())
	if !ok {
		return 0, "", false
	}
	return id, m.accountsByID[id].displayName(), true
}

func (m *Manager) DisplayName(accountID uint64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accountsByID[accountID]
	if !ok {
		return ""
	}
	return acc.displayName()
}

// Logout invalidates a session token.
func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Close() error { return nil }

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
