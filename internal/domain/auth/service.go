package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Verifier checks a user's credentials. The directory integration (LDAP or
// a local user store) lives behind this seam; the core only needs "this
// user name authenticated".
type Verifier func(userID, password string) (*User, error)

// Service issues and validates user sessions and admin tokens. Both maps
// are explicit store objects owned by the service; admin tokens are evicted
// on expiry at validation time.
type Service struct {
	verify        Verifier
	adminUser     string
	adminPassword string
	adminTTL      time.Duration
	logger        *slog.Logger

	mu            sync.Mutex
	userSessions  map[string]UserSession
	adminSessions map[string]AdminSession
}

// NewService creates a new auth service.
func NewService(verify Verifier, adminUser, adminPassword string, adminTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verify:        verify,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		adminTTL:      adminTTL,
		logger:        logger,
		userSessions:  make(map[string]UserSession),
		adminSessions: make(map[string]AdminSession),
	}
}

// Login authenticates a regular user and issues a session token. The admin
// account is rejected here; it has its own entry point.
func (s *Service) Login(userID, password string) (string, *User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, ErrInvalidInput
	}
	if userID == s.adminUser {
		return "", nil, ErrAdminLocalOnly
	}

	user, err := s.verify(userID, password)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := s.createUserSession(userID)
	s.logger.Info("user logged in", "user", userID)
	return token, user, nil
}

// AdminLogin authenticates the admin account, issuing a privileged bearer
// token plus a regular user session so the admin can also hold edit locks.
func (s *Service) AdminLogin(userID, password string) (adminToken, userToken string, err error) {
	if userID != s.adminUser || password != s.adminPassword {
		return "", "", ErrInvalidCredentials
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	adminToken = hex.EncodeToString(buf)

	now := time.Now()
	s.mu.Lock()
	s.adminSessions[adminToken] = AdminSession{
		CreatedAt: now,
		ExpiresAt: now.Add(s.adminTTL),
	}
	s.mu.Unlock()

	userToken = s.createUserSession(userID)
	s.logger.Info("admin logged in")
	return adminToken, userToken, nil
}

// AdminLogout revokes a privileged token. Idempotent.
func (s *Service) AdminLogout(token string) {
	s.mu.Lock()
	delete(s.adminSessions, token)
	s.mu.Unlock()
}

// ValidateAdmin reports whether token is a live admin session. Expired
// tokens are evicted as a side effect.
func (s *Service) ValidateAdmin(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.adminSessions[token]
	if !ok {
		return false
	}
	if time.Now().After(session.ExpiresAt) {
		delete(s.adminSessions, token)
		return false
	}
	return true
}

// ValidateUser reports whether token was issued for userName.
func (s *Service) ValidateUser(token, userName string) bool {
	if token == "" || userName == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.userSessions[token]
	return ok && session.UserName == strings.TrimSpace(userName)
}

func (s *Service) createUserSession(userName string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.userSessions[token] = UserSession{
		UserName:  userName,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()
	return token
}
