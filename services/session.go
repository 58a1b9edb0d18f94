package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"uxcellence/models"
)

const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"

	// UnregisteredTeamID marks a participant whose name matched no team at login.
	UnregisteredTeamID = "unregistered"
)

// Session is the resolved identity of a client.
type Session struct {
	Role       string `json:"role"`
	TeamID     string `json:"team_id,omitempty"`
	TeamName   string `json:"team_name"`
	Registered bool   `json:"registered"`
}

func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type Claims struct {
	Role     string `json:"role"`
	TeamID   string `json:"team_id,omitempty"`
	TeamName string `json:"team_name"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Session
}

type SessionService struct {
	store    Store
	secret   []byte
	ttl      time.Duration
	adminKey string
	clock    clockwork.Clock
}

func NewSessionService(store Store, secret string, ttl time.Duration, adminName string, clock clockwork.Clock) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{
		store:    store,
		secret:   []byte(secret),
		ttl:      ttl,
		adminKey: models.NameKey(adminName),
		clock:    clock,
	}
}

// EnsureAdmin stores the bcrypt hash for the admin account, replacing the
// stored hash when the configured password changed.
func (s *SessionService) EnsureAdmin(ctx context.Context, password string) error {
	if password == "" {
		log.Warn().Str("admin", s.adminKey).Msg("ADMIN_PASSWORD not set, admin login disabled")
		return nil
	}

	existing, err := s.store.FindAdmin(ctx, s.adminKey)
	if err != nil && !errors.Is(err, ErrAdminNotFound) {
		return err
	}
	if existing != nil && bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	if err := s.store.UpsertAdmin(ctx, &models.AdminUser{Name: s.adminKey, PasswordHash: string(hash)}); err != nil {
		return err
	}
	log.Info().Str("admin", s.adminKey).Msg("admin credentials stored")
	return nil
}

// Login resolves a submitted name to a role. The admin name always requires
// the password; any other name logs in as a participant, registered or not.
func (s *SessionService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var session *Session
	if models.NameKey(name) == s.adminKey {
		if err := s.checkAdmin(ctx, req.Password); err != nil {
			log.Warn().Str("name", name).Msg("admin login rejected")
			return nil, err
		}
		session = &Session{Role: RoleAdmin, TeamName: s.adminKey, Registered: true}
	} else {
		var err error
		session, err = s.participant(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.Issue(session)
	if err != nil {
		return nil, err
	}
	log.Info().Str("role", session.Role).Str("team_id", session.TeamID).Bool("registered", session.Registered).Msg("login")
	return &LoginResponse{Token: token, Session: *session}, nil
}

func (s *SessionService) checkAdmin(ctx context.Context, password string) error {
	admin, err := s.store.FindAdmin(ctx, s.adminKey)
	if errors.Is(err, ErrAdminNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *SessionService) participant(ctx context.Context, name string) (*Session, error) {
	team, err := s.store.FindTeamByName(ctx, name)
	if errors.Is(err, ErrTeamNotFound) {
		return &Session{Role: RoleParticipant, TeamID: UnregisteredTeamID, TeamName: name}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Session{Role: RoleParticipant, TeamID: team.ID, TeamName: team.Name, Registered: true}, nil
}

// Resolve re-checks a participant session against the store. When the team id
// no longer resolves, the name is tried again and the identity is repaired.
// A non-empty token is returned whenever the session changed.
func (s *SessionService) Resolve(ctx context.Context, session *Session) (*Session, string, error) {
	if session.IsAdmin() {
		return session, "", nil
	}

	if session.TeamID != "" && session.TeamID != UnregisteredTeamID {
		team, err := s.store.GetTeam(ctx, session.TeamID)
		if err == nil {
			resolved := &Session{Role: RoleParticipant, TeamID: team.ID, TeamName: team.Name, Registered: true}
			return resolved, "", nil
		}
		if !errors.Is(err, ErrTeamNotFound) {
			return nil, "", err
		}
	}

	repaired, err := s.participant(ctx, session.TeamName)
	if err != nil {
		return nil, "", err
	}
	if repaired.TeamID == session.TeamID {
		return repaired, "", nil
	}

	log.Info().
		Str("name", session.TeamName).
		Str("old_team_id", session.TeamID).
		Str("team_id", repaired.TeamID).
		Msg("session identity repaired")
	token, err := s.Issue(repaired)
	if err != nil {
		return nil, "", err
	}
	return repaired, token, nil
}

func (s *SessionService) Issue(session *Session) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Role:     session.Role,
		TeamID:   session.TeamID,
		TeamName: session.TeamName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.TeamName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *SessionService) Parse(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	session := &Session{Role: claims.Role, TeamID: claims.TeamID, TeamName: claims.TeamName}
	switch claims.Role {
	case RoleAdmin:
		session.Registered = true
	case RoleParticipant:
		session.Registered = claims.TeamID != "" && claims.TeamID != UnregisteredTeamID
	default:
		return nil, ErrInvalidCredentials
	}
	return session, nil
}
