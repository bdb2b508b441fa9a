package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"playchrono/internal/auth"
	"playchrono/internal/config"
	"playchrono/internal/database"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 6

type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	SportType    string `json:"sport"`
	TeamName     string `json:"teamName"`
	ProfileImage string `json:"profileImage"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	tokens   *auth.TokenIssuer
	cfg      config.AuthConfig
	sports   []string
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewAuthService(users domain.UserRepository, sessions domain.SessionStore, tokens *auth.TokenIssuer, cfg config.AuthConfig, sports []string, logger *zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		sports:   sports,
		now:      time.Now,
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return domain.ValidationError{Field: "email", Msg: "email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ValidationError{Field: "email", Msg: "invalid email address"}
	}
	return nil
}

// Register creates a student or captain account. Captains must name a known
// sport and a team.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, domain.ValidationError{Field: "username", Msg: "name is required"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ValidationError{Field: "password", Msg: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = models.RoleStudent
	case models.RoleStudent, models.RoleCaptain:
	default:
		return nil, domain.ValidationError{Field: "role", Msg: fmt.Sprintf("cannot register as %q", req.Role)}
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		Role:         role,
		ProfileImage: strings.TrimSpace(req.ProfileImage),
	}

	if role == models.RoleCaptain {
		sport, ok := s.knownSport(req.SportType)
		if !ok {
			return nil, domain.ValidationError{Field: "sport", Msg: fmt.Sprintf("unknown sport %q", req.SportType)}
		}
		team := strings.TrimSpace(req.TeamName)
		if team == "" {
			return nil, domain.ValidationError{Field: "teamName", Msg: "team name is required for captains"}
		}
		user.SportType = sport
		user.TeamName = team
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, mapRepoError("user", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return user, nil
}

func (s *AuthService) knownSport(sport string) (string, bool) {
	for _, known := range s.sports {
		if strings.EqualFold(known, strings.TrimSpace(sport)) {
			return known, true
		}
	}
	return "", false
}

// Login checks credentials and opens a session. Attempts are limited per email.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ValidationError{Field: "credentials", Msg: "email and password are required"}
	}

	allowed, err := s.sessions.CheckRateLimit(ctx, "login:"+email, s.cfg.LoginAttempts, s.cfg.LoginAttemptWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login rate limit check failed")
	} else if !allowed {
		return nil, domain.ErrRateLimited
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(user.ID, sessionID, user.Role)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
		SportType: user.SportType,
		TeamName:  user.TeamName,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to its live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.Expired(s.now()) || session.UserID != claims.Subject {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// Logout destroys the session; its token stops working immediately.
func (s *AuthService) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return domain.ErrUnauthorized
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// EnsureAdmin creates the configured admin account when it does not exist.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	admin := s.cfg.Admin
	email := normalizeEmail(admin.Email)
	if email == "" {
		return nil
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:     admin.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info().Str("email", email).Msg("admin account created")
	return nil
}
