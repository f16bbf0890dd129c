package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"satellite-trading-bot/config"
)

// AdminUsername is the only account the bot knows about.
const AdminUsername = "admin"

// Service authenticates the single admin operator against the bcrypt password
// hash carried in configuration and issues access tokens for the API surface.
type Service struct {
	jwt          *JWTManager
	passwordHash string
}

// NewService creates the auth service from configuration.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		jwt:          NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration),
		passwordHash: cfg.AdminPasswordHash,
	}
}

// IsConfigured reports whether admin credentials are set. An unconfigured
// service rejects every login, keeping the API effectively read-closed.
func (s *Service) IsConfigured() bool {
	return s.passwordHash != ""
}

// Login verifies the admin credentials and returns a token pair.
func (s *Service) Login(username, password string) (*TokenPair, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(AdminUsername)) != 1 {
		// Still burn a bcrypt comparison so the two failure modes take
		// the same time.
		bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwt.GenerateAccessToken(UserClaims{
		Username: AdminUsername,
		Role:     "admin",
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken: accessToken,
		ExpiresIn:   s.jwt.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}

// Validate checks an access token and returns its claims.
func (s *Service) Validate(tokenString string) (*UserClaims, error) {
	return s.jwt.ValidateAccessToken(tokenString)
}

// HashPassword produces a bcrypt hash suitable for the config file.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
