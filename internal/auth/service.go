package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Reviewer is a human allowed to approve or reject case drafts.
type Reviewer struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// Service manages reviewer accounts and logins.
type Service struct {
	db         *sqlx.DB
	logger     *zap.Logger
	jwtManager *JWTManager
	expiry     time.Duration
}

// NewService creates the reviewer auth service.
func NewService(db *sqlx.DB, logger *zap.Logger, jwtSecret string) *Service {
	expiry := 8 * time.Hour
	return &Service{
		db:         db,
		logger:     logger,
		jwtManager: NewJWTManager(jwtSecret, expiry),
		expiry:     expiry,
	}
}

// JWT exposes the token manager for middleware wiring.
func (s *Service) JWT() *JWTManager {
	return s.jwtManager
}

// CreateReviewer registers a reviewer account with a bcrypt password hash.
func (s *Service) CreateReviewer(ctx context.Context, email, name, password, role string) (*Reviewer, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rev := &Reviewer{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviewers (id, email, name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rev.ID, rev.Email, rev.Name, rev.PasswordHash, rev.Role, rev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reviewer: %w", err)
	}

	s.logger.Info("Reviewer created", zap.String("email", email), zap.String("role", role))
	return rev, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	var rev Reviewer
	err := s.db.GetContext(ctx, &rev, `SELECT * FROM reviewers WHERE email = $1`, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rev.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(&rev)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.expiry.Seconds()),
	}, nil
}
