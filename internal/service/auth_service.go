package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cashmine/internal/model"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	*core
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Login  string
	Role   string
}

func (p *Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

type AuthResult struct {
	Token string
	User  *model.User
}

// UserSnapshot is the user as shown to clients, with the derived daily fields.
type UserSnapshot struct {
	User          *model.User
	Available     decimal.Decimal
	DailyEarnings decimal.Decimal
	VIP           *model.VIPLevel
}

func (s *AuthService) Register(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if err := validateCredentials(login, password); err != nil {
		return nil, err
	}
	user, err := s.createUser(ctx, login, password, model.RoleUser)
	if err != nil {
		return nil, err
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("login", login))
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("incorrect login", zap.String("login", login))
			return nil, apperr.ErrBadCredentials
		}
		return nil, translate(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("incorrect password", zap.String("login", login))
		return nil, apperr.ErrBadCredentials
	}

	now := s.clock()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, translate(err)
	}
	user.LastLoginAt = &now

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to the current user. The role is read
// from storage so role changes apply to tokens already issued.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	var claims jwt.StandardClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil || claims.Subject == "" {
		return nil, apperr.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, nil, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, translate(err)
	}
	return &Principal{UserID: user.ID, Login: user.Login, Role: user.Role}, nil
}

// Me returns the snapshot of the user.
func (s *AuthService) Me(ctx context.Context, userID string) (*UserSnapshot, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, translate(err)
	}
	earned, err := s.todayEarnings(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	vip, err := s.tierOf(ctx, nil, user.VIPLevel)
	if err != nil {
		return nil, translate(err)
	}
	return &UserSnapshot{User: user, Available: user.Available(), DailyEarnings: earned, VIP: vip}, nil
}

// EnsureAdmin creates the bootstrap admin, or promotes the login if the
// account already exists. Empty credentials disable the bootstrap.
func (s *AuthService) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	user, err := s.users.GetByLogin(ctx, login)
	switch {
	case err == nil:
		if user.IsAdmin() {
			return nil
		}
		s.log.Info("promoting bootstrap admin", zap.String("login", login))
		return translate(s.users.SetRole(ctx, user.ID, model.RoleAdmin))
	case errors.Is(err, repository.ErrNotFound):
		if err := validateCredentials(login, password); err != nil {
			return err
		}
		if _, err := s.createUser(ctx, login, password, model.RoleAdmin); err != nil {
			return err
		}
		s.log.Info("bootstrap admin created", zap.String("login", login))
		return nil
	default:
		return translate(err)
	}
}

func (s *AuthService) createUser(ctx context.Context, login, password, role string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &model.User{
		ID:            uuid.NewString(),
		Login:         login,
		PasswordHash:  string(hash),
		Role:          role,
		Balance:       decimal.Zero,
		FrozenAmount:  decimal.Zero,
		TotalEarnings: decimal.Zero,
		DepositAmount: decimal.Zero,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		_, err := s.activities.GetOrCreateState(ctx, tx, user.ID)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.ErrDuplicateLogin
	}
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   userID,
		Issuer:    s.cfg.App.Name,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.cfg.Auth.TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return "", apperr.Internal("sign token", err)
	}
	return signed, nil
}

func validateCredentials(login, password string) error {
	if n := utf8.RuneCountInString(login); n < 3 || n > 64 {
		return apperr.ErrInvalidLogin
	}
	if len(password) < 6 {
		return apperr.ErrInvalidPassword
	}
	return nil
}
