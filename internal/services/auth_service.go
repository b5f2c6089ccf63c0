package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-advisor-backend/internal/auth"
	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/notify"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/repo"
)

// LoginTypeSocial is the only accepted SocialLogin type.
const LoginTypeSocial = "social"

// UserRepository is the persistence contract for accounts and reset tokens.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	ByID(ctx context.Context, id string) (*domain.User, error)
	ByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, role string, params map[string]string, defLimit int) ([]domain.User, query.Meta, error)

	// IssueResetToken stores tokenHash and raises the user's reset flag.
	IssueResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ResetToken returns an unused token by hash.
	ResetToken(ctx context.Context, tokenHash string) (*domain.ResetToken, error)
	// ResetPassword consumes the token and stores the new hash together.
	ResetPassword(ctx context.Context, tokenID, userID, passwordHash string, at time.Time) error
}

// TTLs for the codes the auth flows hand out.
type CodeTTLs struct {
	Register   time.Duration // verification and forgot-password OTPs
	Login      time.Duration // second-factor OTP
	ResetToken time.Duration
}

// AuthService implements registration, the OTP login, social login and the
// password recovery flows.
type AuthService struct {
	Users  UserRepository
	Hasher auth.Hasher
	Tokens *auth.Issuer
	Mail   notify.Notifier
	TTL    CodeTTLs

	now    func() time.Time
	newOTP func() (string, error)
}

// NewAuthService wires an AuthService.
func NewAuthService(users UserRepository, h auth.Hasher, tokens *auth.Issuer, mail notify.Notifier, ttl CodeTTLs) *AuthService {
	return &AuthService{
		Users:  users,
		Hasher: h,
		Tokens: tokens,
		Mail:   mail,
		TTL:    ttl,
		now:    time.Now,
		newOTP: auth.NewOTP,
	}
}

// Request types.
type (
	RegisterRequest struct {
		Name     string `json:"name"     binding:"required"`
		Email    string `json:"email"    binding:"required,email"`
		Phone    string `json:"phone"`
		Password string `json:"password" binding:"required"`
	}

	LoginRequest struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	OTPRequest struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"oneTimeCode" binding:"required"`
	}

	SocialLoginRequest struct {
		Email string `json:"email" binding:"required,email"`
		AppID string `json:"appId" binding:"required"`
		Type  string `json:"type"  binding:"required"`
	}

	ResetPasswordRequest struct {
		Token           string `json:"-"`
		NewPassword     string `json:"newPassword"     binding:"required"`
		ConfirmPassword string `json:"confirmPassword" binding:"required"`
	}

	ChangePasswordRequest struct {
		UserID          string `json:"-"`
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword"     binding:"required"`
		ConfirmPassword string `json:"confirmPassword" binding:"required"`
	}
)

// Session is the result of a completed login.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

// VerifyEmailResult reports which path VerifyEmail took. ResetToken is set
// only when a verified user confirmed a forgot-password code.
type VerifyEmailResult struct {
	Verified   bool   `json:"verified"`
	ResetToken string `json:"reset_token,omitempty"`
}

// NormalizeEmail trims and case-folds an address.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Register creates an unverified user and emails a verification code.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	u, err := s.newUser(req, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	otp, exp, err := s.issueOTP(s.TTL.Register)
	if err != nil {
		return nil, err
	}
	u.OneTimeCode, u.OTPExpiresAt = otp, &exp
	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	s.Mail.Notify(ctx, notify.VerifyAccount(u.Name, u.Email, otp, s.TTL.Register))
	return u, nil
}

// CreateModerator creates a verified moderator account.
func (s *AuthService) CreateModerator(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	u, err := s.newUser(req, domain.RoleModerator)
	if err != nil {
		return nil, err
	}
	u.Verified = true
	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password of a verified user and emails a login code.
// The session is only issued by VerifyLoginOTP.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) error {
	u, err := s.Users.ByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = s.Hasher.Compare("", req.Password)
			return ErrUserNotFound
		}
		return err
	}
	if !u.Verified {
		return ErrNotVerified
	}
	if err := s.Hasher.Compare(u.Password, req.Password); err != nil {
		return ErrInvalidCredentials
	}
	if err := s.storeOTP(ctx, u, s.TTL.Login); err != nil {
		return err
	}
	s.Mail.Notify(ctx, notify.LoginCode(u.Name, u.Email, u.OneTimeCode, s.TTL.Login))
	return nil
}

// VerifyLoginOTP consumes the login code and issues a session.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, req OTPRequest) (*Session, error) {
	u, err := s.Users.ByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}
	if err := s.checkOTP(u, req.OTP); err != nil {
		return nil, err
	}
	if err := s.Users.Update(ctx, u.ID, clearOTP()); err != nil {
		return nil, err
	}
	u.OneTimeCode, u.OTPExpiresAt = "", nil
	return s.session(u)
}

// SocialLogin signs in with a provider identity, creating a verified user on
// first use. New accounts always get the user role.
func (s *AuthService) SocialLogin(ctx context.Context, req SocialLoginRequest) (*Session, error) {
	if req.Type != LoginTypeSocial {
		return nil, ErrInvalidLoginType
	}
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	u, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		name, _, _ := strings.Cut(email, "@")
		u = &domain.User{
			Name:     name,
			Email:    email,
			AppID:    req.AppID,
			Role:     domain.RoleUser,
			Verified: true,
		}
		err = s.Users.Create(ctx, u)
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a race with a concurrent first login.
			u, err = s.Users.ByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// VerifyEmail checks an emailed code. For an unverified user it activates the
// account. For a verified user it is the forgot-password step: it raises the
// reset flag and returns a single-use reset token.
func (s *AuthService) VerifyEmail(ctx context.Context, req OTPRequest) (*VerifyEmailResult, error) {
	u, err := s.Users.ByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := s.checkOTP(u, req.OTP); err != nil {
		return nil, err
	}

	if !u.Verified {
		fields := clearOTP()
		fields["verified"] = true
		if err := s.Users.Update(ctx, u.ID, fields); err != nil {
			return nil, err
		}
		return &VerifyEmailResult{Verified: true}, nil
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return nil, err
	}
	if err := s.Users.IssueResetToken(ctx, u.ID, hash, s.now().UTC().Add(s.TTL.ResetToken)); err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}
	return &VerifyEmailResult{Verified: true, ResetToken: raw}, nil
}

// ForgetPassword emails a recovery code to an existing user.
func (s *AuthService) ForgetPassword(ctx context.Context, email string) error {
	u, err := s.Users.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.storeOTP(ctx, u, s.TTL.Register); err != nil {
		return err
	}
	s.Mail.Notify(ctx, notify.ResetPassword(u.Email, u.OneTimeCode, s.TTL.Register))
	return nil
}

// ResetPassword sets a new password using a reset token from VerifyEmail.
// The token works once.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return ErrUnauthorized
	}
	rt, err := s.Users.ResetToken(ctx, auth.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	u, err := s.Users.ByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if !u.IsResetPassword {
		return ErrUnauthorized
	}
	now := s.now().UTC()
	if !now.Before(rt.ExpiresAt) {
		return ErrTokenExpired
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.Users.ResetPassword(ctx, rt.ID, u.ID, hash, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

// ChangePassword replaces the password of a signed-in user.
func (s *AuthService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	u, err := s.Users.ByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.Hasher.Compare(u.Password, req.CurrentPassword); err != nil {
		return ErrWrongPassword
	}
	if req.CurrentPassword == req.NewPassword {
		return ErrSamePassword
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.Users.Update(ctx, u.ID, map[string]any{"password": hash})
}

// RefreshToken exchanges a refresh token for a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidInput
	}
	claims, err := s.Tokens.ParseRefresh(token)
	if err != nil {
		return "", ErrUnauthorized
	}
	u, err := s.Users.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	return s.Tokens.Access(u.ID, u.Role, u.Email)
}

// ResendVerification sends a fresh verification code to an unverified user.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.Users.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.Verified {
		return ErrAlreadyVerified
	}
	if err := s.storeOTP(ctx, u, s.TTL.Register); err != nil {
		return err
	}
	s.Mail.Notify(ctx, notify.VerifyAccount(u.Name, u.Email, u.OneTimeCode, s.TTL.Register))
	return nil
}

// DeleteAccount removes the user and everything they own.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.Users.Delete(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err == nil {
		zerolog.Ctx(ctx).Info().Str("user_id", userID).Msg("account deleted")
	}
	return err
}

func (s *AuthService) newUser(req RegisterRequest, role string) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	if name == "" || email == "" {
		return nil, ErrInvalidInput
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		Name:     name,
		Email:    email,
		Phone:    strings.TrimSpace(req.Phone),
		Password: hash,
		Role:     role,
	}, nil
}

func (s *AuthService) create(ctx context.Context, u *domain.User) error {
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *AuthService) hashPassword(pw string) (string, error) {
	if len([]rune(pw)) < auth.MinPasswordLen {
		return "", ErrWeakPassword
	}
	return s.Hasher.Hash(pw)
}

func (s *AuthService) issueOTP(ttl time.Duration) (string, time.Time, error) {
	otp, err := s.newOTP()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	return otp, s.now().UTC().Add(ttl), nil
}

// storeOTP saves a fresh code on u and updates u in place.
func (s *AuthService) storeOTP(ctx context.Context, u *domain.User, ttl time.Duration) error {
	otp, exp, err := s.issueOTP(ttl)
	if err != nil {
		return err
	}
	if err := s.Users.Update(ctx, u.ID, map[string]any{"one_time_code": otp, "otp_expires_at": exp}); err != nil {
		return err
	}
	u.OneTimeCode, u.OTPExpiresAt = otp, &exp
	return nil
}

func (s *AuthService) checkOTP(u *domain.User, otp string) error {
	if otp == "" || u.OneTimeCode == "" || u.OTPExpiresAt == nil {
		return ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(u.OneTimeCode), []byte(otp)) != 1 {
		return ErrInvalidOTP
	}
	if s.now().After(*u.OTPExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

func (s *AuthService) session(u *domain.User) (*Session, error) {
	pair, err := s.Tokens.Pair(u.ID, u.Role, u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: u}, nil
}

func clearOTP() map[string]any {
	return map[string]any{"one_time_code": "", "otp_expires_at": nil}
}
