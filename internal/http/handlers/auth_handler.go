package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// EmailRequest carries just an address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email" example:"jane@example.com"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password. The token
// may come in the Authorization header instead.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"     binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// RefreshTokenRequest is the body of POST /auth/refresh-token. The token may
// come in the Authorization header instead.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login godoc
// @ID          login
// @Summary     Password login, step one
// @Description Checks the password and emails a login code. Complete with /auth/verify-otp.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  services.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse  "Wrong password or unverified account"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.Login(c.Request.Context(), req); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "We have sent a login code to your email", nil)
}

// VerifyOTP godoc
// @ID          verifyLoginOTP
// @Summary     Password login, step two
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  services.OTPRequest  true  "Email and code"
// @Success     200  {object}  handlers.Envelope{data=services.Session}
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid or expired code"
// @Router      /auth/verify-otp [post]
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req services.OTPRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.VerifyLoginOTP(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "User logged in successfully", sess)
}

// SocialLogin godoc
// @ID          socialLogin
// @Summary     Social login
// @Description Signs in or creates a verified user for a social provider identity.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  services.SocialLoginRequest  true  "Provider identity"
// @Success     200  {object}  handlers.Envelope{data=services.Session}
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /auth/social-login [post]
func (h *Handlers) SocialLogin(c *gin.Context) {
	var req services.SocialLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.SocialLogin(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "User logged in successfully", sess)
}

// VerifyEmail godoc
// @ID          verifyEmail
// @Summary     Confirm an emailed code
// @Description Verifies a new account, or for a verified account confirms a forgot-password
// @Description code and returns a single-use reset token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  services.OTPRequest  true  "Email and code"
// @Success     200  {object}  handlers.Envelope{data=services.VerifyEmailResult}
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /auth/verify-email [post]
func (h *Handlers) VerifyEmail(c *gin.Context) {
	var req services.OTPRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.auth.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	msg := "Email verified successfully"
	if res.ResetToken != "" {
		msg = "Verification successful, use the token to reset your password"
	}
	respond(c, http.StatusOK, msg, res)
}

// ForgetPassword godoc
// @ID          forgetPassword
// @Summary     Start a password reset
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.EmailRequest  true  "Account email"
// @Success     200  {object}  handlers.Envelope
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /auth/forget-password [post]
func (h *Handlers) ForgetPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ForgetPassword(c.Request.Context(), req.Email); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Please check your email, we have sent you a one-time code", nil)
}

// ResetPassword godoc
// @ID          resetPassword
// @Summary     Set a new password with a reset token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       Authorization  header  string                          false  "Reset token (alternative to the body field)"
// @Param       body           body    handlers.ResetPasswordRequest   true   "New password"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unknown, used or expired token"
// @Router      /auth/reset-password [post]
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	token := req.Token
	if token == "" {
		token = middleware.BearerToken(c)
	}
	if token == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "reset token required")
		return
	}
	err := h.auth.ResetPassword(c.Request.Context(), services.ResetPasswordRequest{
		Token:           token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Password reset successfully", nil)
}

// RefreshToken godoc
// @ID          refreshToken
// @Summary     Exchange a refresh token for an access token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefreshTokenRequest  false  "Refresh token (or send it as Authorization)"
// @Success     200  {object}  handlers.Envelope
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/refresh-token [post]
func (h *Handlers) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	// The body is optional here.
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token = middleware.BearerToken(c)
	}
	if token == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "refresh token required")
		return
	}
	access, err := h.auth.RefreshToken(c.Request.Context(), token)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Access token generated successfully", gin.H{"accessToken": access})
}

// ResendVerification godoc
// @ID          resendVerification
// @Summary     Send a new verification code
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.EmailRequest  true  "Account email"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse  "Already verified"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /auth/resend-verification [post]
func (h *Handlers) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "A new verification code has been sent", nil)
}

// ChangePassword godoc
// @ID          changePassword
// @Summary     Change my password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  services.ChangePasswordRequest  true  "Passwords"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/change-password [post]
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = currentUser(c)
	if err := h.auth.ChangePassword(c.Request.Context(), req); err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

// DeleteAccount godoc
// @ID          deleteAccount
// @Summary     Delete my account
// @Description Removes the account with its rooms and turns.
// @Tags        Auth
// @Security    BearerAuth
// @Success     204
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /auth/delete-account [delete]
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.auth.DeleteAccount(c.Request.Context(), currentUser(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
