package notify

import (
	"fmt"
	"time"
)

// Email kinds.
const (
	KindVerifyAccount = "verify_account"
	KindLoginCode     = "login_code"
	KindResetPassword = "reset_password"
)

// VerifyAccount asks a new user to confirm their address with otp.
func VerifyAccount(name, to, otp string, ttl time.Duration) Email {
	return Email{
		Kind:    KindVerifyAccount,
		To:      to,
		Subject: "Verify your account",
		Body: fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires in %s.\n",
			name, otp, humanize(ttl)),
	}
}

// LoginCode carries the second-factor code sent after a password login.
func LoginCode(name, to, otp string, ttl time.Duration) Email {
	return Email{
		Kind:    KindLoginCode,
		To:      to,
		Subject: "Your login code",
		Body: fmt.Sprintf("Hello %s,\n\nUse %s to finish signing in. The code expires in %s.\n",
			name, otp, humanize(ttl)),
	}
}

// ResetPassword carries the forgot-password code.
func ResetPassword(to, otp string, ttl time.Duration) Email {
	return Email{
		Kind:    KindResetPassword,
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Your password reset code is %s. It expires in %s.\n"+
			"If you did not ask for a reset you can ignore this email.\n", otp, humanize(ttl)),
	}
}

func humanize(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
