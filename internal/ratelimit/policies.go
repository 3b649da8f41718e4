package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Derived policies. Each owns its key derivation and (capacity, period)
// pair. Keys holding personal data (emails, phone numbers) are salted with
// the configured secret and hashed before storage.

func (l *Limiter) hashedKey(prefix, value string) string {
	sum := sha1.Sum([]byte(value + l.secret))
	return prefix + "-" + hex.EncodeToString(sum[:])
}

// AuthorizeLoginEmail allows 20 login attempts per normalized email per
// hour. Dots and plus-aliases in the mailbox are stripped first, so
// "j.doe+x@example.org" and "jdoe@example.org" share one bucket.
func (l *Limiter) AuthorizeLoginEmail(ctx context.Context, email string) (bool, error) {
	if mailbox, domain, ok := strings.Cut(email, "@"); ok {
		mailbox = strings.ReplaceAll(mailbox, ".", "")
		mailbox, _, _ = strings.Cut(mailbox, "+")
		email = mailbox + "@" + domain
	}
	return l.Authorize(ctx, l.hashedKey("em", email), 20, time.Hour)
}

// AuthorizeLoginPassword allows 20 password attempts per email per day.
func (l *Limiter) AuthorizeLoginPassword(ctx context.Context, email string) (bool, error) {
	return l.Authorize(ctx, l.hashedKey("pw", email), 20, 24*time.Hour)
}

// AuthorizeInvite allows 20 invites per user per day.
func (l *Limiter) AuthorizeInvite(ctx context.Context, userID uint) (bool, error) {
	return l.Authorize(ctx, fmt.Sprintf("invite-%d", userID), 20, 24*time.Hour)
}

// AuthorizeTelegram allows 6 messages per chat per minute.
func (l *Limiter) AuthorizeTelegram(ctx context.Context, chatID int64) (bool, error) {
	return l.Authorize(ctx, fmt.Sprintf("tg-%d", chatID), 6, time.Minute)
}

// AuthorizeSignal allows 6 messages per recipient per minute.
func (l *Limiter) AuthorizeSignal(ctx context.Context, phone string) (bool, error) {
	return l.Authorize(ctx, l.hashedKey("signal", phone), 6, time.Minute)
}

// AuthorizeSMS allows 6 messages per recipient per minute, shared by the
// SMS, WhatsApp and voice-call channels.
func (l *Limiter) AuthorizeSMS(ctx context.Context, phone string) (bool, error) {
	return l.Authorize(ctx, l.hashedKey("sms", phone), 6, time.Minute)
}

// AuthorizePushover allows 6 messages per user key per minute.
func (l *Limiter) AuthorizePushover(ctx context.Context, userKey string) (bool, error) {
	return l.Authorize(ctx, l.hashedKey("po", userKey), 6, time.Minute)
}

// AuthorizeSudoCode allows 10 step-up authentication attempts per user per
// day.
func (l *Limiter) AuthorizeSudoCode(ctx context.Context, userID uint) (bool, error) {
	return l.Authorize(ctx, fmt.Sprintf("sudo-%d", userID), 10, 24*time.Hour)
}

// AuthorizeTOTPAttempt allows 96 one-time-code attempts per user per day,
// on average one per 15 minutes.
func (l *Limiter) AuthorizeTOTPAttempt(ctx context.Context, userID uint) (bool, error) {
	return l.Authorize(ctx, fmt.Sprintf("totp-%d", userID), 96, 24*time.Hour)
}

// AuthorizeTOTPCode allows a specific one-time code to be accepted once per
// its 90-second validity window, so an eavesdropper cannot replay it.
func (l *Limiter) AuthorizeTOTPCode(ctx context.Context, userID uint, code string) (bool, error) {
	return l.Authorize(ctx, fmt.Sprintf("totpc-%d-%s", userID, code), 1, 90*time.Second)
}
