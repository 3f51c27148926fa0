// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"lostfound/internal/middleware"
	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/render"
	"lostfound/internal/session"
)

// totpIssuer is shown in authenticator apps.
const totpIssuer = "USLS Lost and Found"

// Auth groups the account handlers: signup, login, logout and the staff
// second factor.
type Auth struct {
	renderer *render.Renderer
	svc      *registry.Service
	sessions Sessions
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, svc *registry.Service, sessions Sessions) *Auth {
	return &Auth{
		renderer: renderer,
		svc:      svc,
		sessions: sessions,
	}
}

// safeNext keeps redirects on this site: only absolute paths are allowed,
// and protocol-relative ones are rejected.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// startSession logs user in and returns where to send them next.
func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, user *models.User, persistent bool, next string) (string, error) {
	// Replace an existing session so the id changes on login.
	if middleware.SessionFromCtx(r.Context()) != nil {
		if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
			slog.Warn("destroy previous session failed", "error", err)
		}
	}

	_, err := a.sessions.Create(r.Context(), w, &session.Data{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       string(user.Role),
		Persistent: persistent,
	})
	if err != nil {
		return "", err
	}

	if user.IsStaff() {
		if user.Needs2FASetup() {
			return "/2fa/setup", nil
		}
		return "/2fa/verify", nil
	}
	return safeNext(next), nil
}

// SignupPage renders the registration form.
func (a *Auth) SignupPage(w http.ResponseWriter, r *http.Request) {
	a.renderSignup(w, r, &registry.SignUpInput{}, nil)
}

func (a *Auth) renderSignup(w http.ResponseWriter, r *http.Request, in *registry.SignUpInput, errs map[string]string) {
	a.renderer.Page(w, r, "signup", &render.PageData{
		Title:   "Sign Up",
		Section: "signup",
		Data: map[string]any{
			"Input":  in,
			"Errors": errs,
			"Domain": a.svc.EmailDomain(),
		},
	})
}

// SignupSubmit creates a member account and logs it in.
func (a *Auth) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	in := &registry.SignUpInput{}
	decodeForm(r, in)

	user, err := a.svc.SignUp(r.Context(), *in)
	if fields := registry.FieldsOf(err); fields != nil {
		in.Password1, in.Password2 = "", ""
		a.renderSignup(w, r, in, fields)
		return
	}
	if err != nil {
		slog.Error("signup failed", "error", err)
		errorPage(a.renderer, w, r, http.StatusInternalServerError, "Your account could not be created. Please try again.")
		return
	}

	target, err := a.startSession(w, r, user, false, "/")
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil && (!sess.IsStaff() || sess.TwoFADone) {
		http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
		return
	}
	a.renderLogin(w, r, "", next, "")
}

func (a *Auth) renderLogin(w http.ResponseWriter, r *http.Request, msg, next, username string) {
	a.renderer.Page(w, r, "login", &render.PageData{
		Title:   "Log In",
		Section: "login",
		Data: map[string]any{
			"Error":    msg,
			"Next":     next,
			"Username": username,
		},
	})
}

// LoginSubmit checks credentials. Without "remember me" the session ends
// when the browser closes.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	next := r.FormValue("next")
	remember := r.FormValue("remember_me") != ""

	user, err := a.svc.Authenticate(r.Context(), username, password)
	if errors.Is(err, registry.ErrInvalidCredentials) {
		a.renderLogin(w, r, "Please enter a correct username and password. Note that both fields may be case-sensitive.", next, username)
		return
	}
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		a.renderLogin(w, r, "An unexpected error occurred.", next, username)
		return
	}

	target, err := a.startSession(w, r, user, remember, next)
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout destroys the session and returns to the item list.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// qrBase64 renders the otpauth URL of key as a base64 PNG.
func qrBase64(key *otp.Key) (string, error) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// TwoFASetupPage generates a TOTP secret for a staff account that has not
// enrolled yet and displays the QR code.
func (a *Auth) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)
	if !sess.IsStaff() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := a.svc.User(ctx, sess.UserID)
	if err != nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.TOTPEnabled {
		http.Redirect(w, r, "/2fa/verify", http.StatusSeeOther)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := a.svc.SetTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderSetup(w, r, key, "")
}

func (a *Auth) renderSetup(w http.ResponseWriter, r *http.Request, key *otp.Key, msg string) {
	qr, err := qrBase64(key)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderer.Page(w, r, "2fa_setup", &render.PageData{
		Title: "Set Up Two-Factor Authentication",
		Data: map[string]any{
			"QRCode": qr,
			"Secret": key.Secret(),
			"Error":  msg,
		},
	})
}

// TwoFAVerifyPage renders the code entry form, or forwards to setup when
// the account has no secret yet.
func (a *Auth) TwoFAVerifyPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)
	if !sess.IsStaff() || sess.TwoFADone {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := a.svc.User(ctx, sess.UserID)
	if err != nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.TOTPSecret == nil || !user.TOTPEnabled {
		http.Redirect(w, r, "/2fa/setup", http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "2fa_verify", &render.PageData{
		Title: "Two-Factor Authentication",
	})
}

// TwoFAVerifySubmit validates the TOTP code. The first valid code confirms
// enrollment; every valid code completes the staff login.
func (a *Auth) TwoFAVerifySubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)
	if !sess.IsStaff() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := a.svc.User(ctx, sess.UserID)
	if err != nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.TOTPSecret == nil {
		http.Redirect(w, r, "/2fa/setup", http.StatusSeeOther)
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if !totp.Validate(code, *user.TOTPSecret) {
		const msg = "Invalid code. Please try again."
		if !user.TOTPEnabled {
			key, err := otp.NewKeyFromURL(totpURL(user.Username, *user.TOTPSecret))
			if err != nil {
				slog.Error("rebuild totp key failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			a.renderSetup(w, r, key, msg)
			return
		}
		a.renderer.Page(w, r, "2fa_verify", &render.PageData{
			Title: "Two-Factor Authentication",
			Data:  map[string]any{"Error": msg},
		})
		return
	}

	if !user.TOTPEnabled {
		if err := a.svc.EnableTOTP(ctx, user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(ctx, r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/staff/pending", http.StatusSeeOther)
}

// totpURL rebuilds the otpauth URL for an enrolled secret.
func totpURL(account, secret string) string {
	return "otpauth://totp/" + url.PathEscape(totpIssuer) + ":" + url.PathEscape(account) +
		"?secret=" + secret + "&issuer=" + url.QueryEscape(totpIssuer)
}
