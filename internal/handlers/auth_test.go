package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"lostfound/internal/models"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/upload", "/upload"},
		{"/?q=wallet", "/?q=wallet"},
		{"//evil.example.com", "/"},
		{"/\\evil.example.com", "/"},
		{"https://evil.example.com", "/"},
	}
	for _, tt := range tests {
		if got := safeNext(tt.in); got != tt.want {
			t.Errorf("safeNext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignupSubmit(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Auth.SignupSubmit(rec, postForm("/signup", url.Values{
		"username":  {"carla"},
		"email":     {"carla@usls.edu.ph"},
		"password1": {"s3cret-pass"},
		"password2": {"s3cret-pass"},
	}))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("got %d %q, want 303 /", rec.Code, rec.Header().Get("Location"))
	}
	if len(env.Sessions.created) != 1 || env.Sessions.created[0].Username != "carla" {
		t.Fatalf("expected a session for carla, got %+v", env.Sessions.created)
	}
	if env.Sessions.created[0].Role != string(models.RoleMember) {
		t.Errorf("role = %q, want member", env.Sessions.created[0].Role)
	}
}

func TestSignupSubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Auth.SignupSubmit(rec, postForm("/signup", url.Values{
		"username":  {"alice"},
		"email":     {"carla@gmail.com"},
		"password1": {"s3cret-pass"},
		"password2": {"different"},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (form re-render)", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<span class="error">Only emails from @usls.edu.ph are allowed.</span>`,
		"A user with that username already exists.",
		"match",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body", want)
		}
	}
	if strings.Contains(body, "s3cret-pass") {
		t.Error("passwords must not be echoed")
	}
	if len(env.Sessions.created) != 0 {
		t.Error("failed signup must not log in")
	}
}

func TestLoginSubmit(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		remember   bool
		next       string
		location   string
		persistent bool
	}{
		{"member to next", "alice", "password123", false, "/upload", "/upload", false},
		{"member remembered", "alice", "password123", true, "", "/", true},
		{"member unsafe next", "alice", "password123", false, "//evil.example.com", "/", false},
		{"staff to 2fa setup", "guard", "password123", false, "/upload", "/2fa/setup", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			form := url.Values{"username": {tt.username}, "password": {tt.password}, "next": {tt.next}}
			if tt.remember {
				form.Set("remember_me", "on")
			}

			rec := httptest.NewRecorder()
			env.Auth.LoginSubmit(rec, postForm("/login", form))

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.location {
				t.Errorf("Location = %q, want %q", loc, tt.location)
			}
			if len(env.Sessions.created) != 1 {
				t.Fatalf("sessions created = %d, want 1", len(env.Sessions.created))
			}
			sess := env.Sessions.created[0]
			if sess.Persistent != tt.persistent {
				t.Errorf("Persistent = %v, want %v", sess.Persistent, tt.persistent)
			}
			if sess.TwoFADone {
				t.Error("a fresh login never has 2FA done")
			}
		})
	}
}

func TestLoginSubmitBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.Auth.LoginSubmit(rec, postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
		"next":     {"/profile"},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Please enter a correct username and password.") {
		t.Error("expected credentials error")
	}
	if !strings.Contains(body, `value="/profile"`) {
		t.Error("expected next to survive the failed attempt")
	}
	if len(env.Sessions.created) != 0 {
		t.Error("no session on failed login")
	}
}

func TestLoginPageRedirectsLoggedIn(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/login?next=/profile", nil), sessionFor(env.Member), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Auth.LoginPage(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/profile" {
		t.Errorf("got %d %q, want 303 /profile", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(postForm("/logout", nil), sessionFor(env.Member), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Auth.Logout(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("got %d %q, want 303 /", rec.Code, rec.Header().Get("Location"))
	}
	if env.Sessions.destroyed != 1 {
		t.Errorf("destroyed = %d, want 1", env.Sessions.destroyed)
	}
}

func TestTwoFAEnrollment(t *testing.T) {
	env := newTestEnv(t)
	sess := sessionFor(env.Guard)
	sess.TwoFADone = false

	// Setup stores an unconfirmed secret and shows the QR code.
	req := asUser(httptest.NewRequest(http.MethodGet, "/2fa/setup", nil), sess, uuid.Nil)
	rec := httptest.NewRecorder()
	env.Auth.TwoFASetupPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("setup status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "data:image/png;base64,") {
		t.Error("expected QR code image")
	}
	user, err := env.Svc.User(t.Context(), env.Guard.ID)
	if err != nil || user.TOTPSecret == nil || user.TOTPEnabled {
		t.Fatalf("expected pending secret, got %+v (err %v)", user, err)
	}

	// A wrong code re-renders setup with an error.
	req = asUser(postForm("/2fa/verify", url.Values{"code": {"abcdef"}}), sess, uuid.Nil)
	rec = httptest.NewRecorder()
	env.Auth.TwoFAVerifySubmit(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Invalid code") {
		t.Fatalf("wrong code: status %d", rec.Code)
	}

	// The right code confirms enrollment and completes the login.
	code, err := totp.GenerateCode(*user.TOTPSecret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	req = asUser(postForm("/2fa/verify", url.Values{"code": {code}}), sess, uuid.Nil)
	rec = httptest.NewRecorder()
	env.Auth.TwoFAVerifySubmit(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/staff/pending" {
		t.Fatalf("got %d %q, want 303 /staff/pending", rec.Code, rec.Header().Get("Location"))
	}
	if !sess.TwoFADone || len(env.Sessions.updated) != 1 {
		t.Error("expected session marked 2FA done")
	}
	user, _ = env.Svc.User(t.Context(), env.Guard.ID)
	if !user.TOTPEnabled {
		t.Error("expected TOTP enabled")
	}
}

func TestTwoFAVerifyPageForwardsToSetup(t *testing.T) {
	env := newTestEnv(t)
	sess := sessionFor(env.Guard)
	sess.TwoFADone = false

	req := asUser(httptest.NewRequest(http.MethodGet, "/2fa/verify", nil), sess, uuid.Nil)
	rec := httptest.NewRecorder()
	env.Auth.TwoFAVerifyPage(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/2fa/setup" {
		t.Errorf("got %d %q, want 303 /2fa/setup", rec.Code, rec.Header().Get("Location"))
	}
}

func TestTwoFAMembersSkip(t *testing.T) {
	env := newTestEnv(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/2fa/setup", nil), sessionFor(env.Member), uuid.Nil)
	rec := httptest.NewRecorder()
	env.Auth.TwoFASetupPage(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("got %d %q, want 303 /", rec.Code, rec.Header().Get("Location"))
	}
}
