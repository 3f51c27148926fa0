package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/internal/models"
	"lostfound/internal/registry"
)

func signUpInput(username, email string) registry.SignUpInput {
	return registry.SignUpInput{
		Username:  username,
		Email:     email,
		Password1: "correct-horse",
		Password2: "correct-horse",
	}
}

func TestSignUp_CampusDomainOnly(t *testing.T) {
	f := newFixture(t, registry.DefaultPolicy)

	_, err := f.svc.SignUp(t.Context(), signUpInput("juan", "juan@gmail.com"))
	require.Error(t, err)
	assert.Equal(t, "Only emails from @usls.edu.ph are allowed.", registry.FieldsOf(err)["email"])

	u, err := f.svc.SignUp(t.Context(), signUpInput("juan", "juan@usls.edu.ph"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, u.Role)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
}

func TestSignUp_FieldErrors(t *testing.T) {
	f := newFixture(t, registry.DefaultPolicy)

	tests := []struct {
		name  string
		in    registry.SignUpInput
		field string
		msg   string
	}{
		{
			name:  "duplicate username",
			in:    signUpInput("alice", "alice2@usls.edu.ph"),
			field: "username",
			msg:   "A user with that username already exists.",
		},
		{
			name:  "duplicate email",
			in:    signUpInput("alice2", "alice@usls.edu.ph"),
			field: "email",
			msg:   "A user with that email already exists.",
		},
		{
			name:  "bad username characters",
			in:    signUpInput("al ice", "al@usls.edu.ph"),
			field: "username",
		},
		{
			name:  "invalid email",
			in:    signUpInput("carol", "not-an-email"),
			field: "email",
			msg:   "Enter a valid email address.",
		},
		{
			name: "password mismatch",
			in: registry.SignUpInput{
				Username: "carol", Email: "carol@usls.edu.ph",
				Password1: "correct-horse", Password2: "battery-staple",
			},
			field: "password2",
			msg:   "The two password fields didn't match.",
		},
		{
			name: "short password",
			in: registry.SignUpInput{
				Username: "carol", Email: "carol@usls.edu.ph",
				Password1: "short", Password2: "short",
			},
			field: "password1",
			msg:   "Ensure this value has at least 8 characters.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignUp(t.Context(), tt.in)
			require.Error(t, err)
			fields := registry.FieldsOf(err)
			require.Contains(t, fields, tt.field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, fields[tt.field])
			}
		})
	}
}

func TestSignUp_ConfiguredDomain(t *testing.T) {
	f := newFixture(t, registry.DefaultPolicy)
	svc := registry.New(f.mem.Repos(), f.mem, registry.Options{EmailDomain: "example.edu"})

	_, err := svc.SignUp(t.Context(), signUpInput("dana", "dana@usls.edu.ph"))
	assert.Equal(t, "Only emails from @example.edu are allowed.", registry.FieldsOf(err)["email"])

	_, err = svc.SignUp(t.Context(), signUpInput("dana", "Dana@Example.edu"))
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, registry.DefaultPolicy)

	u, err := f.svc.Authenticate(t.Context(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, f.member.ID, u.ID)

	_, err = f.svc.Authenticate(t.Context(), "alice", "wrong")
	assert.ErrorIs(t, err, registry.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(t.Context(), "nobody", "password123")
	assert.ErrorIs(t, err, registry.ErrInvalidCredentials)
}

func TestCreateStaff(t *testing.T) {
	f := newFixture(t, registry.DefaultPolicy)

	u, err := f.svc.CreateStaff(t.Context(), "desk", "desk@example.com", "long-enough")
	require.NoError(t, err)
	assert.True(t, u.IsStaff())
	assert.True(t, u.Needs2FASetup())

	_, err = f.svc.CreateStaff(t.Context(), "desk", "desk2@example.com", "long-enough")
	assert.Contains(t, registry.FieldsOf(err), "username")
}
