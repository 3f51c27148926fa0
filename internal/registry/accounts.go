package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lostfound/internal/models"
)

// SignUpInput holds the registration form.
type SignUpInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,max=254,email,campusemail"`
	Password1 string `form:"password1" validate:"required,min=8"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// SignUp registers a member account. The email must belong to the
// configured campus domain; username and email must be unused.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	fe := s.validateStruct(&in)
	if err := s.checkUnique(ctx, in.Username, in.Email, fe); err != nil {
		return nil, err
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	user, err := s.repos.Users.Create(ctx, in.Username, in.Email, in.Password1, models.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// CreateStaff registers a staff account. Used by the admin CLI; it skips
// the campus email rule but keeps the uniqueness checks.
func (s *Service) CreateStaff(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	fe := FieldErrors{}
	if username == "" {
		fe.Add("username", "This field is required.")
	} else if !usernamePattern.MatchString(username) {
		fe.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if email == "" {
		fe.Add("email", "This field is required.")
	}
	if len(password) < 8 {
		fe.Add("password1", "Ensure this value has at least 8 characters.")
	}
	if err := s.checkUnique(ctx, username, email, fe); err != nil {
		return nil, err
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	user, err := s.repos.Users.Create(ctx, username, email, password, models.RoleStaff)
	if err != nil {
		return nil, fmt.Errorf("create staff user: %w", err)
	}
	slog.Info("staff user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *Service) checkUnique(ctx context.Context, username, email string, fe FieldErrors) error {
	if _, bad := fe["username"]; !bad && username != "" {
		u, err := s.repos.Users.FindByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("find user by username: %w", err)
		}
		if u != nil {
			fe.Add("username", "A user with that username already exists.")
		}
	}
	if _, bad := fe["email"]; !bad && email != "" {
		u, err := s.repos.Users.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find user by email: %w", err)
		}
		if u != nil {
			fe.Add("email", "A user with that email already exists.")
		}
	}
	return nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repos.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !s.repos.Users.CheckPassword(user, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// User returns an account by id or ErrNotFound.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Users lists all accounts, for the staff status form.
func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.repos.Users.List(ctx)
}

// SetTOTPSecret stores a freshly generated, not yet confirmed secret.
func (s *Service) SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	return s.repos.Users.SetTOTPSecret(ctx, userID, secret)
}

// EnableTOTP marks the user's secret as confirmed.
func (s *Service) EnableTOTP(ctx context.Context, userID uuid.UUID) error {
	return s.repos.Users.EnableTOTP(ctx, userID)
}
