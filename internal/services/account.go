package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
)

const (
	usernameMaxLength = 150
	nameMaxLength     = 150

	msgUsernameTaken    = "A user with that username already exists."
	msgPasswordMismatch = "Password fields didn't match."
	msgInvalidUsername  = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgInvalidEmail     = "Enter a valid email address."
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type RegistrationRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ProfileUpdate carries the profile fields a caller may change. The password
// is deliberately absent.
type ProfileUpdate struct {
	Username  Optional[string] `json:"username"`
	Email     Optional[string] `json:"email"`
	FirstName Optional[string] `json:"first_name"`
	LastName  Optional[string] `json:"last_name"`
}

type ChangePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password2"`
}

type AccountService interface {
	Register(ctx context.Context, req RegistrationRequest) (models.Profile, error)
	Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (models.Profile, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
}

type accountService struct {
	users    repositories.UserRepository
	hasher   *PasswordHasher
	validate *validator.Validate
}

func NewAccountService(users repositories.UserRepository, hasher *PasswordHasher) AccountService {
	return &accountService{
		users:    users,
		hasher:   hasher,
		validate: validator.New(),
	}
}

func (s *accountService) Register(ctx context.Context, req RegistrationRequest) (models.Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	verr := &ValidationError{}
	if err := s.checkUsername(ctx, verr, req.Username, uuid.Nil); err != nil {
		return models.Profile{}, err
	}
	s.checkEmail(verr, req.Email)
	s.checkName(verr, "first_name", req.FirstName)
	s.checkName(verr, "last_name", req.LastName)

	if req.Password == "" {
		verr.Add("password", msgRequired)
	}
	if req.Password2 == "" {
		verr.Add("password2", msgRequired)
	}
	if req.Password != "" && req.Password2 != "" {
		if req.Password != req.Password2 {
			verr.Add("password", msgPasswordMismatch)
		} else {
			for _, problem := range ValidatePassword(req.Password,
				UserAttribute{Label: "username", Value: req.Username},
				UserAttribute{Label: "first name", Value: req.FirstName},
				UserAttribute{Label: "last name", Value: req.LastName},
				UserAttribute{Label: "email address", Value: req.Email},
			) {
				verr.Add("password", problem)
			}
		}
	}
	if err := verr.Err(); err != nil {
		return models.Profile{}, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.Profile{}, err
	}

	user := models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateName) {
			return models.Profile{}, fieldError("username", msgUsernameTaken)
		}
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *accountService) Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *accountService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (models.Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}

	verr := &ValidationError{}
	if update.Username.Set {
		if update.Username.Null {
			verr.Add("username", msgNotNull)
		} else {
			username := strings.TrimSpace(update.Username.Value)
			if err := s.checkUsername(ctx, verr, username, user.ID); err != nil {
				return models.Profile{}, err
			}
			user.Username = username
		}
	}
	if update.Email.Set {
		if update.Email.Null {
			verr.Add("email", msgNotNull)
		} else {
			user.Email = strings.TrimSpace(update.Email.Value)
			s.checkEmail(verr, user.Email)
		}
	}
	if update.FirstName.Set {
		if update.FirstName.Null {
			verr.Add("first_name", msgNotNull)
		} else {
			user.FirstName = strings.TrimSpace(update.FirstName.Value)
			s.checkName(verr, "first_name", user.FirstName)
		}
	}
	if update.LastName.Set {
		if update.LastName.Null {
			verr.Add("last_name", msgNotNull)
		} else {
			user.LastName = strings.TrimSpace(update.LastName.Value)
			s.checkName(verr, "last_name", user.LastName)
		}
	}
	if err := verr.Err(); err != nil {
		return models.Profile{}, err
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateName) {
			return models.Profile{}, fieldError("username", msgUsernameTaken)
		}
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

// ChangePassword replaces the stored hash. Tokens issued before the change
// remain valid until they expire.
func (s *accountService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(user.Password, req.OldPassword) {
		return ErrOldPasswordIncorrect
	}
	if req.NewPassword != req.NewPassword2 {
		return ErrNewPasswordMismatch
	}

	hashed, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.users.Update(ctx, &user)
}

func (s *accountService) load(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return user, ErrUserNotFound
	}
	return user, err
}

func (s *accountService) checkUsername(ctx context.Context, verr *ValidationError, username string, self uuid.UUID) error {
	switch {
	case username == "":
		verr.Add("username", msgRequired)
		return nil
	case utf8.RuneCountInString(username) > usernameMaxLength:
		verr.Add("username", "Ensure this field has no more than 150 characters.")
		return nil
	case !usernamePattern.MatchString(username):
		verr.Add("username", msgInvalidUsername)
		return nil
	}

	taken, err := s.users.UsernameTaken(ctx, username, self)
	if err != nil {
		return err
	}
	if taken {
		verr.Add("username", msgUsernameTaken)
	}
	return nil
}

func (s *accountService) checkEmail(verr *ValidationError, email string) {
	if email == "" {
		return
	}
	if err := s.validate.Var(email, "email"); err != nil {
		verr.Add("email", msgInvalidEmail)
	}
}

func (s *accountService) checkName(verr *ValidationError, field, value string) {
	if utf8.RuneCountInString(value) > nameMaxLength {
		verr.Add(field, "Ensure this field has no more than 150 characters.")
	}
}
