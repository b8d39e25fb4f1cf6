package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blogescolar/blog-api/internal/apperrors"
	"github.com/blogescolar/blog-api/internal/models"
	"github.com/go-playground/validator/v10"
)

// RegisterInput is the registration payload after boundary normalization.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=aluno professor"`
}

// Service encapsulates user-related business logic
type Service struct {
	repo     UserRepository
	validate *validator.Validate
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, validate: validator.New()}
}

// Register creates an account. Email and role are normalized before validation.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = string(models.NormalizeRole(in.Role))
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, describeValidation(err))
	}

	if existing, err := s.repo.FindByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, ErrEmailTaken)
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.Role(in.Role),
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, ErrEmailTaken)
	}
	return u, err
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidInput)
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return u, err
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "oneof":
			parts = append(parts, field+" must be one of: "+fe.Param())
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
