package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bussola-digital/bussola-backend/internal/data/pgerr"
	"github.com/bussola-digital/bussola-backend/internal/data/repos"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/apierr"
	"github.com/bussola-digital/bussola-backend/internal/platform/ctxutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

type RegisterInput struct {
	CompanyName string `json:"company_name"`
	Segment     string `json:"segment"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type AuthService interface {
	// Register creates a company and its owner user in one transaction and
	// returns a signed access token.
	Register(ctx context.Context, input RegisterInput) (*types.User, string, error)
	Login(ctx context.Context, email, password string) (*types.User, string, error)
	// ParseToken verifies an access token and returns the identity the auth
	// middleware attaches to the request context.
	ParseToken(tokenString string) (*ctxutil.RequestData, error)
}

type JWTClaims struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	db          *gorm.DB
	log         *logger.Logger
	companyRepo repos.CompanyRepo
	userRepo    repos.UserRepo
	jwtSecret   string
	accessTTL   time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	companyRepo repos.CompanyRepo,
	userRepo repos.UserRepo,
	jwtSecret string,
	accessTTL time.Duration,
) AuthService {
	serviceLog := log.With("service", "AuthService")
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		db:          db,
		log:         serviceLog,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		jwtSecret:   jwtSecret,
		accessTTL:   accessTTL,
	}
}

func (as *authService) Register(ctx context.Context, input RegisterInput) (*types.User, string, error) {
	companyName := strings.TrimSpace(input.CompanyName)
	segment := strings.TrimSpace(input.Segment)
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if companyName == "" || segment == "" || name == "" || email == "" || input.Password == "" {
		return nil, "", apierr.Validation("missing_fields", fmt.Errorf("company_name, segment, name, email and password are required"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	var user *types.User
	if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := as.userRepo.EmailExists(ctx, tx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return apierr.Conflict("email_taken", fmt.Errorf("email %s already registered", email))
		}

		company, err := as.companyRepo.Create(ctx, tx, &types.Company{
			ID:      uuid.New(),
			Name:    companyName,
			Segment: segment,
		})
		if err != nil {
			return fmt.Errorf("create company: %w", err)
		}

		user, err = as.userRepo.Create(ctx, tx, &types.User{
			ID:        uuid.New(),
			CompanyID: company.ID,
			Email:     email,
			Password:  string(hash),
			Name:      name,
			Role:      types.RoleOwner,
		})
		if err != nil {
			if pgerr.IsUniqueViolation(err) {
				return apierr.Conflict("email_taken", err)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	}); err != nil {
		return nil, "", err
	}

	token, err := as.mintToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apierr.Validation("missing_credentials", fmt.Errorf("email and password are required"))
	}

	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, "", apierr.NotFound("invalid_credentials", fmt.Errorf("unknown email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", apierr.NotFound("invalid_credentials", fmt.Errorf("unknown email or password"))
	}

	token, err := as.mintToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) mintToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		CompanyID: user.CompanyID.String(),
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) ParseToken(tokenString string) (*ctxutil.RequestData, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("invalid company id: %w", err)
	}
	return &ctxutil.RequestData{
		UserID:    userID,
		CompanyID: companyID,
		Role:      claims.Role,
	}, nil
}
