package token

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/models"
)

const accessTokenTTL = 60 * time.Minute

// Service issues and verifies bearer access tokens and resolves the
// calling user on every request.
type Service struct {
	DB        *gorm.DB
	JWTSecret []byte
}

func (s *Service) SignAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub": user.ID,
		"adm": user.IsAdmin,
		"exp": time.Now().Add(accessTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.JWTSecret)
}

func (s *Service) parse(raw string) (uint, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.JWTSecret, nil
	})
	if err != nil || !t.Valid {
		return 0, errors.New("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid subject claim")
	}
	return uint(sub), nil
}

func bearerToken(c echo.Context) (string, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

// currentUser re-reads the user row so revoked or promoted accounts take
// effect immediately, not at token expiry.
func (s *Service) currentUser(c echo.Context) (*models.User, error) {
	raw, err := bearerToken(c)
	if err != nil {
		return nil, err
	}
	userID, err := s.parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var user models.User
	if err := s.DB.WithContext(c.Request().Context()).First(&user, userID).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	if !user.IsActive {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "user is inactive")
	}
	return &user, nil
}

func (s *Service) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.currentUser(c)
		if err != nil {
			return err
		}
		setUserContext(c, user)
		return next(c)
	}
}

func (s *Service) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.currentUser(c)
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin rights required")
		}
		setUserContext(c, user)
		return next(c)
	}
}

func setUserContext(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("isAdmin", user.IsAdmin)
	c.Set("user", user)
}

// UserID reads the authenticated user id placed by the middleware.
func UserID(c echo.Context) uint {
	if id, ok := c.Get("userID").(uint); ok {
		return id
	}
	return 0
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get("user").(*models.User); ok {
		return u
	}
	return nil
}
