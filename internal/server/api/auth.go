package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/labstack/echo/v4"
)

const loginFailedPath = "/login?error=invalid"

type loginRequest struct {
	Email string `json:"email" form:"email" validate:"required,email,max=320"`
}

type meResponse struct {
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.svc.Auth.RequestLogin(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "sent"})
}

// authCallback completes a login from the mailed link. Every failure reason
// redirects to the same page.
func (s *Server) authCallback(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.QueryParam("token")

	email, err := s.svc.Auth.Verify(ctx, token, s.svc.Auth.MaxAge(), true)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidToken) {
			s.logger.Error(ctx, "login verification failed", "error", err)
		}
		return c.Redirect(http.StatusSeeOther, loginFailedPath)
	}

	c.SetCookie(s.sessionCookie(token, int(s.config.SessionMaxAge/time.Second)))
	s.logger.Info(ctx, "login completed", "token", common.Fingerprint(token), "domain", emailDomain(email))
	return c.Redirect(http.StatusSeeOther, s.config.DashboardPath)
}

func (s *Server) me(c echo.Context) error {
	cookie, err := c.Cookie(s.config.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return common.ErrorUnauthorized
	}

	ctx := c.Request().Context()
	email, err := s.svc.Auth.Authenticate(ctx, cookie.Value)
	if err != nil {
		return err
	}

	balance, err := s.svc.Ledger.GetBalance(ctx, email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{Email: email, Balance: balance})
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(s.sessionCookie("", -1))
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.config.PublicURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}
