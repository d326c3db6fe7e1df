// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/perfumery/internal/metrics"
	"github.com/olegiv/perfumery/internal/middleware"
	"github.com/olegiv/perfumery/internal/render"
	"github.com/olegiv/perfumery/internal/service"
	"github.com/olegiv/perfumery/internal/store"
)

// credentialsForm is echoed back into the login and register forms.
// The password is never echoed.
type credentialsForm struct {
	Username string
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	accounts        *service.AccountService
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(accounts *service.AccountService, renderer *render.Renderer, sm *scs.SessionManager, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		accounts:        accounts,
		renderer:        renderer,
		sessionManager:  sm,
		loginProtection: lp,
	}
}

// landingPath is where a signed-in user belongs.
func landingPath(user *store.User) string {
	switch {
	case user == nil:
		return RouteLogin
	case user.IsAdmin():
		return RouteAdmin
	default:
		return RouteHome
	}
}

// Root sends anonymous visitors to /login, admins to /admin and everyone
// else to /home.
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, landingPath(middleware.GetUser(r)), http.StatusSeeOther)
}

// RegisterForm renders the registration page.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		http.Redirect(w, r, landingPath(user), http.StatusSeeOther)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, tmplRegister, render.TemplateData{
		Title: "Register",
		Form:  credentialsForm{},
	})
}

// Register handles the registration form submission.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	form := credentialsForm{Username: service.NormalizeUsername(username)}

	user, err := h.accounts.Register(r.Context(), username, password)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.renderRegister(w, r, http.StatusUnprocessableEntity, form, verr.Fields)
		case errors.Is(err, service.ErrDuplicateUsername):
			h.renderRegister(w, r, http.StatusConflict, form, map[string]string{"username": msgDuplicateUsername})
		default:
			logAndInternalError(w, "registration failed", "username", form.Username, "error", err)
		}
		return
	}

	metrics.RecordAuth(metrics.AuthRegister)
	slog.Info("user registered via form", "user_id", user.ID)
	flashSuccess(w, r, h.renderer, RouteLogin, msgRegistered)
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, form credentialsForm, fieldErrors map[string]string) {
	renderPage(w, r, h.renderer, status, tmplRegister, render.TemplateData{
		Title:  "Register",
		Form:   form,
		Errors: fieldErrors,
	})
}

// LoginForm renders the login page. Signed-in users are sent to their
// landing page.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		http.Redirect(w, r, landingPath(user), http.StatusSeeOther)
		return
	}
	renderPage(w, r, h.renderer, http.StatusOK, tmplLogin, render.TemplateData{
		Title: "Login",
		Form:  credentialsForm{},
	})
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := service.NormalizeUsername(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	form := credentialsForm{Username: username}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(username); locked {
			slog.Warn("login attempt on locked account", "username", username)
			h.renderLogin(w, r, http.StatusTooManyRequests, form,
				fmt.Sprintf("Account temporarily locked. Try again in %s.", formatDuration(remaining)))
			return
		}
	}

	user, err := h.accounts.Login(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			logAndInternalError(w, "login failed", "username", username, "error", err)
			return
		}

		slog.Debug("invalid login attempt", "username", username)
		metrics.RecordAuth(metrics.AuthLoginFailure)

		message := msgInvalidCreds
		if h.loginProtection != nil {
			if locked, lockDuration := h.loginProtection.RecordFailedAttempt(username); locked {
				h.renderLogin(w, r, http.StatusTooManyRequests, form,
					fmt.Sprintf("Too many failed attempts. Try again in %s.", formatDuration(lockDuration)))
				return
			}
			if remaining := h.loginProtection.GetRemainingAttempts(username); remaining > 0 && remaining <= 3 {
				message = fmt.Sprintf("%s. %d attempts remaining.", msgInvalidCreds, remaining)
			}
		}
		h.renderLogin(w, r, http.StatusBadRequest, form, message)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(username)
	}

	if err := middleware.StartSession(r.Context(), h.sessionManager, user); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}

	metrics.RecordAuth(metrics.AuthLoginSuccess)
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username, "role", user.Role)

	http.Redirect(w, r, landingPath(&user), http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, form credentialsForm, message string) {
	renderPage(w, r, h.renderer, status, tmplLogin, render.TemplateData{
		Title: "Login",
		Form:  form,
		Error: message,
	})
}

// Logout destroys the session and redirects to /login.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), middleware.SessionKeyUserID)

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		logAndInternalError(w, "session destroy error", "error", err)
		return
	}

	if userID > 0 {
		metrics.RecordAuth(metrics.AuthLogout)
		slog.Info("user logged out", "user_id", userID)
	}

	flashAndRedirect(w, r, h.renderer, RouteLogin, msgLoggedOut, render.FlashInfo)
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
