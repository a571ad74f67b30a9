package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"golang.org/x/crypto/bcrypt"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/session"
)

const cookieName = "admin-session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginGet hands out the CSRF token the login form must echo back.
func (h *Handler) LoginGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": csrf.Token(r)})
}

func (h *Handler) LoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login request")
		return
	}

	user, err := h.store.FindUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		slog.Error("Failed to look up admin user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || user.String("role") != models.RoleAdmin ||
		bcrypt.CompareHashAndPassword([]byte(user.String("passwordHash")), []byte(req.Password)) != nil {
		slog.Info("Rejected admin login", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sid := uuid.NewString()
	ws, err := newWorkspace(h.store, h.now)
	if err != nil {
		slog.Error("Failed to create admin workspace", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sess, _ := h.cookies.Get(r, cookieName)
	sess.Values["authenticated"] = true
	sess.Values["sid"] = sid
	sess.Values["username"] = req.Username
	if err := sess.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	h.mu.Lock()
	h.workspaces[sid] = ws
	h.mu.Unlock()
	h.timers.Open(sid)
	ws.preload(r.Context())

	slog.Info("Admin login successful", "username", req.Username, "session", sid)
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username, "csrfToken": csrf.Token(r)})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.cookies.Get(r, cookieName)
	if sid, ok := sess.Values["sid"].(string); ok {
		h.endSession(sid)
	}
	sess.Values["authenticated"] = false
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		slog.Error("Failed to clear session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) endSession(sid string) {
	h.timers.Close(sid)
	h.revoke(sid)
}

// auth requires a live admin session. When touch is set the request counts
// as user activity and pushes the idle deadline back. Expired sessions are
// logged out.
func (h *Handler) auth(touch bool, next func(w http.ResponseWriter, r *http.Request, sid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := h.cookies.Get(r, cookieName)
		sid, _ := sess.Values["sid"].(string)
		if ok, _ := sess.Values["authenticated"].(bool); !ok || sid == "" {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}

		var err error
		if touch {
			err = h.timers.Touch(sid, session.EventPointerDown)
		} else {
			_, err = h.timers.Status(sid)
		}
		_, hasWorkspace := h.workspace(sid)
		if err != nil || !hasWorkspace {
			slog.Info("Logging out idle admin session", "session", sid, "reason", err)
			h.endSession(sid)
			sess.Values["authenticated"] = false
			sess.Options.MaxAge = -1
			if saveErr := sess.Save(r, w); saveErr != nil {
				slog.Error("Failed to clear session", "error", saveErr)
			}
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		w.Header().Set("X-CSRF-Token", csrf.Token(r))
		next(w, r, sid)
	}
}
