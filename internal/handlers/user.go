package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

const (
	maxAvatarBytes  = 1 << 20
	formFieldAvatar = "avatar"

	// Headroom for multipart framing on top of the file itself.
	maxAvatarBodyBytes = maxAvatarBytes + 16<<10
)

var allowedAvatarExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var allowedProfileFields = map[string]bool{
	"name":     true,
	"age":      true,
	"email":    true,
	"password": true,
}

// UserHandler provides account, session, and avatar endpoints.
type UserHandler struct {
	users   *services.UserService
	avatars *services.AvatarService
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(users *services.UserService, avatars *services.AvatarService) *UserHandler {
	return &UserHandler{users: users, avatars: avatars}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, avatars *services.AvatarService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(users, avatars)

	r.Post("/", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/{userID}/avatar", handler.GetAvatar)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", handler.Logout)
		r.Post("/logoutAll", handler.LogoutAll)
		r.Route("/me", func(r chi.Router) {
			r.Get("/", handler.Me)
			r.Patch("/", handler.UpdateMe)
			r.Delete("/", handler.DeleteMe)
			r.Post("/avatar", handler.UploadAvatar)
			r.Delete("/avatar", handler.DeleteAvatar)
		})
	})
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse pairs the sanitized user with a freshly issued token.
type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// Register creates a new account and opens its first session.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, token, err := h.users.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Age:      req.Age,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login validates credentials and opens a new session.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// Logout revokes the session token presented on this request.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, err := tokenFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.users.Logout(r.Context(), user.ID, token); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll revokes every session the caller holds.
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.users.LogoutAll(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out everywhere"})
}

// Me returns the caller's sanitized profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe applies an allow-listed profile update. Any field outside
// {name, age, email, password} rejects the whole request.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	for field := range raw {
		if !allowedProfileFields[field] {
			writeError(w, http.StatusBadRequest, "invalid update")
			return
		}
	}

	update, err := decodeProfileUpdate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.users.Update(r.Context(), user, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteMe removes the caller's account together with all owned tasks
// and sessions, then queues the cancellation email.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.users.Delete(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UploadAvatar accepts a jpg/jpeg/png upload of at most 1MB and stores
// it normalized to a 250x250 PNG.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Cap the whole body before the multipart reader touches it, so an
	// oversized upload is cut off while streaming rather than parsed in
	// full and rejected after the fact.
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBodyBytes)

	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusBadRequest, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAvatarExts[ext] {
		writeError(w, http.StatusBadRequest, "please upload an image file (jpg, jpeg, png)")
		return
	}

	data, err := readFileLimited(file, maxAvatarBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.avatars.Upload(r.Context(), user.ID, data); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "avatar uploaded"})
}

// DeleteAvatar clears the caller's avatar.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.avatars.Delete(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "avatar deleted"})
}

// GetAvatar serves a user's avatar as raw PNG bytes. Unauthenticated.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	// Anything that is not a plausible user id is simply an avatar that
	// does not exist.
	raw := chi.URLParam(r, "userID")
	userID, err := strconv.Atoi(raw)
	if err != nil || userID < 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	data, err := h.avatars.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeProfileUpdate(raw map[string]json.RawMessage) (services.ProfileUpdate, error) {
	var update services.ProfileUpdate
	if value, ok := raw["name"]; ok {
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			return services.ProfileUpdate{}, err
		}
		update.Name = &name
	}
	if value, ok := raw["email"]; ok {
		var email string
		if err := json.Unmarshal(value, &email); err != nil {
			return services.ProfileUpdate{}, err
		}
		update.Email = &email
	}
	if value, ok := raw["age"]; ok {
		var age int
		if err := json.Unmarshal(value, &age); err != nil {
			return services.ProfileUpdate{}, err
		}
		update.Age = &age
	}
	if value, ok := raw["password"]; ok {
		var password string
		if err := json.Unmarshal(value, &password); err != nil {
			return services.ProfileUpdate{}, err
		}
		update.Password = &password
	}
	return update, nil
}
