package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/storage"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
	"go.uber.org/zap"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
	tasks  *memTaskRepo
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) DeleteWithTasks(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	if r.tasks != nil {
		r.tasks.deleteOwned(id)
	}
	return nil
}

type memSessionRepo struct {
	mu     sync.Mutex
	tokens map[int]map[string]bool
}

func (r *memSessionRepo) Add(_ context.Context, userID int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[userID] == nil {
		r.tokens[userID] = map[string]bool{}
	}
	r.tokens[userID][token] = true
	return nil
}

func (r *memSessionRepo) Revoke(_ context.Context, userID int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens[userID], token)
	return nil
}

func (r *memSessionRepo) RevokeAll(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	return nil
}

func (r *memSessionRepo) Live(_ context.Context, userID int, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[userID][token], nil
}

type memTaskRepo struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]types.Task
}

func (r *memTaskRepo) List(_ context.Context, ownerID int, filter store.TaskFilter) ([]types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]types.Task, 0)
	for id := 1; id <= r.nextID; id++ {
		task, ok := r.tasks[id]
		if !ok || task.OwnerID != ownerID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *memTaskRepo) Get(_ context.Context, id, ownerID int) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *memTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memTaskRepo) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return types.Task{}, store.ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id, ownerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) deleteOwned(ownerID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, task := range r.tasks {
		if task.OwnerID == ownerID {
			delete(r.tasks, id)
		}
	}
}

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (s *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) Bucket() string { return "test" }

// newTestRouter wires the full HTTP surface over in-memory repositories.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	taskRepo := &memTaskRepo{tasks: map[int]types.Task{}}
	userRepo := &memUserRepo{users: map[int]types.User{}, tasks: taskRepo}
	sessionRepo := &memSessionRepo{tokens: map[int]map[string]bool{}}

	notifier := services.NewNotificationPublisher(nil, zap.NewNop())
	userService := services.NewUserService(userRepo, sessionRepo, notifier, config.JWTConfig{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
	})
	taskService := services.NewTaskService(taskRepo)
	avatarService := services.NewAvatarService(storage.NewStorage(&memObjectStorage{objects: map[string][]byte{}}))

	authMiddleware := RequireAuth(userService)

	router := chi.NewRouter()
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, avatarService, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskService, authMiddleware)
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&value))
	return value
}

func registerTestUser(t *testing.T, router http.Handler, email string) (types.User, string) {
	t.Helper()
	recorder := doJSON(t, router, http.MethodPost, "/users", "", map[string]any{
		"name":     "Andrew",
		"email":    email,
		"age":      27,
		"password": "red12345!",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	resp := decodeBody[AuthResponse](t, recorder)
	return resp.User, resp.Token
}

func uploadAvatar(t *testing.T, router http.Handler, token, filename string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(formFieldAvatar, filename)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}
