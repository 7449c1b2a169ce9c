package services

import (
	"context"
	"sync"

	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
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

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
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

func (r *fakeUserRepo) DeleteWithTasks(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeSessionRepo struct {
	mu     sync.Mutex
	tokens map[int]map[string]bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{tokens: map[int]map[string]bool{}}
}

func (r *fakeSessionRepo) Add(_ context.Context, userID int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[userID] == nil {
		r.tokens[userID] = map[string]bool{}
	}
	r.tokens[userID][token] = true
	return nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, userID int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens[userID], token)
	return nil
}

func (r *fakeSessionRepo) RevokeAll(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	return nil
}

func (r *fakeSessionRepo) Live(_ context.Context, userID int, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[userID][token], nil
}

func (r *fakeSessionRepo) count(userID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens[userID])
}

type fakeNotifier struct {
	mu            sync.Mutex
	welcomes      []types.User
	cancellations []types.User
}

func (n *fakeNotifier) Welcome(_ context.Context, user types.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, user)
}

func (n *fakeNotifier) Cancellation(_ context.Context, user types.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, user)
}

type fakeTaskRepo struct {
	mu         sync.Mutex
	nextID     int
	tasks      map[int]types.Task
	lastFilter store.TaskFilter
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int]types.Task{}}
}

func (r *fakeTaskRepo) List(_ context.Context, ownerID int, filter store.TaskFilter) ([]types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var tasks []types.Task
	for _, task := range r.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *fakeTaskRepo) Get(_ context.Context, id, ownerID int) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return types.Task{}, store.ErrNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id, ownerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}
