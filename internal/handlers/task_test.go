package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/apiserver/types"
)

func TestCreateTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	user, token := registerTestUser(t, router, "andrew@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "buy milk",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	task := decodeBody[types.Task](t, recorder)
	assert.Equal(t, "buy milk", task.Description)
	assert.False(t, task.Completed)
	assert.Equal(t, user.ID, task.OwnerID)
}

func TestCreateTaskEndpointRequiresDescription(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListTasksEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")
	_, otherToken := registerTestUser(t, router, "other@example.com")

	for _, payload := range []map[string]any{
		{"description": "buy milk"},
		{"description": "walk dog", "completed": true},
	} {
		recorder := doJSON(t, router, http.MethodPost, "/tasks", token, payload)
		require.Equal(t, http.StatusCreated, recorder.Code)
	}
	recorder := doJSON(t, router, http.MethodPost, "/tasks", otherToken, map[string]any{
		"description": "not yours",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = doJSON(t, router, http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	tasks := decodeBody[[]types.Task](t, recorder)
	require.Len(t, tasks, 2)

	recorder = doJSON(t, router, http.MethodGet, "/tasks?completed=true", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	tasks = decodeBody[[]types.Task](t, recorder)
	require.Len(t, tasks, 1)
	assert.Equal(t, "walk dog", tasks[0].Description)
}

func TestListTasksEndpointRejectsBadQuery(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")

	for _, query := range []string{
		"?completed=maybe",
		"?sortBy=created_at:sideways",
		"?limit=0",
		"?skip=-1",
	} {
		recorder := doJSON(t, router, http.MethodGet, "/tasks"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, query)
	}
}

func TestGetTaskEndpointForeignOwner(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")
	_, otherToken := registerTestUser(t, router, "other@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "buy milk",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	task := decodeBody[types.Task](t, recorder)

	// Another user's task is indistinguishable from a missing one.
	recorder = doJSON(t, router, http.MethodGet, "/tasks/"+strconv.Itoa(task.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(t, router, http.MethodGet, "/tasks/"+strconv.Itoa(task.ID), token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestUpdateTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "buy milk",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	task := decodeBody[types.Task](t, recorder)

	recorder = doJSON(t, router, http.MethodPatch, "/tasks/"+strconv.Itoa(task.ID), token, map[string]any{
		"completed": true,
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	updated := decodeBody[types.Task](t, recorder)
	assert.True(t, updated.Completed)
	assert.Equal(t, "buy milk", updated.Description)
}

func TestUpdateTaskEndpointRejectsUnknownField(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "buy milk",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	task := decodeBody[types.Task](t, recorder)

	recorder = doJSON(t, router, http.MethodPatch, "/tasks/"+strconv.Itoa(task.ID), token, map[string]any{
		"completed": true,
		"owner_id":  999,
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, http.MethodGet, "/tasks/"+strconv.Itoa(task.ID), token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	got := decodeBody[types.Task](t, recorder)
	assert.False(t, got.Completed)
}

func TestDeleteTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")
	_, otherToken := registerTestUser(t, router, "other@example.com")

	recorder := doJSON(t, router, http.MethodPost, "/tasks", token, map[string]any{
		"description": "buy milk",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	task := decodeBody[types.Task](t, recorder)

	recorder = doJSON(t, router, http.MethodDelete, "/tasks/"+strconv.Itoa(task.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(t, router, http.MethodDelete, "/tasks/"+strconv.Itoa(task.ID), token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	deleted := decodeBody[types.Task](t, recorder)
	assert.Equal(t, task.ID, deleted.ID)

	recorder = doJSON(t, router, http.MethodGet, "/tasks/"+strconv.Itoa(task.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestTaskIDValidation(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerTestUser(t, router, "andrew@example.com")

	recorder := doJSON(t, router, http.MethodGet, "/tasks/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
