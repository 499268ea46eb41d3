package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classmark/internal/checkin"
	"classmark/internal/ledger"
	"classmark/internal/model"
	"classmark/internal/roster"
	"classmark/internal/session"
	"classmark/internal/store"
)

const testOrganizerKey = "test-organizer-key"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemory()
	rosterSvc := roster.New(m)
	require.NoError(t, rosterSvc.Seed(context.Background(), roster.DemoRoster()))

	reg := session.New(m)
	l := ledger.New(m)
	c := checkin.New(reg, rosterSvc, l, "http://localhost:8081")

	h := New(rosterSvc, reg, l, c, "classmark-test", "test-signing-key", testOrganizerKey, time.Hour)
	r := gin.New()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/v1/organizer/login", "", gin.H{"key": testOrganizerKey})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestLoginRejectsWrongKey(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/v1/organizer/login", "", gin.H{"key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrganizerRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/v1/sessions", "", gin.H{"subject": "Algorithms", "scheduled_at": "2024-05-01 10:00"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doJSON(t, r, http.MethodGet, "/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	r := newTestRouter(t)
	bearer := login(t, r)
	w := doJSON(t, r, http.MethodPost, "/v1/sessions", bearer, gin.H{"subject": "   ", "scheduled_at": "2024-05-01 10:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Full organizer/participant flow: create a session, check in once, get
// declined on the duplicate scan, override, export, delete.
func TestAttendanceFlow(t *testing.T) {
	r := newTestRouter(t)
	bearer := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", bearer, gin.H{
		"subject":      "Algorithms",
		"scheduled_at": "2024-05-01 10:00",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var sess model.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, int64(1), sess.ID)
	require.NotEmpty(t, sess.Token)

	// QR payload carries the token.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/sessions/%d/qr", sess.ID), bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sess.Token)

	// Participant 2 checks in.
	w = doJSON(t, r, http.MethodPost, "/v1/checkins", "", gin.H{"token": sess.Token, "participant_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	// Duplicate scan is declined, distinguishably.
	w = doJSON(t, r, http.MethodPost, "/v1/checkins", "", gin.H{"token": sess.Token, "participant_id": 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already checked in")

	// Foreign token and unknown participant are declined.
	w = doJSON(t, r, http.MethodPost, "/v1/checkins", "", gin.H{"token": "foreign", "participant_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodPost, "/v1/checkins", "", gin.H{"token": sess.Token, "participant_id": 42})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Attendance shows 2 present with a timestamp, 1 and 3 absent.
	var att struct {
		Attendance []model.AttendanceRow `json:"attendance"`
	}
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/sessions/%d/attendance", sess.ID), bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &att))
	require.Len(t, att.Attendance, 3)
	for _, row := range att.Attendance {
		if row.ParticipantID == 2 {
			assert.Equal(t, model.StatusPresent, row.Status)
			assert.NotNil(t, row.CheckedInAt)
		} else {
			assert.Equal(t, model.StatusAbsent, row.Status)
			assert.Nil(t, row.CheckedInAt)
		}
	}

	// Organizer marks participant 1 late.
	w = doJSON(t, r, http.MethodPut, "/v1/attendance", bearer, gin.H{
		"participant_id": 1, "session_id": sess.ID, "status": "late",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/sessions/%d/attendance", sess.ID), bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &att))
	assert.Equal(t, model.StatusLate, att.Attendance[0].Status)
	assert.Nil(t, att.Attendance[0].CheckedInAt)

	// Export rows mirror the roster join.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/sessions/%d/export", sess.ID), bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var export struct {
		Rows []model.ExportRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	require.Len(t, export.Rows, 3)
	assert.Equal(t, model.StatusLate, export.Rows[0].Status)

	// Delete cascades; nothing stale remains.
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/sessions/%d", sess.ID), bearer, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/sessions/%d/attendance", sess.ID), bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodPost, "/v1/checkins", "", gin.H{"token": sess.Token, "participant_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListParticipantsOpenAndOrdered(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/v1/participants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Participants []model.Participant `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Participants, 3)
	assert.Equal(t, "101", resp.Participants[0].Group)
	assert.Equal(t, "102", resp.Participants[2].Group)
}
