package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/handler"
	"github.com/mingke-lab/exam-go-api/internal/service"
)

type mockBatchService struct {
	outcome dto.BatchOutcomeResponse
	err     error
}

func (m *mockBatchService) DeleteStudents(_ context.Context, _ dto.BatchDeleteStudentsRequest, _ service.ActivityActor) (dto.BatchOutcomeResponse, error) {
	if m.err != nil {
		return dto.BatchOutcomeResponse{}, m.err
	}
	return m.outcome, nil
}

func (m *mockBatchService) ImportQuestions(_ context.Context, _ dto.BatchImportQuestionsRequest, _ service.ActivityActor) (dto.BatchOutcomeResponse, error) {
	if m.err != nil {
		return dto.BatchOutcomeResponse{}, m.err
	}
	return m.outcome, nil
}

func (m *mockBatchService) WatchProgress() (<-chan dto.BatchProgressEvent, func()) {
	events := make(chan dto.BatchProgressEvent)
	close(events)
	return events, func() {}
}

func newBatchApp(svc service.AdminBatchService) *fiber.App {
	app := fiber.New()
	handler.NewAdminBatchHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/admin/batch"))
	return app
}

func TestAdminBatchHandler_DeleteStudentsPartialFailure(t *testing.T) {
	svc := &mockBatchService{outcome: dto.BatchOutcomeResponse{
		Succeeded: 3,
		Failed:    1,
		Failures:  []dto.BatchFailureResponse{{ID: "3", Message: "student 3 not found"}},
		Summary:   "3 succeeded, 1 failed",
	}}
	app := newBatchApp(svc)

	payload, err := json.Marshal(dto.BatchDeleteStudentsRequest{IDs: []uint{1, 2, 3, 4}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/batch/students/delete", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	var body struct {
		Success bool                     `json:"success"`
		Data    dto.BatchOutcomeResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, 3, body.Data.Succeeded)
	require.Equal(t, 1, body.Data.Failed)
	require.Len(t, body.Data.Failures, 1)
	require.Equal(t, "3", body.Data.Failures[0].ID)
}

func TestAdminBatchHandler_ImportQuestionsSchemaRejected(t *testing.T) {
	app := newBatchApp(&mockBatchService{err: service.ErrImportSchemaInvalid})

	payload, err := json.Marshal(dto.BatchImportQuestionsRequest{Rows: []dto.QuestionImportRow{
		{PaperID: 1, Kind: "essay", Prompt: "Explain", Answer: []string{"???"}},
	}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/batch/questions/import", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminBatchHandler_ProgressRequiresUpgrade(t *testing.T) {
	app := newBatchApp(&mockBatchService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/batch/progress/ws", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

type streamingBatchService struct {
	mockBatchService
	events []dto.BatchProgressEvent
}

func (s *streamingBatchService) WatchProgress() (<-chan dto.BatchProgressEvent, func()) {
	out := make(chan dto.BatchProgressEvent, len(s.events))
	for _, event := range s.events {
		out <- event
	}
	close(out)
	return out, func() {}
}

func TestAdminBatchHandler_ProgressStreamsEvents(t *testing.T) {
	svc := &streamingBatchService{events: []dto.BatchProgressEvent{
		{Operation: "delete_students", Done: 1, Total: 2, ItemID: "1"},
		{Operation: "delete_students", Done: 2, Total: 2, ItemID: "2", Error: "student 2 not found"},
	}}
	app := newBatchApp(svc)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(listener) }()
	defer func() { _ = app.Shutdown() }()

	url := "ws://" + listener.Addr().String() + "/api/v1/admin/batch/progress/ws"
	var conn *gws.Conn
	require.Eventually(t, func() bool {
		var dialErr error
		conn, _, dialErr = gws.DefaultDialer.Dial(url, nil)
		return dialErr == nil
	}, 2*time.Second, 50*time.Millisecond)
	defer conn.Close()

	var received []dto.BatchProgressEvent
	for len(received) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event dto.BatchProgressEvent
		require.NoError(t, conn.ReadJSON(&event))
		received = append(received, event)
	}

	require.Equal(t, 1, received[0].Done)
	require.Equal(t, "student 2 not found", received[1].Error)
}

func TestAdminBatchHandler_ProgressClosesWhenStreamEnds(t *testing.T) {
	svc := &streamingBatchService{events: []dto.BatchProgressEvent{
		{Operation: "import_questions", Done: 1, Total: 1, ItemID: "1"},
	}}
	app := newBatchApp(svc)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(listener) }()
	defer func() { _ = app.Shutdown() }()

	url := "ws://" + listener.Addr().String() + "/api/v1/admin/batch/progress/ws"
	var conn *gws.Conn
	require.Eventually(t, func() bool {
		var dialErr error
		conn, _, dialErr = gws.DefaultDialer.Dial(url, nil)
		return dialErr == nil
	}, 2*time.Second, 50*time.Millisecond)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event dto.BatchProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, 1, event.Done)

	// Once the progress feed is exhausted the server tears the
	// connection down without waiting for the client to hang up.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.Error(t, conn.ReadJSON(&event))
}
