package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"printbot/pkg/api"
)

type fakeBackend struct {
	mu sync.Mutex

	services  []api.Service
	listErr   error
	uploadErr error
	createErr error

	uploads []string
	created []api.OrderRequest
	orderID int64
}

func (f *fakeBackend) ListServices(ctx context.Context) ([]api.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.services, nil
}

func (f *fakeBackend) UploadFile(ctx context.Context, data []byte, filename string) (api.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return api.UploadResult{}, f.uploadErr
	}
	f.uploads = append(f.uploads, filename)
	return api.UploadResult{
		Token:     fmt.Sprintf("tok-%d", len(f.uploads)),
		SizeBytes: int64(len(data)),
	}, nil
}

func (f *fakeBackend) CreateOrder(ctx context.Context, req api.OrderRequest) (api.OrderCreated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return api.OrderCreated{}, f.createErr
	}
	f.created = append(f.created, req)
	return api.OrderCreated{ID: f.orderID}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []int64
}

func (f *fakeNotifier) OrderCreated(ctx context.Context, userID, orderID int64, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orderID)
}

func newTestOrchestrator(backend *fakeBackend) (*Orchestrator, *Store) {
	log := zap.NewNop()
	store := NewStore(24*time.Hour, log)
	return NewOrchestrator(store, NewMachine(log), backend, log), store
}

func defaultBackend() *fakeBackend {
	return &fakeBackend{
		services: []api.Service{{ID: 1, Name: "3D-печать по модели"}},
		orderID:  501,
	}
}

func driveToConfirmation(t *testing.T, o *Orchestrator, userID int64) {
	t.Helper()
	ctx := context.Background()

	_, err := o.StartOrder(ctx, userID)
	require.NoError(t, err)

	events := []Event{
		{Kind: EventChoice, Choice: "svc:1"},
		{Kind: EventText, Text: "Анна Каренина"},
		{Kind: EventText, Text: "anna@example.com"},
		{Kind: EventChoice, Choice: ChoiceSkipPhone},
		{Kind: EventFile, File: &FileRef{Name: "part.stl", Size: 6, Data: []byte("solid ")}},
		{Kind: EventChoice, Choice: ChoiceFilesDone},
		{Kind: EventChoice, Choice: "mat:pla"},
		{Kind: EventChoice, Choice: "quality:standard"},
		{Kind: EventChoice, Choice: "infill:30"},
		{Kind: EventChoice, Choice: "delivery:pickup"},
	}
	for _, ev := range events {
		ev.UserID = userID
		_, err := o.HandleEvent(ctx, ev)
		require.NoError(t, err, "event %s %s", ev.Kind, ev.Choice)
	}
}

func TestOrchestrator_FullFlow(t *testing.T) {
	backend := defaultBackend()
	o, store := newTestOrchestrator(backend)
	notifier := &fakeNotifier{}
	o.SetNotifier(notifier)
	ctx := context.Background()

	driveToConfirmation(t, o, 10)

	sess, err := store.Get(10)
	require.NoError(t, err)
	assert.Equal(t, StepConfirmation, sess.Step)
	require.Len(t, sess.Files, 1)
	assert.Equal(t, "tok-1", sess.Files[0].Token, "upload token is committed with the file")
	assert.Nil(t, sess.Files[0].Data, "raw bytes never reach the store")

	resp, err := o.HandleEvent(ctx, Event{UserID: 10, Kind: EventConfirm})
	require.NoError(t, err)
	assert.True(t, resp.Terminal)
	assert.Contains(t, resp.Text, "#501")

	_, err = store.Get(10)
	assert.ErrorIs(t, err, ErrSessionNotFound, "session removed after submission")

	require.Len(t, backend.created, 1)
	assert.Equal(t, "anna@example.com", backend.created[0].CustomerEmail)
	assert.Equal(t, []string{"part.stl"}, backend.uploads)
	assert.Equal(t, []int64{501}, notifier.orders)
}

func TestOrchestrator_SubmitFailureKeepsSessionForRetry(t *testing.T) {
	backend := defaultBackend()
	o, store := newTestOrchestrator(backend)
	ctx := context.Background()

	driveToConfirmation(t, o, 20)

	backend.createErr = errors.New("timeout")
	resp, err := o.HandleEvent(ctx, Event{UserID: 20, Kind: EventConfirm})
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.False(t, resp.Terminal)
	assert.NotEmpty(t, resp.Choices, "retry is offered")

	sess, gerr := store.Get(20)
	require.NoError(t, gerr, "session preserved after failed submission")
	assert.Equal(t, StepConfirmation, sess.Step)

	// Retry without re-entering anything.
	backend.createErr = nil
	resp, err = o.HandleEvent(ctx, Event{UserID: 20, Kind: EventConfirm})
	require.NoError(t, err)
	assert.True(t, resp.Terminal)
	_, gerr = store.Get(20)
	assert.ErrorIs(t, gerr, ErrSessionNotFound)
}

func TestOrchestrator_UploadFailureLeavesSessionUnchanged(t *testing.T) {
	backend := defaultBackend()
	o, store := newTestOrchestrator(backend)
	ctx := context.Background()

	_, err := o.StartOrder(ctx, 30)
	require.NoError(t, err)
	for _, ev := range []Event{
		{UserID: 30, Kind: EventChoice, Choice: "svc:1"},
		{UserID: 30, Kind: EventText, Text: "Анна"},
		{UserID: 30, Kind: EventText, Text: "anna@example.com"},
		{UserID: 30, Kind: EventChoice, Choice: ChoiceSkipPhone},
	} {
		_, err := o.HandleEvent(ctx, ev)
		require.NoError(t, err)
	}

	backend.uploadErr = errors.New("connection reset")
	resp, err := o.HandleEvent(ctx, Event{
		UserID: 30,
		Kind:   EventFile,
		File:   &FileRef{Name: "part.stl", Size: 5, Data: []byte("solid")},
	})
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, resp.Text, "Попробуйте")
	assert.Contains(t, resp.Text, "Загрузка файлов", "the file step is prompted again")

	sess, gerr := store.Get(30)
	require.NoError(t, gerr)
	assert.Empty(t, sess.Files)
	assert.Equal(t, StepFileUpload, sess.Step)
}

func TestOrchestrator_RejectedFileNeverUploaded(t *testing.T) {
	backend := defaultBackend()
	o, _ := newTestOrchestrator(backend)
	ctx := context.Background()

	_, err := o.StartOrder(ctx, 31)
	require.NoError(t, err)
	for _, ev := range []Event{
		{UserID: 31, Kind: EventChoice, Choice: "svc:1"},
		{UserID: 31, Kind: EventText, Text: "Анна"},
		{UserID: 31, Kind: EventText, Text: "anna@example.com"},
		{UserID: 31, Kind: EventChoice, Choice: ChoiceSkipPhone},
	} {
		_, err := o.HandleEvent(ctx, ev)
		require.NoError(t, err)
	}

	resp, err := o.HandleEvent(ctx, Event{
		UserID: 31,
		Kind:   EventFile,
		File:   &FileRef{Name: "model.dwg", Size: 5, Data: []byte("acad!")},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, backend.uploads, "invalid files are rejected before any upload")
	assert.Contains(t, resp.Text, "формат")
	assert.Contains(t, resp.Text, "Загрузка файлов", "rejection re-renders the file step")
	assert.NotEmpty(t, resp.Choices)
}

func TestOrchestrator_CancelDeletesSession(t *testing.T) {
	o, store := newTestOrchestrator(defaultBackend())
	ctx := context.Background()

	driveToConfirmation(t, o, 40)

	resp, err := o.HandleEvent(ctx, Event{UserID: 40, Kind: EventCancel})
	require.NoError(t, err)
	assert.True(t, resp.Terminal)

	_, gerr := store.Get(40)
	assert.ErrorIs(t, gerr, ErrSessionNotFound)
}

func TestOrchestrator_UnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(defaultBackend())

	resp, err := o.HandleEvent(context.Background(), Event{UserID: 999, Kind: EventText, Text: "привет"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, resp.Text, "/order", "the user is pointed at restarting the flow")
}

func TestOrchestrator_ValidationErrorRepromptsSameStep(t *testing.T) {
	o, store := newTestOrchestrator(defaultBackend())
	ctx := context.Background()

	_, err := o.StartOrder(ctx, 50)
	require.NoError(t, err)
	_, err = o.HandleEvent(ctx, Event{UserID: 50, Kind: EventChoice, Choice: "svc:1"})
	require.NoError(t, err)

	resp, err := o.HandleEvent(ctx, Event{UserID: 50, Kind: EventText, Text: "J"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, resp.Text, "Имя")
	assert.Contains(t, resp.Text, "имя", "the same step is prompted again")

	sess, gerr := store.Get(50)
	require.NoError(t, gerr)
	assert.Equal(t, StepContactInfo, sess.Step)
}

func TestOrchestrator_StartResumesUnfinishedOrder(t *testing.T) {
	o, _ := newTestOrchestrator(defaultBackend())
	ctx := context.Background()

	_, err := o.StartOrder(ctx, 60)
	require.NoError(t, err)
	_, err = o.HandleEvent(ctx, Event{UserID: 60, Kind: EventChoice, Choice: "svc:1"})
	require.NoError(t, err)

	resp, err := o.StartOrder(ctx, 60)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "незавершённый")
	assert.Contains(t, resp.Text, "имя", "resumed at the contact step, not reset")
}

func TestOrchestrator_ServicesUnavailable(t *testing.T) {
	backend := defaultBackend()
	backend.listErr = errors.New("503")
	o, _ := newTestOrchestrator(backend)

	resp, err := o.StartOrder(context.Background(), 70)
	require.Error(t, err)
	assert.Contains(t, resp.Text, "недоступны")
}

func TestOrchestrator_ConcurrentUsersIsolated(t *testing.T) {
	o, store := newTestOrchestrator(defaultBackend())

	var wg sync.WaitGroup
	for u := int64(100); u < 108; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			driveToConfirmation(t, o, userID)
		}(u)
	}
	wg.Wait()

	for u := int64(100); u < 108; u++ {
		sess, err := store.Get(u)
		require.NoError(t, err)
		assert.Equal(t, StepConfirmation, sess.Step)
		assert.Equal(t, u, sess.UserID)
		assert.Len(t, sess.Files, 1)
	}
}
