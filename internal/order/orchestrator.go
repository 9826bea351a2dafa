package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"printbot/pkg/api"
)

// Backend is the narrow contract to the order platform. Implemented by
// *api.Client; faked in tests.
type Backend interface {
	ListServices(ctx context.Context) ([]api.Service, error)
	UploadFile(ctx context.Context, data []byte, filename string) (api.UploadResult, error)
	CreateOrder(ctx context.Context, req api.OrderRequest) (api.OrderCreated, error)
}

// Notifier is told about successfully created orders. Optional.
type Notifier interface {
	OrderCreated(ctx context.Context, userID, orderID int64, summary string)
}

// Orchestrator is the façade the transport layer calls. It owns session
// lookup, delegates transitions to the machine and performs the collaborator
// calls that must not run under the session lock (file upload, submission).
type Orchestrator struct {
	store    *Store
	machine  *Machine
	backend  Backend
	notifier Notifier
	logger   *zap.Logger
}

func NewOrchestrator(store *Store, machine *Machine, backend Backend, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		machine: machine,
		backend: backend,
		logger:  logger,
	}
}

// SetNotifier wires the admin notification hook. Must be called before Start.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// StartOrder begins or resumes the order flow for the user. An existing
// unexpired session is resumed at its current step rather than reset.
func (o *Orchestrator) StartOrder(ctx context.Context, userID int64) (Response, error) {
	sess := o.store.GetOrCreate(userID)
	ev := Event{UserID: userID, Kind: EventChoice, Choice: ChoiceStartOrder}

	env, err := o.resolveEnv(ctx, sess, ev)
	if err != nil {
		return servicesUnavailable(), err
	}

	if sess.Step != StepStart {
		resp := o.machine.Prompt(&sess, env)
		resp.Text = "🔄 У вас есть незавершённый заказ, продолжаем с того же места.\n\n" + resp.Text
		return resp, nil
	}

	var resp Response
	uerr := o.store.Update(userID, func(s *Session) error {
		var terr error
		resp, terr = o.machine.Transition(s, ev, env)
		return terr
	})
	if uerr != nil {
		return o.errorResponse(ctx, userID, ev, uerr)
	}
	return resp, nil
}

// HandleEvent processes one user event and returns the response to render.
// Errors are returned alongside a renderable response; none of them are fatal.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev Event) (Response, error) {
	if ev.Kind == EventCancel {
		o.store.Delete(ev.UserID)
		return Response{
			Text:     "❌ Заказ отменён. Используйте /order, чтобы начать заново.",
			Terminal: true,
		}, nil
	}

	sess, err := o.store.Get(ev.UserID)
	if err != nil {
		return Response{
			Text: "⚠️ Сессия не найдена или истекла.\nИспользуйте /order, чтобы начать оформление заново.",
		}, err
	}

	if ev.Kind == EventFile && sess.Step == StepFileUpload {
		if ferr := o.uploadFile(ctx, &ev); ferr != nil {
			var verr *ValidationError
			if errors.As(ferr, &verr) {
				return o.errorResponse(ctx, ev.UserID, ev, ferr)
			}
			resp := o.machine.Prompt(&sess, Env{})
			resp.Text = "⚠️ Не удалось загрузить файл. Попробуйте ещё раз.\n\n" + resp.Text
			return resp, ferr
		}
	}

	env, err := o.resolveEnv(ctx, sess, ev)
	if err != nil {
		return servicesUnavailable(), err
	}

	if ev.Kind == EventConfirm && sess.Step == StepConfirmation {
		return o.submit(ctx, ev.UserID)
	}

	var resp Response
	uerr := o.store.Update(ev.UserID, func(s *Session) error {
		var terr error
		resp, terr = o.machine.Transition(s, ev, env)
		return terr
	})
	if uerr != nil {
		return o.errorResponse(ctx, ev.UserID, ev, uerr)
	}
	return resp, nil
}

// uploadFile validates the metadata and pushes the bytes to the backend before
// the session lock is taken. On success the event's file carries the remote
// token and the transition only appends the reference.
func (o *Orchestrator) uploadFile(ctx context.Context, ev *Event) error {
	if ev.File == nil {
		return &ValidationError{Field: "file", Reason: ReasonFormat}
	}
	if err := ValidateFileMeta(ev.File.Name, ev.File.Size); err != nil {
		return err
	}

	result, err := o.backend.UploadFile(ctx, ev.File.Data, ev.File.Name)
	if err != nil {
		o.logger.Error("file upload failed",
			zap.Int64("user_id", ev.UserID),
			zap.String("filename", ev.File.Name),
			zap.Error(err))
		return &UploadError{Err: err}
	}
	ev.File.Token = result.Token
	if result.SizeBytes > 0 {
		ev.File.Size = result.SizeBytes
	}
	ev.File.Data = nil
	return nil
}

// submit builds the payload under the lock, calls the backend without it, and
// removes the session only after the backend accepted the order.
func (o *Orchestrator) submit(ctx context.Context, userID int64) (Response, error) {
	var req api.OrderRequest
	var summary string
	err := o.store.Update(userID, func(s *Session) error {
		var perr error
		req, perr = o.machine.PrepareSubmit(s)
		summary = s.Summary()
		return perr
	})
	if err != nil {
		return o.errorResponse(ctx, userID, Event{UserID: userID, Kind: EventConfirm}, err)
	}

	created, err := o.backend.CreateOrder(ctx, req)
	if err != nil {
		o.logger.Error("order submission failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		serr := &SubmissionError{Err: err}
		return Response{
			Text: "⚠️ Не удалось создать заказ. Сервер временно недоступен.\n" +
				"Нажмите «Подтвердить заказ» ещё раз через пару минут — данные сохранены.",
			Choices: []Choice{
				{ID: ChoiceConfirm, Label: "🔄 Попробовать снова"},
				cancelChoice,
			},
		}, serr
	}

	o.store.Delete(userID)
	o.logger.Info("order created",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", created.ID))

	if o.notifier != nil {
		o.notifier.OrderCreated(ctx, userID, created.ID, summary)
	}

	return Response{
		Text: fmt.Sprintf(
			"🎉 Заказ успешно создан!\n\n📋 Номер заказа: #%d\n\n"+
				"Мы обработаем ваш заказ в течение 24 часов и свяжемся с вами.",
			created.ID),
		Terminal: true,
	}, nil
}

// resolveEnv fetches the service catalog when the upcoming transition needs
// it. Runs outside the session lock.
func (o *Orchestrator) resolveEnv(ctx context.Context, sess Session, ev Event) (Env, error) {
	if !o.machine.NeedsServices(sess, ev) {
		return Env{}, nil
	}
	services, err := o.backend.ListServices(ctx)
	if err != nil {
		o.logger.Error("list services failed",
			zap.Int64("user_id", sess.UserID),
			zap.Error(err))
		return Env{}, fmt.Errorf("list services: %w", err)
	}
	return Env{Services: services}, nil
}

// errorResponse translates a transition error into the re-prompt for the
// user's current position.
func (o *Orchestrator) errorResponse(ctx context.Context, userID int64, ev Event, err error) (Response, error) {
	if errors.Is(err, ErrSessionNotFound) {
		return Response{
			Text: "⚠️ Сессия не найдена или истекла.\nИспользуйте /order, чтобы начать оформление заново.",
		}, err
	}

	sess, gerr := o.store.Get(userID)
	if gerr != nil {
		return Response{
			Text: "⚠️ Сессия не найдена или истекла.\nИспользуйте /order, чтобы начать оформление заново.",
		}, err
	}
	env, _ := o.resolveEnv(ctx, sess, Event{UserID: userID, Kind: EventBack})
	resp := o.machine.Prompt(&sess, env)

	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Text = "❌ " + validationMessage(verr) + "\n\n" + resp.Text
		return resp, err
	}
	resp.Text = "⚠️ Сейчас это действие недоступно.\n\n" + resp.Text
	return resp, err
}

func servicesUnavailable() Response {
	return Response{Text: "❌ В данный момент услуги недоступны.\nПопробуйте позже или обратитесь к администратору."}
}
