package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/domain/event"
	"github.com/sanosuguru/go-event-registration/internal/domain/user"
	redislock "github.com/sanosuguru/go-event-registration/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-registration/internal/pkg/tracing"
)

// RegistrationLocker はイベント単位で参加登録を直列化するロック
type RegistrationLocker interface {
	Lock(ctx context.Context, eventID string) (unlock func(context.Context) error, err error)
}

// RegistrationNotifier は登録確定後の通知を行う
type RegistrationNotifier interface {
	NotifyRegistrationConfirmed(ctx context.Context, recipient user.Actor, eventTitle, eventID string) error
}

// RegistrationService は参加登録のトランザクションを実行する
type RegistrationService struct {
	eventRepo    event.Repository
	locker       RegistrationLocker
	notifier     RegistrationNotifier
	availability *AvailabilityService
	clock        clock.Clock
	metrics      *metrics.Metrics
	maxRetries   int
	codeGen      event.CodeGenerator
}

// RegistrationOption は RegistrationService の設定を変更する
type RegistrationOption func(*RegistrationService)

// WithLocker はイベント単位のロックを設定する
func WithLocker(l RegistrationLocker) RegistrationOption {
	return func(s *RegistrationService) { s.locker = l }
}

// WithNotifier は登録確認の通知先を設定する
func WithNotifier(n RegistrationNotifier) RegistrationOption {
	return func(s *RegistrationService) { s.notifier = n }
}

// WithAvailability は登録後に破棄する残数キャッシュを設定する
func WithAvailability(a *AvailabilityService) RegistrationOption {
	return func(s *RegistrationService) { s.availability = a }
}

// WithClock は時刻の取得元を設定する
func WithClock(c clock.Clock) RegistrationOption {
	return func(s *RegistrationService) { s.clock = c }
}

// WithMetrics はメトリクスを設定する
func WithMetrics(m *metrics.Metrics) RegistrationOption {
	return func(s *RegistrationService) { s.metrics = m }
}

// WithMaxRetries は楽観的ロック競合時の試行回数を設定する
func WithMaxRetries(n int) RegistrationOption {
	return func(s *RegistrationService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithCodeGenerator は確認コードの生成方法を設定する
func WithCodeGenerator(gen event.CodeGenerator) RegistrationOption {
	return func(s *RegistrationService) { s.codeGen = gen }
}

// NewRegistrationService は RegistrationService を作成する
func NewRegistrationService(eventRepo event.Repository, opts ...RegistrationOption) *RegistrationService {
	s := &RegistrationService{
		eventRepo:  eventRepo,
		clock:      clock.NewSystem(),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterForEventInput は参加登録の入力
type RegisterForEventInput struct {
	EventID      string
	Attendee     user.Actor
	TicketTypeID string
	AmountPaid   float64
	SessionIDs   []string
	AttendeeInfo map[string]string
}

// RegistrationResult は参加登録の結果
type RegistrationResult struct {
	Event        *event.Event
	Registration event.Registration
}

// RegisterForEvent はイベントに参加登録する。
// 集約の読み込みから条件付き書き込みまでを1回の試行とし、バージョン競合時は読み直して再試行する。
// 書き込み後の通知は失敗しても登録を取り消さない
func (s *RegistrationService) RegisterForEvent(ctx context.Context, in RegisterForEventInput) (*RegistrationResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "RegistrationService.RegisterForEvent",
		trace.WithAttributes(
			attribute.String("event.id", in.EventID),
			attribute.String("ticket_type.id", in.TicketTypeID),
			attribute.String("user.id", in.Attendee.ID),
		),
	)
	defer span.End()

	result, err := s.register(ctx, in)
	s.metrics.ObserveRegistration(registrationStatus(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("registration.id", result.Registration.ID))

	log := logger.Event(in.EventID)
	log.Info("参加登録が完了しました",
		zap.String("registration_id", result.Registration.ID),
		zap.String("user_id", in.Attendee.ID),
		zap.String("ticket_type_id", in.TicketTypeID),
	)

	s.availability.Invalidate(ctx, in.EventID)
	if s.notifier != nil {
		if err := s.notifier.NotifyRegistrationConfirmed(ctx, in.Attendee, result.Event.Title, result.Event.ID); err != nil {
			log.Warn("登録確認通知に失敗しました", zap.String("user_id", in.Attendee.ID), zap.Error(err))
		}
	}
	return result, nil
}

func (s *RegistrationService) register(ctx context.Context, in RegisterForEventInput) (*RegistrationResult, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, in.EventID)
		switch {
		case err == nil:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					logger.Event(in.EventID).Warn("登録ロックの解放に失敗しました", zap.Error(err))
				}
			}()
		case errors.Is(err, redislock.ErrLockNotAcquired):
			return nil, ErrEventBusy
		default:
			// ロック基盤の障害時はバージョン検査のみで整合性を保つ
			logger.Event(in.EventID).Warn("登録ロックを使用せずに続行します", zap.Error(err))
		}
	}

	var result *RegistrationResult
	err := retryOnConflict(ctx, s.maxRetries, s.metrics, func(int) error {
		e, err := s.eventRepo.GetByID(ctx, in.EventID)
		if err != nil {
			return err
		}
		reg, err := e.Register(event.RegisterParams{
			Attendee:     in.Attendee,
			TicketTypeID: in.TicketTypeID,
			AmountPaid:   in.AmountPaid,
			SessionIDs:   in.SessionIDs,
			AttendeeInfo: in.AttendeeInfo,
		}, s.clock.Now(), s.codeGen)
		if err != nil {
			return err
		}
		if err := s.eventRepo.Update(ctx, e); err != nil {
			return err
		}
		result = &RegistrationResult{Event: e, Registration: reg}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func registrationStatus(err error) string {
	switch {
	case err == nil:
		return metrics.RegistrationSuccess
	case errors.Is(err, event.ErrConcurrencyConflict):
		return metrics.RegistrationConflict
	case errors.Is(err, ErrEventBusy):
		return metrics.RegistrationLockFailed
	case errors.Is(err, event.ErrTicketUnavailable):
		return metrics.RegistrationUnavailable
	case errors.Is(err, event.ErrAlreadyRegistered):
		return metrics.RegistrationAlreadyRegistered
	case errors.Is(err, event.ErrEventNotPublished):
		return metrics.RegistrationNotPublished
	default:
		return metrics.RegistrationError
	}
}
