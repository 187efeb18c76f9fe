package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentNotification Midtrans HTTP 通知
type PaymentNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

// CheckoutResult 免费课程直接生效，无 Payment
type CheckoutResult struct {
	Enrollment  *model.Enrollment `json:"enrollment"`
	Payment     *model.Payment    `json:"payment,omitempty"`
	Token       string            `json:"token,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	ClientKey   string            `json:"clientKey,omitempty"`
}

type NotificationResult struct {
	Status           string                 `json:"status"`
	OrderID          string                 `json:"orderId"`
	EnrollmentID     string                 `json:"enrollmentId,omitempty"`
	EnrollmentStatus model.EnrollmentStatus `json:"enrollmentStatus,omitempty"`
	Changed          bool                   `json:"changed"`
}

type CheckoutService struct {
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	EnrollmentRepo *repository.EnrollmentRepository
	PaymentRepo    *repository.PaymentRepository
	Gateway        PaymentGateway
	Cfg            *config.PaymentConfig
	Now            func() time.Time
}

func NewCheckoutService(
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	paymentRepo *repository.PaymentRepository,
	gateway PaymentGateway,
	cfg *config.PaymentConfig,
) *CheckoutService {
	return &CheckoutService{
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		EnrollmentRepo: enrollmentRepo,
		PaymentRepo:    paymentRepo,
		Gateway:        gateway,
		Cfg:            cfg,
		Now:            time.Now,
	}
}

// StartCheckout 创建或复用 Pending 报名并向支付网关下单；免费课程直接激活
func (s *CheckoutService) StartCheckout(ctx context.Context, viewer Viewer, courseID string) (result *CheckoutResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "checkout.start",
		attribute.String("learner.id", viewer.UserID),
		attribute.String("course.id", courseID))
	defer func() { tracing.EndSpan(span, err) }()

	if viewer.Anonymous() {
		return nil, util.ErrUnauthorized
	}
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	if course.Status != model.CoursePublished {
		return nil, util.ErrCourseNotPublished
	}

	enrollment, err := s.pendingEnrollment(ctx, viewer.UserID, courseID)
	if err != nil {
		return nil, err
	}

	if course.IsFree() {
		if err := s.activate(ctx, enrollment, 0); err != nil {
			return nil, err
		}
		return &CheckoutResult{Enrollment: enrollment}, nil
	}

	user, err := s.UserRepo.FindByID(ctx, viewer.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	payment := &model.Payment{
		EnrollmentID:      enrollment.ID,
		UserID:            viewer.UserID,
		CourseID:          courseID,
		OrderID:           util.GenerateOrderID(s.Now()),
		GrossAmount:       course.Price,
		TransactionStatus: "created",
	}
	if err := s.PaymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	charge, err := s.Gateway.CreateTransaction(ctx, ChargeRequest{
		OrderID:       payment.OrderID,
		GrossAmount:   payment.GrossAmount,
		ItemID:        course.ID,
		ItemName:      course.Title,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
	})
	if err != nil {
		payment.TransactionStatus = "failure"
		if saveErr := s.PaymentRepo.Save(ctx, payment); saveErr != nil {
			logger.Log.Warn("Save failed payment", zap.String("orderId", payment.OrderID), zap.Error(saveErr))
		}
		return nil, fmt.Errorf("create gateway transaction: %w", err)
	}

	payment.Token = charge.Token
	payment.RedirectURL = charge.RedirectURL
	if err := s.PaymentRepo.Save(ctx, payment); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	logger.Log.Info("Checkout started",
		zap.String("learnerId", viewer.UserID),
		zap.String("courseId", courseID),
		zap.String("orderId", payment.OrderID))

	return &CheckoutResult{
		Enrollment:  enrollment,
		Payment:     payment,
		Token:       charge.Token,
		RedirectURL: charge.RedirectURL,
		ClientKey:   s.Cfg.ClientKey,
	}, nil
}

// pendingEnrollment 返回处于 Pending 的报名：新建、复用 Pending，或将 Cancelled 重新置为 Pending
func (s *CheckoutService) pendingEnrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e := &model.Enrollment{UserID: userID, CourseID: courseID, Status: model.EnrollmentPending}
			err := s.EnrollmentRepo.Create(ctx, e)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("create enrollment: %w", err)
			}
			monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentPending)).Inc()
			return e, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find enrollment: %w", err)
		}

		switch {
		case existing.Status.GrantsAccess():
			return nil, util.ErrAlreadyEnrolled
		case existing.Status == model.EnrollmentPending:
			return existing, nil
		case existing.Status.CanTransitionTo(model.EnrollmentPending):
			n, err := s.EnrollmentRepo.TransitionStatus(ctx, existing.ID,
				[]model.EnrollmentStatus{existing.Status}, model.EnrollmentPending, nil)
			if err != nil {
				return nil, fmt.Errorf("reopen enrollment: %w", err)
			}
			if n == 0 {
				continue
			}
			existing.Status = model.EnrollmentPending
			monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentPending)).Inc()
			return existing, nil
		default:
			return nil, util.ErrInvalidStatusTransition
		}
	}
	return nil, util.ErrInvalidStatusTransition
}

// activate Pending -> Active，Cancelled 先经 Pending 再激活
func (s *CheckoutService) activate(ctx context.Context, e *model.Enrollment, amount int64) error {
	now := s.Now()
	if e.Status == model.EnrollmentCancelled {
		n, err := s.EnrollmentRepo.TransitionStatus(ctx, e.ID,
			[]model.EnrollmentStatus{model.EnrollmentCancelled}, model.EnrollmentPending, nil)
		if err != nil {
			return fmt.Errorf("reopen enrollment: %w", err)
		}
		if n > 0 {
			e.Status = model.EnrollmentPending
		}
	}

	n, err := s.EnrollmentRepo.TransitionStatus(ctx, e.ID,
		[]model.EnrollmentStatus{model.EnrollmentPending}, model.EnrollmentActive,
		map[string]interface{}{"amount_paid": amount, "activated_at": now})
	if err != nil {
		return fmt.Errorf("activate enrollment: %w", err)
	}
	if n > 0 {
		e.Status = model.EnrollmentActive
		e.AmountPaid = amount
		e.ActivatedAt = &now
		monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentActive)).Inc()
	}
	return nil
}

// targetStatus 网关交易状态映射到报名状态；返回空表示不变更
func targetStatus(n PaymentNotification) (model.EnrollmentStatus, []model.EnrollmentStatus) {
	switch n.TransactionStatus {
	case "capture":
		switch n.FraudStatus {
		case "", "accept":
			return model.EnrollmentActive, []model.EnrollmentStatus{model.EnrollmentPending, model.EnrollmentCancelled}
		case "deny":
			return model.EnrollmentCancelled, []model.EnrollmentStatus{model.EnrollmentPending}
		}
	case "settlement":
		return model.EnrollmentActive, []model.EnrollmentStatus{model.EnrollmentPending, model.EnrollmentCancelled}
	case "deny", "cancel", "expire", "failure":
		return model.EnrollmentCancelled, []model.EnrollmentStatus{model.EnrollmentPending}
	case "refund", "partial_refund":
		return model.EnrollmentRefunded, []model.EnrollmentStatus{model.EnrollmentActive}
	}
	return "", nil
}

// HandleNotification 处理支付回调；重复回调不会让状态回退
func (s *CheckoutService) HandleNotification(ctx context.Context, n PaymentNotification, raw []byte) (result *NotificationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "checkout.notification",
		attribute.String("order.id", n.OrderID),
		attribute.String("transaction.status", n.TransactionStatus))
	defer func() { tracing.EndSpan(span, err) }()

	if !VerifyNotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, s.Cfg.ServerKey, n.SignatureKey) {
		return nil, util.ErrInvalidSignature
	}

	event := &model.PaymentEvent{
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		Payload:           datatypes.JSON(raw),
		Status:            model.PaymentEventReceived,
	}
	if err := s.PaymentRepo.CreateEvent(ctx, event); err != nil {
		logger.Log.Warn("Record payment event failed", zap.String("orderId", n.OrderID), zap.Error(err))
		event = nil
	}
	finish := func(status, msg string) {
		if event == nil {
			return
		}
		if err := s.PaymentRepo.UpdateEventStatus(ctx, event.ID, status, msg); err != nil {
			logger.Log.Warn("Update payment event failed", zap.String("eventId", event.ID), zap.Error(err))
		}
	}

	payment, err := s.PaymentRepo.FindByOrderID(ctx, n.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 返回成功避免网关反复重试
		finish(model.PaymentEventIgnored, "payment not found")
		return &NotificationResult{Status: model.PaymentEventIgnored, OrderID: n.OrderID}, nil
	}
	if err != nil {
		finish(model.PaymentEventFailed, err.Error())
		return nil, fmt.Errorf("find payment: %w", err)
	}

	payment.TransactionStatus = n.TransactionStatus
	if n.TransactionID != "" {
		payment.TransactionID = n.TransactionID
	}
	if n.PaymentType != "" {
		payment.PaymentType = n.PaymentType
	}
	if err := s.PaymentRepo.Save(ctx, payment); err != nil {
		finish(model.PaymentEventFailed, err.Error())
		return nil, fmt.Errorf("save payment: %w", err)
	}

	enrollment, err := s.EnrollmentRepo.FindByID(ctx, payment.EnrollmentID)
	if err != nil {
		finish(model.PaymentEventFailed, err.Error())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	result = &NotificationResult{
		Status:           model.PaymentEventProcessed,
		OrderID:          n.OrderID,
		EnrollmentID:     enrollment.ID,
		EnrollmentStatus: enrollment.Status,
	}

	target, from := targetStatus(n)
	if target == "" || !containsStatus(from, enrollment.Status) {
		finish(model.PaymentEventProcessed, "")
		return result, nil
	}

	if target == model.EnrollmentActive {
		err = s.activate(ctx, enrollment, payment.GrossAmount)
	} else {
		var changed int64
		changed, err = s.EnrollmentRepo.TransitionStatus(ctx, enrollment.ID, from, target, nil)
		if changed > 0 {
			enrollment.Status = target
			monitoring.EnrollmentStatusChanges.WithLabelValues(string(target)).Inc()
		}
	}
	if err != nil {
		finish(model.PaymentEventFailed, err.Error())
		return nil, err
	}

	result.Changed = enrollment.Status != result.EnrollmentStatus
	result.EnrollmentStatus = enrollment.Status
	finish(model.PaymentEventProcessed, "")

	logger.Log.Info("Payment notification processed",
		zap.String("orderId", n.OrderID),
		zap.String("transactionStatus", n.TransactionStatus),
		zap.String("enrollmentStatus", string(enrollment.Status)))
	return result, nil
}

// CancelStalePending 取消超时未支付的报名
func (s *CheckoutService) CancelStalePending(ctx context.Context) (int64, error) {
	ttl := s.Cfg.PendingTTL()
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.EnrollmentRepo.CancelStalePending(ctx, s.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentCancelled)).Add(float64(n))
		logger.Log.Info("Cancelled stale pending enrollments", zap.Int64("count", n))
	}
	return n, nil
}

func containsStatus(list []model.EnrollmentStatus, s model.EnrollmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
