package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(orderID, status, fraud string) (PaymentNotification, []byte) {
	n := PaymentNotification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: status,
		FraudStatus:       fraud,
		TransactionID:     "tx-" + orderID,
		PaymentType:       "bank_transfer",
	}
	n.SignatureKey = NotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	raw, _ := json.Marshal(n)
	return n, raw
}

func TestStartCheckoutFreeCourseActivatesImmediately(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Free", 0, model.CoursePublished)

	res, err := e.checkout.StartCheckout(ctx, student(u), course.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Payment)
	assert.Equal(t, model.EnrollmentActive, res.Enrollment.Status)
	assert.Empty(t, e.gateway.requests)

	_, err = e.checkout.StartCheckout(ctx, student(u), course.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)
}

func TestStartCheckoutPaidCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Paid", 150000, model.CoursePublished)

	res, err := e.checkout.StartCheckout(ctx, student(u), course.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Equal(t, model.EnrollmentPending, res.Enrollment.Status)
	assert.Equal(t, int64(150000), res.Payment.GrossAmount)
	assert.Equal(t, "snap-token-"+res.Payment.OrderID, res.Token)
	assert.NotEmpty(t, res.RedirectURL)
	require.Len(t, e.gateway.requests, 1)
	assert.Equal(t, u.Email, e.gateway.requests[0].CustomerEmail)

	// 再次下单复用同一个 Pending 报名，生成新订单
	again, err := e.checkout.StartCheckout(ctx, student(u), course.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Enrollment.ID, again.Enrollment.ID)
	assert.NotEqual(t, res.Payment.OrderID, again.Payment.OrderID)
}

func TestStartCheckoutRejectsUnpublished(t *testing.T) {
	e := newEnv(t)
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Draft", 1000, model.CourseDraft)

	_, err := e.checkout.StartCheckout(context.Background(), student(u), course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotPublished)

	_, err = e.checkout.StartCheckout(context.Background(), student(u), "missing")
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestStartCheckoutGatewayFailure(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = errors.New("midtrans unavailable")
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Paid", 1000, model.CoursePublished)

	_, err := e.checkout.StartCheckout(context.Background(), student(u), course.ID)
	assert.Error(t, err)
}

func TestHandleNotificationStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		start  model.EnrollmentStatus
		status string
		fraud  string
		want   model.EnrollmentStatus
	}{
		{"settlement activates", model.EnrollmentPending, "settlement", "", model.EnrollmentActive},
		{"capture accept activates", model.EnrollmentPending, "capture", "accept", model.EnrollmentActive},
		{"capture challenge waits", model.EnrollmentPending, "capture", "challenge", model.EnrollmentPending},
		{"expire cancels", model.EnrollmentPending, "expire", "", model.EnrollmentCancelled},
		{"deny cancels", model.EnrollmentPending, "deny", "", model.EnrollmentCancelled},
		{"pending keeps", model.EnrollmentPending, "pending", "", model.EnrollmentPending},
		{"refund from active", model.EnrollmentActive, "refund", "", model.EnrollmentRefunded},
		{"late settlement after expiry", model.EnrollmentCancelled, "settlement", "", model.EnrollmentActive},
		{"expire never regresses active", model.EnrollmentActive, "expire", "", model.EnrollmentActive},
		{"settlement never regresses completed", model.EnrollmentCompleted, "settlement", "", model.EnrollmentCompleted},
		{"refund ignored for pending", model.EnrollmentPending, "refund", "", model.EnrollmentPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
			course := testutil.CreateCourse(t, e.db, "Paid", 150000, model.CoursePublished)
			enrollment := testutil.CreateEnrollment(t, e.db, u.ID, course.ID, tc.start)
			payment := &model.Payment{
				EnrollmentID: enrollment.ID,
				UserID:       u.ID,
				CourseID:     course.ID,
				OrderID:      util.GenerateOrderID(time.Now()),
				GrossAmount:  150000,
			}
			require.NoError(t, e.payments.Create(ctx, payment))

			n, raw := signed(payment.OrderID, tc.status, tc.fraud)
			res, err := e.checkout.HandleNotification(ctx, n, raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.EnrollmentStatus)
			assert.Equal(t, tc.start != tc.want, res.Changed)

			// 重复回调结果不变
			res, err = e.checkout.HandleNotification(ctx, n, raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.EnrollmentStatus)
			assert.False(t, res.Changed)

			got, err := e.enrolls.FindByID(ctx, enrollment.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status)
			if tc.want == model.EnrollmentActive && tc.start != model.EnrollmentActive {
				assert.Equal(t, int64(150000), got.AmountPaid)
				assert.NotNil(t, got.ActivatedAt)
			}

			saved, err := e.payments.FindByOrderID(ctx, payment.OrderID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, saved.TransactionStatus)
			assert.Equal(t, "tx-"+payment.OrderID, saved.TransactionID)
		})
	}
}

func TestHandleNotificationRejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	n, raw := signed("LMS-unknown", "settlement", "")
	n.SignatureKey = "deadbeef"

	_, err := e.checkout.HandleNotification(context.Background(), n, raw)
	assert.ErrorIs(t, err, util.ErrInvalidSignature)

	var events int64
	require.NoError(t, e.db.Model(&model.PaymentEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestHandleNotificationUnknownOrderIgnored(t *testing.T) {
	e := newEnv(t)
	n, raw := signed("LMS-unknown", "settlement", "")

	res, err := e.checkout.HandleNotification(context.Background(), n, raw)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentEventIgnored, res.Status)

	var ev model.PaymentEvent
	require.NoError(t, e.db.First(&ev).Error)
	assert.Equal(t, model.PaymentEventIgnored, ev.Status)
	assert.Equal(t, "LMS-unknown", ev.OrderID)
}

func TestCheckoutAfterCancellationReopens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Paid", 1000, model.CoursePublished)
	enrollment := testutil.CreateEnrollment(t, e.db, u.ID, course.ID, model.EnrollmentCancelled)

	res, err := e.checkout.StartCheckout(ctx, student(u), course.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.ID, res.Enrollment.ID)
	assert.Equal(t, model.EnrollmentPending, res.Enrollment.Status)
}

func TestCheckoutAfterRefundRejected(t *testing.T) {
	e := newEnv(t)
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Paid", 1000, model.CoursePublished)
	testutil.CreateEnrollment(t, e.db, u.ID, course.ID, model.EnrollmentRefunded)

	_, err := e.checkout.StartCheckout(context.Background(), student(u), course.ID)
	assert.ErrorIs(t, err, util.ErrInvalidStatusTransition)
}

func TestCancelStalePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	paid := testutil.CreateCourse(t, e.db, "Paid", 1000, model.CoursePublished)
	other := testutil.CreateCourse(t, e.db, "Other", 1000, model.CoursePublished)
	stale := testutil.CreateEnrollment(t, e.db, u.ID, paid.ID, model.EnrollmentPending)
	active := testutil.CreateEnrollment(t, e.db, u.ID, other.ID, model.EnrollmentActive)

	n, err := e.checkout.CancelStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.checkout.Now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err = e.checkout.CancelStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := e.enrolls.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, got.Status)
	got, err = e.enrolls.FindByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, got.Status)
}
