package model

import "gorm.io/datatypes"

// Payment 一次结算请求，OrderID 作为支付网关的订单号
// swagger:model Payment
type Payment struct {
	UUIDBase
	EnrollmentID      string `gorm:"type:varchar(36);not null;index" json:"enrollmentId"`
	UserID            string `gorm:"type:varchar(36);not null;index" json:"userId"`
	CourseID          string `gorm:"type:varchar(36);not null;index" json:"courseId"`
	OrderID           string `gorm:"size:64;not null;uniqueIndex" json:"orderId"`
	GrossAmount       int64  `gorm:"not null" json:"grossAmount"`
	Token             string `gorm:"size:255" json:"token"`
	RedirectURL       string `gorm:"size:500" json:"redirectUrl"`
	TransactionID     string `gorm:"size:100" json:"transactionId"`
	TransactionStatus string `gorm:"size:30" json:"transactionStatus"`
	PaymentType       string `gorm:"size:50" json:"paymentType"`
}

func (Payment) TableName() string {
	return "payments"
}

const (
	PaymentEventReceived  = "received"
	PaymentEventProcessed = "processed"
	PaymentEventIgnored   = "ignored"
	PaymentEventFailed    = "failed"
)

// PaymentEvent 支付网关回调原始记录
type PaymentEvent struct {
	UUIDBase
	OrderID           string         `gorm:"size:64;index" json:"orderId"`
	TransactionStatus string         `gorm:"size:30" json:"transactionStatus"`
	Payload           datatypes.JSON `json:"payload"`
	Status            string         `gorm:"size:20" json:"status"`
	Error             string         `gorm:"type:text" json:"error,omitempty"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
