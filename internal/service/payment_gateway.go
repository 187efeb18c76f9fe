package service

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// ChargeRequest 创建支付交易的参数
type ChargeRequest struct {
	OrderID       string
	GrossAmount   int64
	ItemID        string
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

type ChargeResponse struct {
	Token       string
	RedirectURL string
}

// PaymentGateway 第三方支付网关
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// MidtransGateway Midtrans Snap 实现
type MidtransGateway struct {
	client snap.Client
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	g := &MidtransGateway{}
	if production {
		g.client.New(serverKey, midtrans.Production)
	} else {
		g.client.New(serverKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransGateway) CreateTransaction(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ItemID,
				Name:  truncate(req.ItemName, 50),
				Price: req.GrossAmount,
				Qty:   1,
			},
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	}

	resp, midErr := g.client.CreateTransaction(snapReq)
	if midErr != nil {
		return nil, midErr
	}
	return &ChargeResponse{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifyNotificationSignature SHA512(order_id + status_code + gross_amount + server_key)
func VerifyNotificationSignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	return NotificationSignature(orderID, statusCode, grossAmount, serverKey) == strings.ToLower(signature)
}

func NotificationSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
