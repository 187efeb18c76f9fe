package util

import (
	"strconv"
	"strings"
	"time"
)

const certificatePrefix = "CERT"

// GenerateCertificateNumber 证书编号：前缀 + base36 毫秒时间戳 + 随机后缀
func GenerateCertificateNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return certificatePrefix + "-" + ts + "-" + GenerateRandomString(6)
}

// GenerateOrderID 支付订单号
func GenerateOrderID(now time.Time) string {
	return "LMS-" + now.Format("20060102150405") + "-" + GenerateRandomString(8)
}
