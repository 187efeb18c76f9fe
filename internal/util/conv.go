package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParsePagination 读取 page/limit 参数，非法值回落到默认值
func ParsePagination(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func Offset(page, limit int) int {
	return (page - 1) * limit
}
