package mexc

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrUnsupportedSide      = stderrors.New("mexc: CLOSE side needs an explicit direction (use BUY/SELL with reduce-only)")
	ErrUnsupportedOrderType = stderrors.New("mexc: unsupported order type")
	ErrModifyNotSupported   = stderrors.New("mexc: only limit orders can be modified")
	ErrMissingPrice         = stderrors.New("mexc: price required")
	ErrEmptyOrderID         = stderrors.New("mexc: empty order id in response")
)

// APIError 交易所返回 success=false 或 HTTP 非 2xx
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mexc api error: http=%d code=%d msg=%s", e.HTTPStatus, e.Code, e.Message)
}

// IsOrderNotFound 订单不存在/已完成（撤单时常见）
func IsOrderNotFound(err error) bool {
	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		return false
	}
	// 2040: 订单不存在；2041: 订单状态不可撤
	return apiErr.Code == 2040 || apiErr.Code == 2041
}
