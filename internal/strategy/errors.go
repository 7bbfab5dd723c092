package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter 参数缺失、为零或为负（configure 阶段同步返回）
	ErrInvalidParameter = errors.New("invalid strategy parameter")
	// ErrNotConfigured 策略从未配置过
	ErrNotConfigured = errors.New("strategy not configured")
)

func invalidParam(kind Kind, field string, value any) error {
	return fmt.Errorf("%w: %s.%s=%v", ErrInvalidParameter, kind, field, value)
}
