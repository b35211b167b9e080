package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyLabel   = errors.New("label cannot be empty")
	ErrInvalidType  = errors.New("column type cannot be empty")
	ErrSizeMismatch = errors.New("label count does not match type count")
)

// ValidationError：构造期的行/列级校验失败；Col 为 -1 表示整行长度错误
type ValidationError struct {
	Row int
	Col int
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Col < 0 {
		return fmt.Sprintf("invalid row %d: %s", e.Row, e.Msg)
	}
	return fmt.Sprintf("invalid value at row %d, col %d: %s", e.Row, e.Col, e.Msg)
}

// IsValidation：判断错误链上是否为构造校验失败
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
