package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidBet)
	suite.NotNil(err)
	suite.Equal(ErrInvalidBet, err.Code)
	suite.Equal("无效的投注金额", err.Message)
	suite.Empty(err.Details)

	err = New(ErrInsufficientFunds, "余额 50", "投注 100")
	suite.Equal("余额 50; 投注 100", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidBet, "最小投注 %d", 100)
	suite.Equal("最小投注 100", err.Details)
}

func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("database is locked")
	wrappedErr := Wrap(originalErr, ErrStoreUnavailable)
	suite.Equal(ErrStoreUnavailable, wrappedErr.Code)
	suite.Equal("database is locked", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 已有的AppError保留原始错误码
	appErr := New(ErrPromoNotFound, "FOO")
	wrappedAppErr := Wrap(appErr, ErrStoreUnavailable, "兑换")
	suite.Equal(ErrPromoNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "兑换")
}

func (suite *ErrorsTestSuite) TestIsThroughFmtWrapping() {
	appErr := New(ErrInsufficientFunds)
	wrapped := fmt.Errorf("下注失败: %w", appErr)

	suite.True(Is(wrapped, ErrInsufficientFunds))
	suite.False(Is(wrapped, ErrInvalidBet))
	suite.Equal(ErrInsufficientFunds, GetCode(wrapped))
	suite.False(Is(nil, ErrInsufficientFunds))
	suite.False(Is(errors.New("plain"), ErrUnknown))
	suite.Equal(ErrUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "user 123"
	suite.Equal("[1002] 资源未找到: user 123", err.Error())
}

func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("disk I/O error")
	err := New(ErrStoreUnavailable).WithCause(cause)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("disk I/O error", err.Details)

	err2 := New(ErrStoreUnavailable, "写入失败").WithCause(cause)
	suite.Equal("写入失败", err2.Details)
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidBet, 400},
		{ErrAccountNotFound, 404},
		{ErrPromoNotFound, 404},
		{ErrInsufficientFunds, 409},
		{ErrInvalidStateTransition, 409},
		{ErrPromoAlreadyRedeemed, 409},
		{ErrPromoExhausted, 409},
		{ErrAuthentication, 401},
		{ErrRateLimitExceeded, 429},
		{ErrStoreUnavailable, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		suite.Equal(tc.expected, New(tc.code).HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	suite.True(IsRetryable(New(ErrStoreUnavailable)))
	suite.True(IsRetryable(fmt.Errorf("x: %w", New(ErrTransaction))))
	suite.False(IsRetryable(New(ErrInsufficientFunds)))
	suite.False(IsRetryable(New(ErrPromoExhausted)))
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestIsUserFacing() {
	suite.True(IsUserFacing(New(ErrInvalidBet)))
	suite.True(IsUserFacing(New(ErrPromoAlreadyRedeemed)))
	suite.True(IsUserFacing(New(ErrRateLimitExceeded)))
	suite.False(IsUserFacing(New(ErrStoreUnavailable)))
	suite.False(IsUserFacing(errors.New("boom")))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.Greater(len(err.Stack), 0)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrPromoNotFound, "NOPE")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func (suite *ErrorsTestSuite) TestCasinoMessages() {
	messages := map[ErrorCode]string{
		ErrInsufficientFunds:      "余额不足",
		ErrInvalidStateTransition: "无效的状态转换",
		ErrBonusAlreadyClaimed:    "今日奖励已领取",
		ErrPromoNotFound:          "促销码不存在",
		ErrPromoAlreadyRedeemed:   "促销码已使用",
		ErrPromoExhausted:         "促销码已用完",
		ErrStoreUnavailable:       "存储不可用",
	}

	for code, expectedMsg := range messages {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
