package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/wfunc/casino-bot/internal/errors"
)

type abortBody struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Error     struct {
		Code    apperrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
		Details string              `json:"details"`
		Stack   []interface{}       `json:"stack"`
	} `json:"error"`
}

// AbortTestSuite 错误响应测试套件
type AbortTestSuite struct {
	suite.Suite
}

func (suite *AbortTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

// serve 用 Abort 返回指定错误
func (suite *AbortTestSuite) serve(err error) (*httptest.ResponseRecorder, abortBody) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/fail", func(c *gin.Context) { Abort(c, err) })

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var body abortBody
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.False(body.Success)
	suite.Equal("req-1", body.RequestID)
	suite.Empty(body.Error.Stack)
	return w, body
}

func (suite *AbortTestSuite) TestStoreErrorHidesDetails() {
	cause := errors.New("database is locked: INSERT INTO accounts")
	w, body := suite.serve(apperrors.Wrap(cause, apperrors.ErrStoreUnavailable))

	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Equal(apperrors.ErrStoreUnavailable, body.Error.Code)
	suite.Empty(body.Error.Details)
	suite.NotContains(w.Body.String(), "INSERT INTO")
	suite.Equal(RetryAfterSeconds, w.Header().Get("Retry-After"))
}

func (suite *AbortTestSuite) TestNonRetryableServerError() {
	w, body := suite.serve(apperrors.New(apperrors.ErrDataIntegrity, "余额与流水不一致"))

	suite.Equal(http.StatusServiceUnavailable, w.Code)
	suite.Empty(body.Error.Details)
	suite.Empty(w.Header().Get("Retry-After"))
}

func (suite *AbortTestSuite) TestPlainErrorIsUnknown() {
	w, body := suite.serve(errors.New("boom"))

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.Equal(apperrors.ErrUnknown, body.Error.Code)
	suite.NotContains(w.Body.String(), "boom")
}

func (suite *AbortTestSuite) TestClientErrorKeepsDetails() {
	w, body := suite.serve(apperrors.New(apperrors.ErrInvalidBet, "注金必须为正数"))

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal(apperrors.ErrInvalidBet, body.Error.Code)
	suite.Equal("注金必须为正数", body.Error.Details)
	suite.Empty(w.Header().Get("Retry-After"))
}

func TestAbortTestSuite(t *testing.T) {
	suite.Run(t, new(AbortTestSuite))
}
