package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type probeBody struct {
	UserID int64  `json:"user_id" binding:"required,min=1"`
	Reason string `json:"reason" binding:"omitempty,oneof=manual timeout"`
}

type probeQuery struct {
	AssignmentID int64 `form:"assignmentId" binding:"required,min=1"`
}

func TestBindReportsWireNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"bored"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	fields := Bind(c, &probeBody{})
	if fields["user_id"] == "" || fields["reason"] == "" {
		t.Fatalf("fields = %v, want user_id and reason", fields)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?assignmentId=0", nil)
	if fields := BindQuery(c, &probeQuery{}); fields["assignmentId"] == "" {
		t.Fatalf("query fields = %v, want assignmentId", fields)
	}
}

func TestBindAcceptsValidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":4,"reason":"timeout"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var body probeBody
	if fields := Bind(c, &body); fields != nil {
		t.Fatalf("fields = %v", fields)
	}
	if body.UserID != 4 {
		t.Fatalf("body = %+v", body)
	}
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	if fields["detail"] != "unexpected EOF" {
		t.Fatalf("fields = %v", fields)
	}
}
