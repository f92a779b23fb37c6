package controllers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// The profile update payload distinguishes "field absent" from "field set to
// empty" through pointer presence.
func TestProfileUpdateRequestPresence(t *testing.T) {
	var req profileUpdateRequest
	if err := json.Unmarshal([]byte(`{"bio":""}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Bio == nil {
		t.Error("bio provided as empty string should be present")
	}
	if req.Bio != nil && *req.Bio != "" {
		t.Errorf("bio = %q, want empty", *req.Bio)
	}
	if req.Username != nil {
		t.Error("username absent from payload should be nil")
	}
	if req.Avatar != nil {
		t.Error("avatar absent from payload should be nil")
	}
	if req.Password != nil {
		t.Error("password absent from payload should be nil")
	}
}

func TestGetUserIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		raw    string
		wantID uint
		wantOK bool
	}{
		{"7", 7, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ctx.Params = gin.Params{{Key: "id", Value: tc.raw}}
		id, ok := getUserIDParam(ctx, "id")
		if id != tc.wantID || ok != tc.wantOK {
			t.Errorf("getUserIDParam(%q) = (%d, %v), want (%d, %v)", tc.raw, id, ok, tc.wantID, tc.wantOK)
		}
	}
}
