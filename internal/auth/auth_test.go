package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"campusattend/internal/apperr"
)

func TestVerifyCredentialsPlain(t *testing.T) {
	table := map[string]string{"admin": "admin123", "superadmin": "super123"}

	role, err := VerifyCredentials(table, "admin", "admin123")
	if err != nil || role != "admin" {
		t.Errorf("admin login = %q, %v", role, err)
	}
	role, err = VerifyCredentials(table, "superadmin", "super123")
	if err != nil || role != "superadmin" {
		t.Errorf("superadmin login = %q, %v", role, err)
	}

	if _, err := VerifyCredentials(table, "admin", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := VerifyCredentials(table, "ghost", "admin123"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
	if _, err := VerifyCredentials(table, "", ""); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("empty input err = %v, want Validation", err)
	}
}

func TestVerifyCredentialsBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	table := map[string]string{"ops": string(hash)}

	if role, err := VerifyCredentials(table, "ops", "hunter2"); err != nil || role != "admin" {
		t.Errorf("bcrypt login = %q, %v", role, err)
	}
	if _, err := VerifyCredentials(table, "ops", "hunter3"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("bcrypt mismatch err = %v", err)
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	sess, err := Issue("admin", "admin", "campusattend", "test-key", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(sess.Token, "test-key", "campusattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := Parse(sess.Token, "other-key", "campusattend"); err == nil {
		t.Error("wrong key accepted")
	}
	if _, err := Parse(sess.Token, "test-key", "someone-else"); err == nil {
		t.Error("wrong issuer accepted")
	}

	expired, err := Issue("admin", "admin", "campusattend", "test-key", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(expired.Token, "test-key", "campusattend"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", AdminAuth("test-key", "campusattend"), func(c *gin.Context) {
		claims := c.MustGet(ClaimsKey).(Claims)
		c.JSON(http.StatusOK, gin.H{"user": claims.Subject})
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	admin, _ := Issue("admin", "admin", "campusattend", "test-key", time.Hour)
	student, _ := Issue("S1", "student", "campusattend", "test-key", time.Hour)

	if code := do("Bearer " + admin.Token); code != http.StatusOK {
		t.Errorf("admin token status = %d", code)
	}
	if code := do("Bearer " + student.Token); code != http.StatusForbidden {
		t.Errorf("non-admin role status = %d, want 403", code)
	}
	if code := do(""); code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want 401", code)
	}
	if code := do("Bearer garbage"); code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", code)
	}
}
