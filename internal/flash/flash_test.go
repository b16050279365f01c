package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFlashSurvivesOneRedirect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewStore("test-flash-secret", false)

	r := gin.New()
	r.GET("/set", func(c *gin.Context) {
		if err := store.Add(c, Error, "bad password"); err != nil {
			t.Errorf("Add: %v", err)
		}
		c.Redirect(http.StatusSeeOther, "/get")
	})
	r.GET("/get", func(c *gin.Context) {
		msgs := store.Pop(c, Error)
		c.JSON(http.StatusOK, gin.H{"count": len(msgs), "messages": msgs})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a flash cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != `{"count":1,"messages":["bad password"]}` {
		t.Fatalf("body = %s", got)
	}

	// The pop rewrote the cookie without the message.
	req = httptest.NewRequest(http.MethodGet, "/get", nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != `{"count":0,"messages":null}` {
		t.Fatalf("second pop body = %s", got)
	}
}

func TestPopWithoutCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewStore("test-flash-secret", false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if msgs := store.Pop(c, Error); msgs != nil {
		t.Fatalf("Pop = %v, want nil", msgs)
	}
}
