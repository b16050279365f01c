//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultUser    = "kavi"
	defaultPass    = "kavi123"
)

var (
	baseURL  string
	dbURL    string
	username string
	password string
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = envOr("BASE_URL", defaultBaseURL)
	dbURL = os.Getenv("DATABASE_URL")
	username = envOr("E2E_USERNAME", defaultUser)
	password = envOr("E2E_PASSWORD", defaultPass)

	// With a database the e2e user is seeded so CREDENTIAL_SOURCE=postgres works too.
	if dbURL != "" {
		if err := seedUser(); err != nil {
			fmt.Printf("Setup failed: %v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(m.Run())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func seedUser() error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	_, err = conn.Exec(ctx, `INSERT INTO users (username, password_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`, username, string(hash))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if _, err := conn.Exec(ctx, `DELETE FROM exam_results WHERE username = $1`, username); err != nil {
		return fmt.Errorf("cleanup results: %w", err)
	}
	return nil
}

func TestE2EFlow(t *testing.T) {
	browser := newClient(t)

	t.Run("GatedBeforeLogin", func(t *testing.T) {
		resp := browser.get(t, "/exam", false)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Fatalf("status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("Login", func(t *testing.T) {
		resp := browser.form(t, "/login", url.Values{"username": {username}, "password": {password}})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/instructions" {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("InstructionsModel", func(t *testing.T) {
		resp := browser.get(t, "/instructions", true)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				QuestionCount int `json:"question_count"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.QuestionCount == 0 {
			t.Fatal("question_count missing")
		}
	})

	t.Run("TimerInactive", func(t *testing.T) {
		resp := browser.get(t, "/api/exam/time", true)
		defer resp.Body.Close()
		if got := strings.TrimSpace(readBody(resp)); got != `{"active":false}` {
			t.Fatalf("body %s", got)
		}
	})

	t.Run("FailedCheck", func(t *testing.T) {
		resp := browser.postJSON(t, "/api/checking/submit", map[string]bool{"camera": true})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("PassedCheck", func(t *testing.T) {
		resp := browser.postJSON(t, "/api/checking/submit", map[string]bool{
			"camera": true, "microphone": true, "fullscreen": true, "network": true,
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("TimerActive", func(t *testing.T) {
		resp := browser.get(t, "/api/exam/time", true)
		defer resp.Body.Close()
		var body struct {
			Active           bool `json:"active"`
			RemainingSeconds int  `json:"remaining_seconds"`
		}
		decodeJSON(t, resp, &body)
		if !body.Active || body.RemainingSeconds <= 0 {
			t.Fatalf("timer %+v", body)
		}
	})

	t.Run("Autosave", func(t *testing.T) {
		resp := browser.postJSON(t, "/api/exam/answers", map[string]int{"question_id": 1, "option": 2})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("Submit", func(t *testing.T) {
		resp := browser.form(t, "/submit_exam", url.Values{"q_1": {"2"}, "q_2": {"1"}})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/result" {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("ReplayKeepsResult", func(t *testing.T) {
		resp := browser.form(t, "/submit_exam", url.Values{"q_1": {"0"}})
		resp.Body.Close()
		if resp.Header.Get("Location") != "/result" {
			t.Fatalf("location %q", resp.Header.Get("Location"))
		}

		resp = browser.get(t, "/result", true)
		defer resp.Body.Close()
		var body struct {
			Data struct {
				Result struct {
					Total   int `json:"total"`
					Correct int `json:"correct"`
				} `json:"result"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Result.Total == 0 || body.Data.Result.Correct < 2 {
			t.Fatalf("result %+v", body.Data.Result)
		}
	})

	t.Run("ResultPersisted", func(t *testing.T) {
		if dbURL == "" {
			t.Skip("DATABASE_URL not set")
		}
		waitForResult(t)
	})

	t.Run("Logout", func(t *testing.T) {
		resp := browser.get(t, "/logout", false)
		resp.Body.Close()
		if resp.Header.Get("Location") != "/login" {
			t.Fatalf("location %q", resp.Header.Get("Location"))
		}

		resp = browser.get(t, "/api/exam/time", true)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d after logout", resp.StatusCode)
		}
	})
}

func waitForResult(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer conn.Close(ctx)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var n int
		err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM exam_results WHERE username = $1`, username).Scan(&n)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if n == 1 {
			return
		}
		if n > 1 {
			t.Fatalf("%d result rows, want 1", n)
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatal("result was not persisted")
}

type client struct {
	http *http.Client
}

func newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &client{http: &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *client) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func (c *client) get(t *testing.T, path string, asJSON bool) *http.Response {
	req, _ := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return c.do(t, req)
}

func (c *client) form(t *testing.T, path string, values url.Values) *http.Response {
	req, _ := http.NewRequest(http.MethodPost, baseURL+path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(t, req)
}

func (c *client) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(t, req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}
