//go:build e2e

package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// These tests exercise a running server over HTTP. Start one with a clean
// database, then:
//
//	go test -tags e2e ./routes/...
//
// The target defaults to http://localhost:8080 and can be overridden with
// INKPOST_E2E_BASE_URL.

func baseURL() string {
	if v := os.Getenv("INKPOST_E2E_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, baseURL()+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

type authResult struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func register(t *testing.T, username, email, password string) authResult {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s: status %d (%s)", email, resp.StatusCode, env.Message)
	}
	var out authResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@example.com", prefix, time.Now().UnixNano())
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	email := uniqueEmail("alice")
	reg := register(t, "alice", email, "password1")
	if reg.Token == "" {
		t.Fatal("register returned no token")
	}

	resp, env := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d (%s)", resp.StatusCode, env.Message)
	}
	var login authResult
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.UserID != reg.UserID || login.Email != reg.Email || login.IsAdmin != reg.IsAdmin {
		t.Errorf("login identity %+v does not match registration %+v", login, reg)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	email := uniqueEmail("dup")
	register(t, "first", email, "password1")

	resp, _ := doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "second",
		"email":    email,
		"password": "other-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register: status %d, want 400", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	email := uniqueEmail("bob")
	register(t, "bob", email, "password1")

	resp, env := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password login: status %d, want 401", resp.StatusCode)
	}
	var out authResult
	_ = json.Unmarshal(env.Data, &out)
	if out.Token != "" {
		t.Error("wrong password login returned a token")
	}
}

func createPost(t *testing.T, token, title, category string) uint {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, "/api/v1/posts", token, map[string]interface{}{
		"title":    title,
		"content":  "<p>some content</p>",
		"category": category,
		"tags":     []string{"Go", "go", " Web "},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create post: status %d (%s)", resp.StatusCode, env.Message)
	}
	var out struct {
		Post struct {
			ID uint `json:"id"`
		} `json:"post"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode create post response: %v", err)
	}
	return out.Post.ID
}

func postDetail(t *testing.T, id uint) (likes []uint, comments int) {
	t.Helper()
	resp, env := doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get post: status %d", resp.StatusCode)
	}
	var out struct {
		Post struct {
			Likes         []uint `json:"likes"`
			CommentsCount int    `json:"comments_count"`
		} `json:"post"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode post detail: %v", err)
	}
	return out.Post.Likes, out.Post.CommentsCount
}

func TestLikeToggleRoundTrip(t *testing.T) {
	owner := register(t, "owner", uniqueEmail("owner"), "password1")
	liker := register(t, "liker", uniqueEmail("liker"), "password1")
	postID := createPost(t, owner.Token, "toggle target", "General")

	likePath := fmt.Sprintf("/api/v1/posts/%d/like", postID)

	resp, _ := doJSON(t, http.MethodPost, likePath, liker.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first like: status %d", resp.StatusCode)
	}
	likes, _ := postDetail(t, postID)
	if !containsUint(likes, liker.UserID) {
		t.Fatalf("likes %v missing user %d after first toggle", likes, liker.UserID)
	}

	resp, _ = doJSON(t, http.MethodPost, likePath, liker.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second like: status %d", resp.StatusCode)
	}
	likes, _ = postDetail(t, postID)
	if containsUint(likes, liker.UserID) {
		t.Fatalf("likes %v still contain user %d after second toggle", likes, liker.UserID)
	}
}

func TestOwnerOnlyMutation(t *testing.T) {
	owner := register(t, "ownly", uniqueEmail("ownly"), "password1")
	other := register(t, "intrud", uniqueEmail("intrud"), "password1")
	postID := createPost(t, owner.Token, "private post", "General")

	path := fmt.Sprintf("/api/v1/posts/%d", postID)

	resp, _ := doJSON(t, http.MethodPut, path, other.Token, map[string]interface{}{
		"title":   "hijacked",
		"content": "nope",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-owner update: status %d, want 403", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, path, other.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-owner delete: status %d, want 403", resp.StatusCode)
	}

	// Post unchanged and still present for the owner.
	resp, _ = doJSON(t, http.MethodGet, path, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("post vanished after forbidden mutations: status %d", resp.StatusCode)
	}
}

func TestCategoryDeduplicated(t *testing.T) {
	user := register(t, "catter", uniqueEmail("catter"), "password1")
	category := fmt.Sprintf("Travel%d", time.Now().UnixNano())
	createPost(t, user.Token, "trip one", category)
	createPost(t, user.Token, "trip two", category)

	resp, env := doJSON(t, http.MethodGet, "/api/v1/categories", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list categories: status %d", resp.StatusCode)
	}
	var out struct {
		Items []struct {
			Slug string `json:"slug"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	want := toSlug(category)
	n := 0
	for _, c := range out.Items {
		if c.Slug == want {
			n++
		}
	}
	if n != 1 {
		t.Errorf("category %q appears %d times, want exactly 1", want, n)
	}
}

func TestAccountDeletionCascades(t *testing.T) {
	victim := register(t, "victim", uniqueEmail("victim"), "password1")
	bystander := register(t, "bystander", uniqueEmail("bystander"), "password1")

	victimPost := createPost(t, victim.Token, "will vanish", "General")
	bystanderPost := createPost(t, bystander.Token, "will stay", "General")

	// Victim comments on and likes the bystander's post.
	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", bystanderPost), victim.Token, map[string]string{"text": "nice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("victim comment: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", bystanderPost), victim.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("victim like: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, "/api/v1/users/me", victim.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("account delete: status %d", resp.StatusCode)
	}

	// The victim's post is gone.
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", victimPost), "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("victim post still retrievable: status %d, want 404", resp.StatusCode)
	}

	// The bystander's post survives without the victim's comment or like.
	likes, comments := postDetail(t, bystanderPost)
	if containsUint(likes, victim.UserID) {
		t.Errorf("victim like survived account deletion")
	}
	if comments != 0 {
		t.Errorf("victim comment survived account deletion: %d comments", comments)
	}
}

func addComment(t *testing.T, token string, postID uint, text string) uint {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID), token, map[string]string{"text": text})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add comment: status %d (%s)", resp.StatusCode, env.Message)
	}
	var out struct {
		Comment struct {
			ID uint `json:"id"`
		} `json:"comment"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode comment response: %v", err)
	}
	return out.Comment.ID
}

func TestCommentDeleteAuthorization(t *testing.T) {
	owner := register(t, "postown", uniqueEmail("postown"), "password1")
	commenter := register(t, "commer", uniqueEmail("commer"), "password1")
	stranger := register(t, "strang", uniqueEmail("strang"), "password1")

	postID := createPost(t, owner.Token, "moderated thread", "General")
	commentID := addComment(t, commenter.Token, postID, "hot take")

	path := fmt.Sprintf("/api/v1/posts/%d/comments/%d", postID, commentID)

	// Neither the author nor the post owner: rejected.
	resp, _ := doJSON(t, http.MethodDelete, path, stranger.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger comment delete: status %d, want 403", resp.StatusCode)
	}
	if _, comments := postDetail(t, postID); comments != 1 {
		t.Fatalf("comment count = %d after forbidden delete, want 1", comments)
	}

	// The post owner may remove any comment on their post.
	resp, _ = doJSON(t, http.MethodDelete, path, owner.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner comment delete: status %d, want 200", resp.StatusCode)
	}
	if _, comments := postDetail(t, postID); comments != 0 {
		t.Errorf("comment count = %d after owner delete, want 0", comments)
	}

	// Re-deleting an absent comment stays a success no-op.
	resp, _ = doJSON(t, http.MethodDelete, path, owner.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("repeat comment delete: status %d, want 200", resp.StatusCode)
	}
}

func TestNonAdminBlockedFromAdminRoutes(t *testing.T) {
	user := register(t, "plainusr", uniqueEmail("plainusr"), "password1")

	for _, path := range []string{"/api/v1/admin/users", "/api/v1/admin/posts"} {
		resp, _ := doJSON(t, http.MethodGet, path, user.Token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("GET %s as non-admin: status %d, want 403", path, resp.StatusCode)
		}
	}
}

func listCounts(t *testing.T, category string, postID uint) (likes, comments int64) {
	t.Helper()
	resp, env := doJSON(t, http.MethodGet, "/api/v1/posts?category="+category, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list posts: status %d", resp.StatusCode)
	}
	var out struct {
		Items []struct {
			ID            uint  `json:"id"`
			LikesCount    int64 `json:"likes_count"`
			CommentsCount int64 `json:"comments_count"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode post list: %v", err)
	}
	for _, item := range out.Items {
		if item.ID == postID {
			return item.LikesCount, item.CommentsCount
		}
	}
	t.Fatalf("post %d not in category %q listing", postID, category)
	return 0, 0
}

func TestListCountsRefreshOnEngagement(t *testing.T) {
	owner := register(t, "lister", uniqueEmail("lister"), "password1")
	fan := register(t, "fan", uniqueEmail("fan"), "password1")

	category := fmt.Sprintf("Counts%d", time.Now().UnixNano())
	postID := createPost(t, owner.Token, "count me", category)

	// Prime the cached listing before any engagement.
	if likes, comments := listCounts(t, category, postID); likes != 0 || comments != 0 {
		t.Fatalf("fresh post counts = %d likes / %d comments, want 0/0", likes, comments)
	}

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", postID), fan.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("like: status %d", resp.StatusCode)
	}
	if likes, _ := listCounts(t, category, postID); likes != 1 {
		t.Errorf("likes_count in listing = %d after like, want 1", likes)
	}

	addComment(t, fan.Token, postID, "counted")
	if _, comments := listCounts(t, category, postID); comments != 1 {
		t.Errorf("comments_count in listing = %d after comment, want 1", comments)
	}
}

func TestRenameRefreshesCachedAuthor(t *testing.T) {
	user := register(t, "oldname", uniqueEmail("oldname"), "password1")
	postID := createPost(t, user.Token, "whose post", "General")

	authorOf := func() string {
		resp, env := doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get post: status %d", resp.StatusCode)
		}
		var out struct {
			Post struct {
				Author struct {
					Username string `json:"username"`
				} `json:"author"`
			} `json:"post"`
		}
		if err := json.Unmarshal(env.Data, &out); err != nil {
			t.Fatalf("decode post detail: %v", err)
		}
		return out.Post.Author.Username
	}

	// Prime the detail cache under the old name.
	if got := authorOf(); got != "oldname" {
		t.Fatalf("author = %q before rename, want oldname", got)
	}

	resp, _ := doJSON(t, http.MethodPut, "/api/v1/users/me", user.Token, map[string]string{"username": "newname"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename: status %d", resp.StatusCode)
	}

	if got := authorOf(); got != "newname" {
		t.Errorf("author = %q after rename, want newname", got)
	}
}

func containsUint(s []uint, v uint) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func toSlug(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
