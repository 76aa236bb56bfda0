package boardtest

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

// TestBoardServesSearchFlow tests the fake board's search and results pages.
func TestBoardServesSearchFlow(t *testing.T) {
	t.Parallel()

	b := New()
	b.Topics["42"] = []Row{{TopicID: 1, Title: "One", ForumID: "4", ForumName: "Forest", PosterID: "42", PosterName: "Me", Date: "Today at 9:00"}}
	srv := b.Server()
	defer srv.Close()

	get := func(path string) string {
		t.Helper()
		resp, err := http.Get(srv.URL + path) //nolint:noctx // test server
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	if body := get("/index.php?act=Search&CODE=getalluser&mid=42&type=posts"); !strings.Contains(body, `http-equiv="refresh"`) {
		t.Errorf("expected redirect page, got %s", body)
	}
	if body := get("/index.php?act=Search&CODE=getalluser&mid=7&type=posts"); !strings.Contains(body, "we did not find any matches to display") {
		t.Errorf("expected no-matches page, got %s", body)
	}
	body := get("/index.php?act=Search&CODE=show&searchid=u42&result_type=topics&st=0")
	if strings.Count(body, `<td class="row4" align="center">`) != 1 {
		t.Errorf("expected one result row, got %s", body)
	}
	if len(b.Requests()) != 3 || b.ResultsRequests() != 1 {
		t.Errorf("unexpected requests %v", b.Requests())
	}
}
