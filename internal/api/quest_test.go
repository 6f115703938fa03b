package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kodlidy/quest-server/internal/domain"
	"github.com/kodlidy/quest-server/internal/engine"
	"github.com/kodlidy/quest-server/internal/identity"
	"github.com/kodlidy/quest-server/internal/live"
)

// fakeRepo is an in-memory Repository. Records go through a JSON round
// trip on save so handler-side aliasing can't leak into the "database".
type fakeRepo struct {
	mu      sync.Mutex
	records map[string][]byte
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string][]byte)}
}

func (f *fakeRepo) GetProgress(_ context.Context, playerID string) (*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.records[playerID]
	if !ok {
		return nil, nil
	}
	var p domain.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil
	}
	p.EnsureMaps()
	return &p, nil
}

func (f *fakeRepo) SaveProgress(_ context.Context, playerID string, p *domain.Progress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[playerID] = raw
	return nil
}

func (f *fakeRepo) DeleteProgress(_ context.Context, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, playerID)
	return nil
}

func (f *fakeRepo) CleanupStaleProgress(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func apiQuest() *domain.Quest {
	return &domain.Quest{
		Title: "Код Лиды",
		Points: []domain.Waypoint{
			{
				ID: 1, Title: "Замок", Letter: "К",
				Sources: []string{"https://example.org/castle"},
				Questions: []domain.Question{
					{Type: domain.QuestionText, Text: "Год?", Answers: []string{"1323"}},
				},
			},
			{
				ID: 2, Title: "Костёл", Letter: "Р",
				Sources: []string{"https://example.org/castle", "https://example.org/church"},
				Questions: []domain.Question{
					{
						Type: domain.QuestionTest, Text: "Стиль?",
						Answers: []string{"барокко"},
						Options: []string{"готика", "барокко"},
					},
					{Type: domain.QuestionText, Text: "Век?", Answers: []string{"18"}},
				},
			},
			{ID: 3, Title: "Пустая точка", Letter: "Е"},
		},
		Bonus: &domain.Bonus{
			Title:   "Бонус",
			Text:    "Секретные факты",
			Sources: []string{"https://example.org/bonus"},
			Facts:   []domain.FactItem{{Label: "Герб", Value: "Лев с ключами"}},
		},
	}
}

func newTestAPI(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	eng := engine.New(apiQuest())
	h := NewQuestHandler(NewHandler(newFakeRepo(), eng, live.NewFeed()))

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return srv, &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s %s response: %v", method, url, err)
	}
	return resp.StatusCode, decoded
}

func answerBody(answer string) map[string]any {
	return map[string]any{"answer": answer}
}

func TestRouteOverviewInitial(t *testing.T) {
	srv, client := newTestAPI(t)

	status, resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/route", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	progress := resp["progress"].(map[string]interface{})
	if progress["done"].(float64) != 0 || progress["total"].(float64) != 3 {
		t.Errorf("progress = %v, want 0/3", progress)
	}

	points := resp["points"].([]interface{})
	first := points[0].(map[string]interface{})
	second := points[1].(map[string]interface{})
	if first["available"] != true {
		t.Error("point 1 not available on a fresh route")
	}
	if second["available"] != false {
		t.Error("point 2 available on a fresh route")
	}
	if resp["next_point_id"].(float64) != 1 {
		t.Errorf("next_point_id = %v, want 1", resp["next_point_id"])
	}
}

func TestLockedPointSignalsRedirect(t *testing.T) {
	srv, client := newTestAPI(t)

	status, resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/points/2", nil)
	if status != http.StatusForbidden {
		t.Fatalf("GET locked point status = %d, want 403", status)
	}
	if resp["signal"] != SignalRedirectOverview {
		t.Errorf("signal = %v, want %q", resp["signal"], SignalRedirectOverview)
	}

	status, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/points/2/answer", answerBody("барокко"))
	if status != http.StatusForbidden {
		t.Fatalf("POST locked point status = %d, want 403", status)
	}
	if resp["signal"] != SignalRedirectOverview {
		t.Errorf("signal = %v, want %q", resp["signal"], SignalRedirectOverview)
	}
}

func TestUnknownPoint(t *testing.T) {
	srv, client := newTestAPI(t)

	if status, _ := doJSON(t, client, http.MethodGet, srv.URL+"/api/points/99", nil); status != http.StatusNotFound {
		t.Errorf("GET unknown point status = %d, want 404", status)
	}
	if status, _ := doJSON(t, client, http.MethodGet, srv.URL+"/api/points/abc", nil); status != http.StatusBadRequest {
		t.Errorf("GET malformed point id status = %d, want 400", status)
	}
}

func TestAnswerWithoutSelection(t *testing.T) {
	srv, client := newTestAPI(t)

	// A choice question with nothing selected submits a null answer.
	status, resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/points/1/answer",
		map[string]any{"answer": nil})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if resp["signal"] != SignalRetry || resp["reason"] != "no_answer" {
		t.Errorf("got %v, want retry/no_answer", resp)
	}
}

func TestFullQuestFlow(t *testing.T) {
	srv, client := newTestAPI(t)

	// Point 1: one text question.
	status, resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/points/1", nil)
	if status != http.StatusOK {
		t.Fatalf("GET point 1 status = %d", status)
	}
	question := resp["question"].(map[string]interface{})
	if question["text"] != "Год?" {
		t.Errorf("question = %v, want Год?", question["text"])
	}
	if _, leaked := question["answers"]; leaked {
		t.Fatal("accepted answers leaked to the client")
	}

	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/points/1/answer", answerBody("не знаю"))
	if resp["signal"] != SignalRetry || resp["reason"] != "wrong" {
		t.Fatalf("wrong answer: got %v", resp)
	}

	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/points/1/answer", answerBody("в 1323 году"))
	if resp["signal"] != SignalPointCompleted {
		t.Fatalf("correct answer: got %v", resp)
	}
	if resp["letter"] != "К" {
		t.Errorf("letter = %v, want К", resp["letter"])
	}

	// Point 2: two questions.
	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/points/2/answer", answerBody("барокко"))
	if resp["signal"] != SignalNextQuestion || resp["index"].(float64) != 1 {
		t.Fatalf("first question of point 2: got %v", resp)
	}

	// The point now serves its second question.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/points/2", nil)
	if resp["index"].(float64) != 1 || resp["total"].(float64) != 2 {
		t.Fatalf("point 2 view after advance: got %v", resp)
	}

	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/points/2/answer", answerBody("18"))
	if resp["signal"] != SignalPointCompleted {
		t.Fatalf("second question of point 2: got %v", resp)
	}

	// Point 3 has no questions and completes on visit, finishing the route.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/points/3", nil)
	if resp["signal"] != SignalPointCompleted {
		t.Fatalf("zero-question point: got %v", resp)
	}
	if resp["final_unlocked"] != true {
		t.Error("final not unlocked after the last point")
	}

	// Final page shows the assembled keyword.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/final", nil)
	if resp["unlocked_final"] != true {
		t.Fatalf("final view: got %v", resp)
	}
	if resp["assembled"] != "КРЕ" {
		t.Errorf("assembled = %v, want КРЕ", resp["assembled"])
	}

	// Bonus stays locked until the keyword lands.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/bonus", nil)
	if resp["unlocked"] != false {
		t.Fatalf("bonus before keyword: got %v", resp)
	}

	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/final/keyword",
		map[string]any{"keyword": "гранит"})
	if resp["signal"] != SignalRetry {
		t.Fatalf("wrong keyword: got %v", resp)
	}

	// A case/spacing variant that normalizes equal is accepted.
	_, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/final/keyword",
		map[string]any{"keyword": "  кРе!! "})
	if resp["signal"] != SignalBonusUnlocked {
		t.Fatalf("correct keyword: got %v", resp)
	}

	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/bonus", nil)
	if resp["unlocked"] != true {
		t.Fatalf("bonus after keyword: got %v", resp)
	}
	bonus := resp["bonus"].(map[string]interface{})
	if bonus["title"] != "Бонус" {
		t.Errorf("bonus title = %v", bonus["title"])
	}
}

func TestKeywordLockedBeforeFinal(t *testing.T) {
	srv, client := newTestAPI(t)

	status, resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/final/keyword",
		map[string]any{"keyword": "кре"})
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
	if resp["signal"] != SignalRedirectOverview {
		t.Errorf("signal = %v, want %q", resp["signal"], SignalRedirectOverview)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	srv, client := newTestAPI(t)

	// Make some progress first.
	_, resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/points/1/answer", answerBody("1323"))
	if resp["signal"] != SignalPointCompleted {
		t.Fatalf("setup answer: got %v", resp)
	}

	status, _ := doJSON(t, client, http.MethodPost, srv.URL+"/api/reset",
		map[string]any{"confirm": false})
	if status != http.StatusBadRequest {
		t.Fatalf("unconfirmed reset status = %d, want 400", status)
	}

	// Progress untouched.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/route", nil)
	if resp["progress"].(map[string]interface{})["done"].(float64) != 1 {
		t.Fatal("unconfirmed reset wiped progress")
	}

	status, resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/reset",
		map[string]any{"confirm": true})
	if status != http.StatusOK || resp["signal"] != SignalReset {
		t.Fatalf("confirmed reset: status %d, resp %v", status, resp)
	}

	// Observationally equal to a fresh start.
	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/route", nil)
	progress := resp["progress"].(map[string]interface{})
	if progress["done"].(float64) != 0 {
		t.Errorf("done after reset = %v, want 0", progress["done"])
	}
	if progress["unlocked_final"] != false || progress["unlocked_bonus"] != false {
		t.Errorf("unlocks after reset = %v", progress)
	}
}

func TestSourcesDeduplicated(t *testing.T) {
	srv, client := newTestAPI(t)

	_, resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/sources", nil)
	sources := resp["sources"].([]interface{})

	want := []string{
		"https://example.org/castle",
		"https://example.org/church",
		"https://example.org/bonus",
	}
	if len(sources) != len(want) {
		t.Fatalf("sources = %v, want %v", sources, want)
	}
	for i, u := range want {
		if sources[i] != u {
			t.Errorf("sources[%d] = %v, want %q", i, sources[i], u)
		}
	}
}

func TestProgressRecordEndpoint(t *testing.T) {
	srv, client := newTestAPI(t)

	_, resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/points/1/answer", answerBody("1323"))
	if resp["signal"] != SignalPointCompleted {
		t.Fatalf("setup answer: got %v", resp)
	}

	_, resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/progress", nil)
	completed := resp["completed_points"].(map[string]interface{})
	if completed["1"] != true {
		t.Errorf("completed_points = %v, want point 1 present", completed)
	}
	letters := resp["letters"].(map[string]interface{})
	if letters["1"] != "К" {
		t.Errorf("letters = %v, want К for point 1", letters)
	}
}
