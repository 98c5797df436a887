package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quizpix/quizpix/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v1", "test-key", "vision-model", 2*time.Second)
}

func completionWith(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"model":   "vision-model",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	})
	if err != nil {
		t.Fatalf("marshal completion: %v", err)
	}
	return body
}

func apiErrorBody(message string) []byte {
	return []byte(`{"error": {"message": "` + message + `", "type": "server_error"}}`)
}

func TestAnalyzeSheetParsesFencedJSON(t *testing.T) {
	content := "```json\n{\"studentInfo\":{\"name\":\"Nguyen Van A\",\"studentId\":\"HS001\",\"class\":\"12A1\"},\"quizCode\":\"326\",\"studentAnswers\":[{\"q\":1,\"marked\":\"A\"},{\"q\":2,\"marked\":\"\"}]}\n```"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionWith(t, content))
	})

	sheet, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1, Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("AnalyzeSheet: %v", err)
	}
	if sheet.Student.Name != "Nguyen Van A" || sheet.QuizCode != "326" {
		t.Fatalf("unexpected sheet: %+v", sheet)
	}
	if len(sheet.Answers) != 2 || sheet.Answers[0].Marked != "A" || sheet.Answers[1].Marked != "" {
		t.Fatalf("unexpected answers: %+v", sheet.Answers)
	}
}

func TestAnalyzeSheetFillsDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionWith(t, `{"studentInfo":{},"quizCode":"","studentAnswers":null}`))
	})

	sheet, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if err != nil {
		t.Fatalf("AnalyzeSheet: %v", err)
	}
	if sheet.Student.Name != "N/A" || sheet.Student.StudentID != "N/A" || sheet.Student.Class != "N/A" {
		t.Fatalf("identity defaults not applied: %+v", sheet.Student)
	}
	if sheet.QuizCode != "N/A" {
		t.Fatalf("quiz code default not applied: %q", sheet.QuizCode)
	}
	if sheet.Answers == nil {
		t.Fatal("answers should be an empty slice, not nil")
	}
}

func TestAnalyzeSheetMalformedPayloadIsRecognitionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionWith(t, "the sheet looks blurry, no data"))
	})

	_, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if !domain.IsKind(err, domain.ErrRecognition) {
		t.Fatalf("want ErrRecognition, got %v", err)
	}
}

func TestAnalyzeSheetNoChoicesIsRecognitionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","choices":[]}`))
	})

	_, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if !domain.IsKind(err, domain.ErrRecognition) {
		t.Fatalf("want ErrRecognition, got %v", err)
	}
}

func TestAnalyzeSheetTooManyRequestsIsRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write(apiErrorBody("slow down"))
	})

	_, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestAnalyzeSheetQuotaWordingIsRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write(apiErrorBody("daily quota exceeded for this project"))
	})

	_, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestAnalyzeSheetServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(apiErrorBody("upstream exploded"))
	})

	_, err := client.AnalyzeSheet(context.Background(), domain.PageImage{Index: 1})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("want ErrTemporary, got %v", err)
	}
}

func TestExtractAnswerKeyOrdersAndNormalizes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionWith(t, `{"327":{"1":"d"},"326":{"1":" a ","2":"B","zero":"C","3":""}}`))
	})

	set, err := client.ExtractAnswerKey(context.Background(), domain.PageImage{Index: 1})
	if err != nil {
		t.Fatalf("ExtractAnswerKey: %v", err)
	}
	codes := set.Codes()
	if len(codes) != 2 || codes[0] != "326" || codes[1] != "327" {
		t.Fatalf("want codes [326 327], got %v", codes)
	}
	key326, _ := set.Lookup("326")
	if len(key326) != 2 || key326[1] != "A" || key326[2] != "B" {
		t.Fatalf("unexpected key for 326: %v", key326)
	}
}
