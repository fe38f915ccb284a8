package hosted

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := New(Options{APIKey: "test-key", Model: "gpt-test", ImageModel: "img-test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return svc
}

func TestGenerateTextSendsJSONModeAndImage(t *testing.T) {
	var body map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"regions\":[]}"}}]}`)
	})
	out, err := svc.GenerateText(context.Background(), content.TextRequest{
		Step:   content.StepExtract,
		Prompt: "Review this map",
		Image:  &content.Image{Data: []byte("jpeg"), MIMEType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if out != `{"regions":[]}` {
		t.Fatalf("content = %q", out)
	}
	if body["model"] != "gpt-test" {
		t.Fatalf("model = %v", body["model"])
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("response_format = %v", body["response_format"])
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), "ttrpg") {
		t.Fatalf("system role missing: %s", raw)
	}
	if !strings.Contains(string(raw), "data:image/jpeg;base64,") {
		t.Fatalf("image part missing: %s", raw)
	}
}

func TestGenerateImageDecodesBase64(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n")
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images/generations") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+base64.StdEncoding.EncodeToString(png)+`"}]}`)
	})
	pic, err := svc.GenerateImage(context.Background(), content.ImageRequest{Kind: content.ImagePortrait, Prompt: "a fisher"})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if string(pic.Data) != string(png) {
		t.Fatalf("data = %q", pic.Data)
	}
}

func TestGenerateImageMapsRejectionToBadRequest(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"content policy","type":"invalid_request_error"}}`)
	})
	_, err := svc.GenerateImage(context.Background(), content.ImageRequest{Kind: content.ImageLocation, Prompt: "x"})
	if !errors.Is(err, content.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestGenerateTextEmptyChoices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`)
	})
	_, err := svc.GenerateText(context.Background(), content.TextRequest{Prompt: "x"})
	if !errors.Is(err, content.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestFactoryRequiresKey(t *testing.T) {
	if _, err := Factory(config.Env{Backend: config.BackendHosted}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
