package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("es"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "SignIn", "Sign in"},
		{"es", "SignIn", "Entrar"},
		{"en", "ErrNotPDF", "Only PDF files can be uploaded."},
		{"es", "ErrNotPDF", "Solo se pueden subir archivos PDF."},
		{"fr", "Passed", "Aprobado"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "CardsReviewed", 1); got != "1 card reviewed." {
		t.Errorf("Tp(CardsReviewed, 1) = %q", got)
	}
	if got := Tp(ctx, "CardsReviewed", 5); got != "5 cards reviewed." {
		t.Errorf("Tp(CardsReviewed, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "es")

	if got := Td(ctx, "GradeN", map[string]any{"Grade": 7}); got != "Nota: 7/10" {
		t.Errorf("Td(GradeN) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "es")
	if n := len(Languages()); n != 2 {
		t.Errorf("expected 2 loaded languages, got %d", n)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("es"); err != nil {
		t.Fatal(err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "SignIn")
	}))

	tests := []struct {
		name   string
		url    string
		cookie string
		accept string
		want   string
	}{
		{"default", "/", "", "", "Entrar"},
		{"header", "/", "", "en-US,en;q=0.9", "Sign in"},
		{"cookie over header", "/", "es", "en", "Entrar"},
		{"query over cookie", "/?lang=en", "es", "", "Sign in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
