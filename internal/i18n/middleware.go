package i18n

import "net/http"

const langCookie = "lang"

// Middleware picks a localizer per request from the lang query parameter,
// the lang cookie and the Accept-Language header, in that order. The
// language given to Init is the final fallback.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var prefs []string
			if q := r.URL.Query().Get("lang"); q != "" {
				prefs = append(prefs, q)
			}
			if c, err := r.Cookie(langCookie); err == nil && c.Value != "" {
				prefs = append(prefs, c.Value)
			}
			if h := r.Header.Get("Accept-Language"); h != "" {
				prefs = append(prefs, h)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
