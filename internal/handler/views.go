package handler

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/studydeck/internal/i18n"
	"github.com/pavelanni/studydeck/internal/model"
)

// html writes format with every argument HTML-escaped.
func html(w io.Writer, format string, args ...string) error {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = templ.EscapeString(a)
	}
	_, err := fmt.Fprintf(w, format, escaped...)
	return err
}

func loginPage(action, errMsg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t := func(id string) string { return appI18n.T(ctx, id) }
		if err := html(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head><body><main class="login"><h1>%s</h1>`,
			t("AppTitle"), t("LoginTitle")); err != nil {
			return err
		}
		if errMsg != "" {
			if err := html(w, `<p class="error" role="alert">%s</p>`, errMsg); err != nil {
				return err
			}
		}
		return html(w, `<form method="post" action="%s">`+
			`<label>%s <input name="username" autocomplete="username" required></label>`+
			`<label>%s <input name="password" type="password" autocomplete="current-password" required></label>`+
			`<button type="submit">%s</button></form></main></body></html>`,
			action, t("Username"), t("Password"), t("SignIn"))
	})
}

// summaryView renders the end-of-session report as an HTML fragment. The
// outcome list is rendered only when showOutcomes is set.
func summaryView(sum model.Summary, showOutcomes, showSource bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t := func(id string) string { return appI18n.T(ctx, id) }

		title := t("SummaryTitle")
		if !sum.Graded {
			title = t("ReviewTitle")
		}
		if err := html(w, `<section class="summary"><h2>%s</h2>`, title); err != nil {
			return err
		}

		if sum.Graded {
			verdict, class := t("Failed"), "failed"
			if sum.Passed {
				verdict, class = t("Passed"), "passed"
			}
			if err := html(w, `<p class="grade %s">%s &middot; %s &middot; %s</p>`,
				class,
				appI18n.Td(ctx, "GradeN", map[string]any{"Grade": sum.Grade}),
				appI18n.Td(ctx, "ScoreN", map[string]any{"Score": strconv.FormatFloat(sum.Score, 'f', -1, 64), "Total": sum.Total}),
				verdict); err != nil {
				return err
			}
		} else if err := html(w, `<p class="reviewed">%s</p>`, appI18n.Tp(ctx, "CardsReviewed", len(sum.Outcomes))); err != nil {
			return err
		}

		if !showOutcomes {
			return html(w, `</section>`)
		}
		if err := html(w, `<ol class="outcomes">`); err != nil {
			return err
		}
		for _, o := range sum.Outcomes {
			class := "wrong"
			switch {
			case !sum.Graded:
				class = "reviewed"
			case o.TimedOut:
				class = "timed-out"
			case o.Correct:
				class = "correct"
			}
			answer := o.UserAnswer
			if answer == "" {
				answer = t("NoAnswer")
			}
			if err := html(w, `<li class="%s"><p class="prompt">%s</p>`, class, o.Prompt); err != nil {
				return err
			}
			if sum.Graded {
				if err := html(w, `<dl><dt>%s</dt><dd>%s</dd><dt>%s</dt><dd>%s</dd><dt>%s</dt><dd>%s</dd>`,
					t("YourAnswer"), answer,
					t("CorrectAnswer"), o.Expected,
					t("Points"), strconv.FormatFloat(o.Points, 'f', -1, 64)); err != nil {
					return err
				}
				if o.Feedback != "" {
					if err := html(w, `<dt>%s</dt><dd>%s</dd>`, t("Feedback"), o.Feedback); err != nil {
						return err
					}
				}
				if err := html(w, `</dl>`); err != nil {
					return err
				}
			}
			if showSource && o.SourceFile != "" {
				if err := html(w, `<p class="source">%s: %s</p>`, t("Source"), o.SourceFile); err != nil {
					return err
				}
			}
			if err := html(w, `</li>`); err != nil {
				return err
			}
		}
		return html(w, `</ol></section>`)
	})
}
