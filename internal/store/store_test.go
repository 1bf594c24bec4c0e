package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/studydeck/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "User " + username,
		PasswordHash: "hash",
		Role:         model.UserRoleStudent,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return id
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := createTestUser(t, s, "ana")
	u, err := s.GetUserByUsername("ana")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id || u.DisplayName != "User ana" || !u.Active {
		t.Fatalf("unexpected user %+v", u)
	}

	missing, err := s.GetUserByID(9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil user, got %+v, %v", missing, err)
	}

	if _, err := s.CreateUser(model.User{Username: "ana", PasswordHash: "x", Role: model.UserRoleStudent}); err == nil {
		t.Error("duplicate username should fail")
	}

	if err := s.SetUserActive(id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Active {
		t.Error("user should be inactive")
	}

	if err := s.SetPasswordHash(id, "new"); err != nil {
		t.Fatalf("SetPasswordHash: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.PasswordHash != "new" {
		t.Errorf("password hash = %q", u.PasswordHash)
	}

	createTestUser(t, s, "luis")
	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "ana" || users[1].Username != "luis" {
		t.Errorf("unexpected users %+v", users)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	uid := createTestUser(t, s, "ana")

	token, err := s.CreateAuthSession(uid)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != uid {
		t.Fatalf("GetAuthSession: %+v, %v", sess, err)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatal(err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("deleted session should not be found")
	}

	// Disabling a user ends every session.
	a, _ := s.CreateAuthSession(uid)
	b, _ := s.CreateAuthSession(uid)
	if err := s.SetUserActive(uid, false); err != nil {
		t.Fatal(err)
	}
	for _, tok := range []string{a, b} {
		if sess, _ := s.GetAuthSession(tok); sess != nil {
			t.Error("session should be gone after disabling the user")
		}
	}
}

func TestExpiredAuthSession(t *testing.T) {
	s := newTestStore(t)
	uid := createTestUser(t, s, "ana")

	past := time.Now().Add(-48 * time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"old", uid, past, past.Add(time.Hour),
	); err != nil {
		t.Fatal(err)
	}
	if sess, err := s.GetAuthSession("old"); err != nil || sess != nil {
		t.Errorf("expired session returned: %+v, %v", sess, err)
	}
	if n, err := s.CleanupExpiredSessions(); err != nil || n != 0 {
		t.Errorf("lookup should already have removed the session: %d, %v", n, err)
	}
}

func TestAuthSessionRenewal(t *testing.T) {
	s := newTestStore(t)
	uid := createTestUser(t, s, "ana")

	soon := time.Now().Add(time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"aging", uid, soon.Add(-AuthSessionTTL), soon,
	); err != nil {
		t.Fatal(err)
	}
	sess, err := s.GetAuthSession("aging")
	if err != nil || sess == nil {
		t.Fatalf("GetAuthSession: %+v, %v", sess, err)
	}
	if sess.ExpiresAt.Sub(time.Now()) < AuthSessionTTL-time.Minute {
		t.Errorf("active session should be extended, expires %v", sess.ExpiresAt)
	}

	stale := time.Now().Add(-time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"stale", uid, stale.Add(-AuthSessionTTL), stale,
	); err != nil {
		t.Fatal(err)
	}
	if n, err := s.CleanupExpiredSessions(); err != nil || n != 1 {
		t.Errorf("CleanupExpiredSessions = %d, %v; want 1", n, err)
	}
}

func TestDocuments(t *testing.T) {
	s := newTestStore(t)
	ana := createTestUser(t, s, "ana")
	luis := createTestUser(t, s, "luis")

	data := []byte("%PDF-1.4 fake")
	id, err := s.InsertDocument(model.Document{
		UserID: ana,
		Name:   "tema1.pdf",
		Pages:  []string{"página uno", "página dos"},
	}, data)
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if _, err := s.InsertDocument(model.Document{UserID: ana, Name: "tema2.pdf", Pages: []string{""}}, data); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListDocuments(ana)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "tema1.pdf" || docs[1].Name != "tema2.pdf" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	d := docs[0]
	if d.PageCount != 2 || d.Size != int64(len(data)) || len(d.Pages) != 2 || d.Pages[1] != "página dos" {
		t.Errorf("unexpected document %+v", d)
	}
	if d.UploadedAt.IsZero() {
		t.Error("upload time should be set")
	}

	got, err := s.GetDocumentData(ana, id)
	if err != nil || string(got) != string(data) {
		t.Errorf("GetDocumentData = %q, %v", got, err)
	}

	// Documents are scoped to their owner.
	if _, err := s.GetDocument(luis, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := s.GetDocumentData(luis, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user's data, got %v", err)
	}
	if err := s.DeleteDocument(luis, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting other user's document, got %v", err)
	}

	if err := s.DeleteDocument(ana, id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	docs, _ = s.ListDocuments(ana)
	if len(docs) != 1 {
		t.Errorf("expected 1 document left, got %d", len(docs))
	}
}

func testResult(userID int64, grade int) model.Result {
	return model.Result{
		UserID:   userID,
		Settings: model.DefaultSettings(),
		Summary: model.Summary{
			Type:   model.TypeTest,
			Total:  2,
			Score:  float64(grade) / 5,
			Grade:  grade,
			Passed: grade >= 5,
			Graded: true,
			Outcomes: []model.Outcome{
				{Index: 0, Kind: model.TypeTest, Prompt: "¿Uno?", Selected: []int{1}, Correct: true, Points: 1},
				{Index: 1, Kind: model.TypeTest, Prompt: "¿Dos?", UserAnswer: model.TimedOutAnswer, TimedOut: true},
			},
		},
		Documents: []string{"tema1.pdf"},
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)
	ana := createTestUser(t, s, "ana")

	if _, err := s.InsertResult(testResult(ana, 5)); err != nil {
		t.Fatalf("InsertResult: %v", err)
	}
	if _, err := s.InsertResult(testResult(ana, 10)); err != nil {
		t.Fatal(err)
	}

	results, err := s.ListResults(ana)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Summary.Grade != 10 {
		t.Errorf("newest result first, got grade %d", results[0].Summary.Grade)
	}
	r := results[1]
	if r.Settings.Type != model.TypeTest || len(r.Summary.Outcomes) != 2 || r.Documents[0] != "tema1.pdf" {
		t.Errorf("result not round-tripped: %+v", r)
	}
	if !r.Summary.Outcomes[1].TimedOut || r.Summary.Outcomes[0].Selected[0] != 1 {
		t.Errorf("outcomes not round-tripped: %+v", r.Summary.Outcomes)
	}

	other, _ := s.ListResults(ana + 100)
	if len(other) != 0 {
		t.Errorf("expected no results for unknown user, got %d", len(other))
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)
	ana := createTestUser(t, s, "ana")
	createTestUser(t, s, "luis")
	eva := createTestUser(t, s, "eva")

	for _, r := range []model.Result{testResult(eva, 7), testResult(ana, 5), testResult(eva, 9)} {
		if _, err := s.InsertResult(r); err != nil {
			t.Fatal(err)
		}
	}

	export, err := s.ExportResults()
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if export.ExportedAt.IsZero() {
		t.Error("export time should be set")
	}
	if len(export.Results) != 2 {
		t.Fatalf("users without results should be omitted, got %d groups", len(export.Results))
	}
	if export.Results[0].Username != "ana" || len(export.Results[0].Sessions) != 1 {
		t.Errorf("unexpected first group %+v", export.Results[0])
	}
	eg := export.Results[1]
	if eg.Username != "eva" || eg.DisplayName != "User eva" || len(eg.Sessions) != 2 {
		t.Fatalf("unexpected second group %+v", eg)
	}
	if eg.Sessions[0].Summary.Grade != 7 || eg.Sessions[1].Summary.Grade != 9 {
		t.Error("sessions should keep insertion order")
	}
}

func TestMetadataAndSettings(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Errorf("GetMetadata(missing) = %q, %v", v, err)
	}
	if err := s.SetMetadata("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMetadata("k", "2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetMetadata("k"); v != "2" {
		t.Errorf("upsert failed, got %q", v)
	}

	st, err := s.LoadUserSettings(1)
	if err != nil {
		t.Fatal(err)
	}
	if st != model.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", st)
	}

	st.Type = model.TypeCloze
	st.MaxClozeBlanks = 3
	st.VoiceURI = "nova"
	if err := s.SaveUserSettings(1, st); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadUserSettings(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != st {
		t.Errorf("LoadUserSettings = %+v, want %+v", got, st)
	}
}
