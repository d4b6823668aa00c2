package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/infrastructure/clientstore"
	"github.com/kirillkom/plagctl/internal/infrastructure/storage/memory"
)

type fakeAuthAPI struct {
	token      string
	loginErr   error
	profile    domain.Fetched[domain.User]
	profileErr error
	gotCreds   domain.Credentials
}

func (f *fakeAuthAPI) Login(_ context.Context, creds domain.Credentials) (string, error) {
	f.gotCreds = creds
	return f.token, f.loginErr
}

func (f *fakeAuthAPI) CurrentUser(context.Context) (domain.Fetched[domain.User], error) {
	return f.profile, f.profileErr
}

func newTestStore() *clientstore.Store {
	return clientstore.New(memory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestLoginStoresTokenAndProfile(t *testing.T) {
	store := newTestStore()
	api := &fakeAuthAPI{
		token:   "tok",
		profile: domain.Fetched[domain.User]{Value: domain.User{Username: "alice", Role: domain.RoleTeacher}, Source: domain.SourceLive},
	}
	uc := NewAuthUseCase(api, store, discardLogger())

	user, err := uc.Login(context.Background(), domain.Credentials{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Username != "alice" || store.Token() != "tok" || store.Role() != domain.RoleTeacher {
		t.Fatalf("unexpected session: user=%+v token=%q role=%q", user, store.Token(), store.Role())
	}
}

func TestLoginFallsBackToTokenRoleClaim(t *testing.T) {
	store := newTestStore()
	api := &fakeAuthAPI{
		token:      signedToken(t, jwt.MapClaims{"sub": "bob", "role": "Student", "exp": time.Now().Add(time.Hour).Unix()}),
		profileErr: domain.WrapError(domain.ErrNetwork, "auth.me", errors.New("down")),
	}
	uc := NewAuthUseCase(api, store, discardLogger())

	user, err := uc.Login(context.Background(), domain.Credentials{Username: "bob", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Role != domain.RoleStudent || store.Role() != domain.RoleStudent {
		t.Fatalf("expected student role from claim, got user=%q store=%q", user.Role, store.Role())
	}
}

func TestLoginRejectsMissingCredentials(t *testing.T) {
	api := &fakeAuthAPI{token: "tok"}
	uc := NewAuthUseCase(api, newTestStore(), discardLogger())

	_, err := uc.Login(context.Background(), domain.Credentials{Username: "alice"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "password") {
		t.Fatalf("expected field name in error, got %v", err)
	}
	if api.gotCreds.Username != "" {
		t.Fatalf("backend must not be called with invalid credentials")
	}
}

func TestWhoAmIClearsSessionOnUnauthorized(t *testing.T) {
	store := newTestStore()
	store.SetToken("stale")
	store.SetUser(domain.User{Username: "alice", Role: domain.RoleAdmin})
	api := &fakeAuthAPI{profileErr: domain.WrapError(domain.ErrUnauthorized, "auth.me", errors.New("expired"))}
	uc := NewAuthUseCase(api, store, discardLogger())

	if _, err := uc.WhoAmI(context.Background()); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if store.Token() != "" || store.User() != nil || store.Role() != "" {
		t.Fatalf("expected cleared session")
	}
}

func TestWhoAmIWithoutTokenIsUnauthorized(t *testing.T) {
	uc := NewAuthUseCase(&fakeAuthAPI{}, newTestStore(), discardLogger())
	if _, err := uc.WhoAmI(context.Background()); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAuthorizeUsesKnownRoleOnly(t *testing.T) {
	store := newTestStore()
	uc := NewAuthUseCase(&fakeAuthAPI{}, store, discardLogger())

	if err := uc.Authorize(domain.ActionDeleteDocument); err != nil {
		t.Fatalf("anonymous session must defer to backend, got %v", err)
	}

	store.SetToken("tok")
	if err := uc.Authorize(domain.ActionDeleteDocument); err != nil {
		t.Fatalf("unknown role must defer to backend, got %v", err)
	}

	store.SetRole(domain.RoleStudent)
	if err := uc.Authorize(domain.ActionDeleteDocument); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for student delete, got %v", err)
	}
	if err := uc.Authorize(domain.ActionUpload); err != nil {
		t.Fatalf("student upload should be allowed, got %v", err)
	}
}

type fakeDocumentAPI struct {
	docs      domain.Fetched[[]domain.Document]
	listErr   error
	deleteErr error
	deleted   []string
	uploaded  string
	body      string
}

func (f *fakeDocumentAPI) ListDocuments(context.Context) (domain.Fetched[[]domain.Document], error) {
	return f.docs, f.listErr
}

func (f *fakeDocumentAPI) UploadDocument(_ context.Context, filename string, body io.Reader) (*domain.UploadedDocument, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.uploaded = filename
	f.body = string(data)
	return &domain.UploadedDocument{ID: "new-id", Filename: filename}, nil
}

func (f *fakeDocumentAPI) DeleteDocument(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeInspector struct {
	err error
}

func (f fakeInspector) Inspect(path string) (domain.FileInfo, error) {
	if f.err != nil {
		return domain.FileInfo{}, f.err
	}
	st, err := os.Stat(path)
	if err != nil {
		return domain.FileInfo{}, err
	}
	return domain.FileInfo{Path: path, Name: filepath.Base(path), Size: st.Size(), Pages: 1}, nil
}

func sampleListing() domain.Fetched[[]domain.Document] {
	return domain.Fetched[[]domain.Document]{
		Source: domain.SourceLive,
		Value: []domain.Document{
			{ID: "1", Filename: "a.pdf"},
			{ID: "2", Filename: "b.pdf", Metadata: map[string]any{"author": "x"}},
		},
	}
}

func newDocumentsFixture(api *fakeDocumentAPI, inspector fakeInspector) (*DocumentsUseCase, *clientstore.Store) {
	store := newTestStore()
	auth := NewAuthUseCase(&fakeAuthAPI{}, store, discardLogger())
	return NewDocumentsUseCase(api, store, inspector, auth, discardLogger()), store
}

func TestDocumentsUploadSendsInspectedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essay.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	api := &fakeDocumentAPI{}
	uc, _ := newDocumentsFixture(api, fakeInspector{})

	uploaded, info, err := uc.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if uploaded.ID != "new-id" || api.uploaded != "essay.pdf" || api.body != "%PDF-1.4 body" || info.Size != 13 {
		t.Fatalf("unexpected upload: %+v %+v body=%q", uploaded, info, api.body)
	}
}

func TestDocumentsUploadStopsOnInspectionError(t *testing.T) {
	api := &fakeDocumentAPI{}
	inspectErr := domain.WrapError(domain.ErrInvalidInput, "pdf.inspect", errors.New("not a pdf"))
	uc, _ := newDocumentsFixture(api, fakeInspector{err: inspectErr})

	if _, _, err := uc.Upload(context.Background(), "x.txt"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if api.uploaded != "" {
		t.Fatalf("nothing should be uploaded")
	}
}

func TestDocumentsDeleteRemovesFromQueue(t *testing.T) {
	api := &fakeDocumentAPI{}
	uc, store := newDocumentsFixture(api, fakeInspector{})
	store.AddToQueue(domain.QueueEntry{ID: "1", Filename: "a.pdf"}, domain.QueueEntry{ID: "2", Filename: "b.pdf"})

	if err := uc.Delete(context.Background(), "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	queue := store.GetQueue()
	if len(queue) != 1 || queue[0].ID != "2" {
		t.Fatalf("unexpected queue after delete: %+v", queue)
	}
}

func TestDocumentsDeleteKeepsQueueOnFailure(t *testing.T) {
	api := &fakeDocumentAPI{deleteErr: domain.WrapError(domain.ErrForbidden, "documents.delete", errors.New("no"))}
	uc, store := newDocumentsFixture(api, fakeInspector{})
	store.AddToQueue(domain.QueueEntry{ID: "1", Filename: "a.pdf"})

	if err := uc.Delete(context.Background(), "1"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(store.GetQueue()) != 1 {
		t.Fatalf("queue must be untouched on failure")
	}
}

func TestDocumentsListClearsSessionOnUnauthorized(t *testing.T) {
	api := &fakeDocumentAPI{listErr: domain.WrapError(domain.ErrUnauthorized, "documents.list", errors.New("401"))}
	uc, store := newDocumentsFixture(api, fakeInspector{})
	store.SetToken("tok")

	if _, err := uc.List(context.Background()); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if store.Token() != "" {
		t.Fatalf("token should be cleared")
	}
}

func TestQueueAddByIDAndFilename(t *testing.T) {
	api := &fakeDocumentAPI{docs: sampleListing()}
	docs, store := newDocumentsFixture(api, fakeInspector{})
	queue := NewQueueUseCase(store, docs)

	entries, err := queue.Add(context.Background(), "1", "B.PDF", "1")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "1" || entries[1].ID != "2" {
		t.Fatalf("unexpected queue: %+v", entries)
	}
	if entries[1].Metadata["author"] != "x" {
		t.Fatalf("listing metadata should be kept: %+v", entries[1])
	}

	if got := queue.Remove("a.pdf"); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected queue after remove: %+v", got)
	}
	queue.Clear()
	if len(queue.List()) != 0 {
		t.Fatalf("queue should be empty")
	}
}

func TestQueueAddUnknownDocument(t *testing.T) {
	api := &fakeDocumentAPI{docs: sampleListing()}
	docs, store := newDocumentsFixture(api, fakeInspector{})
	queue := NewQueueUseCase(store, docs)

	_, err := queue.Add(context.Background(), "1", "missing.pdf")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.GetQueue()) != 0 {
		t.Fatalf("nothing should be queued when a reference is unknown")
	}
	if _, err := queue.Add(context.Background()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty add, got %v", err)
	}
}
