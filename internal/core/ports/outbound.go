package ports

import (
	"context"
	"io"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// KeyValueStore is the local durable key/value backend (the browser's local storage).
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// ClientStore persists queue, result and session state under fixed keys.
type ClientStore interface {
	GetQueue() []domain.QueueEntry
	SetQueue(entries []domain.QueueEntry)
	AddToQueue(entries ...domain.QueueEntry) []domain.QueueEntry
	RemoveFromQueue(id string) []domain.QueueEntry
	ClearQueue()

	SaveResult(result domain.CheckResult, resultType domain.ResultType)
	GetResult() *domain.CheckResult
	GetResultType() domain.ResultType
	ClearResult()

	SaveProgressLog(events []domain.ProgressEvent)
	ProgressLog() []domain.ProgressEvent
	LastRunCompleted() bool

	Token() string
	SetToken(token string)
	User() *domain.User
	SetUser(user domain.User)
	Role() domain.Role
	SetRole(role domain.Role)
	ClearAuth()
}

// DocumentAPI is the backend document catalogue.
type DocumentAPI interface {
	ListDocuments(ctx context.Context) (domain.Fetched[[]domain.Document], error)
	UploadDocument(ctx context.Context, filename string, body io.Reader) (*domain.UploadedDocument, error)
	DeleteDocument(ctx context.Context, id string) error
}

// DetectionAPI triggers plagiarism detection runs on the backend.
type DetectionAPI interface {
	CheckByNames(ctx context.Context, filenames []string) (*domain.CheckResult, error)
	CheckAll(ctx context.Context) (*domain.CheckResult, error)
	ComparePair(ctx context.Context, file1, file2 string) (*domain.PairComparison, error)
}

// AuthAPI covers token issue and the current-user profile.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	CurrentUser(ctx context.Context) (domain.Fetched[domain.User], error)
}

// NotificationAPI reads and updates the user's notifications.
type NotificationAPI interface {
	ListNotifications(ctx context.Context) (domain.Fetched[[]domain.Notification], error)
	MarkNotificationRead(ctx context.Context, id int64) (domain.DataSource, error)
	MarkAllNotificationsRead(ctx context.Context) (domain.DataSource, error)
	DeleteNotification(ctx context.Context, id int64) (domain.DataSource, error)
	UpdateNotificationSettings(ctx context.Context, settings domain.NotificationSettings) (domain.Fetched[domain.NotificationSettings], error)
}

// AccountAPI updates the signed-in user's profile.
type AccountAPI interface {
	ChangePassword(ctx context.Context, change domain.PasswordChange) (string, error)
	UpdateMSV(ctx context.Context, msv string) error
	UploadAvatar(ctx context.Context, filename string, body io.Reader) error
}

// EndpointDiscoverer resolves and refreshes the backend base URL.
type EndpointDiscoverer interface {
	ResolveEndpoint() domain.APIEndpoint
	DiscoverAndCacheURL(ctx context.Context) (string, error)
}

// ProgressFeed streams backend progress lines for one check run.
type ProgressFeed interface {
	OnEvent(handler func(domain.FeedEvent))
	Open(ctx context.Context) error
	Close() error
}

// ProgressFeedFactory creates a fresh feed per run.
type ProgressFeedFactory interface {
	NewFeed() ProgressFeed
}

// DocumentInspector validates a local file before upload.
type DocumentInspector interface {
	Inspect(path string) (domain.FileInfo, error)
}

// ResultExporter writes a result to an external format.
type ResultExporter interface {
	Export(result domain.CheckResult, resultType domain.ResultType, w io.Writer) error
}

// CheckMetrics records orchestrator outcomes.
type CheckMetrics interface {
	RecordFeedEvent(kind string)
	RecordCheckRun(scope, status string, seconds float64)
}
