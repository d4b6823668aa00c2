package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	Logout()
	WhoAmI(ctx context.Context) (domain.Fetched[domain.User], error)
	Authorize(action domain.Action) error
}

type DocumentService interface {
	List(ctx context.Context) (domain.Fetched[[]domain.Document], error)
	Upload(ctx context.Context, path string) (*domain.UploadedDocument, domain.FileInfo, error)
	Delete(ctx context.Context, id string) error
}

type CompareService interface {
	Compare(ctx context.Context, file1, file2 string) (*domain.PairComparison, error)
}

type NotificationService interface {
	List(ctx context.Context) (domain.Fetched[[]domain.Notification], error)
	MarkRead(ctx context.Context, id int64) (domain.DataSource, error)
	MarkAllRead(ctx context.Context) (domain.DataSource, error)
	Delete(ctx context.Context, id int64) (domain.DataSource, error)
	UpdateSettings(ctx context.Context, settings domain.NotificationSettings) (domain.Fetched[domain.NotificationSettings], error)
}

type AccountService interface {
	ChangePassword(ctx context.Context, change domain.PasswordChange) (string, error)
	UpdateMSV(ctx context.Context, msv string) error
	UploadAvatar(ctx context.Context, path string) error
}

type DiscoveryService interface {
	Endpoint() domain.APIEndpoint
	Discover(ctx context.Context) (domain.APIEndpoint, string, error)
}

// LiveView renders a check run interactively until it ends.
type LiveView func(ctx context.Context, runner ports.CheckRunner, scope domain.ResultType, in io.Reader, out io.Writer) (domain.CheckSnapshot, error)

type Services struct {
	Auth          AuthService
	Documents     DocumentService
	Queue         ports.QueueService
	Check         ports.CheckRunner
	Results       ports.ResultReader
	Compare       CompareService
	Notifications NotificationService
	Account       AccountService
	Discovery     DiscoveryService
}

type Options struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	LiveView LiveView
	Logger   *slog.Logger
}

type CLI struct {
	svc    Services
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	live   LiveView
	logger *slog.Logger
}

func New(svc Services, opts Options) *CLI {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &CLI{
		svc:    svc,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		live:   opts.LiveView,
		logger: opts.Logger,
	}
}

// Execute runs one command and returns the process exit code. Errors are
// printed to stderr in a user-facing form.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	err := c.Run(ctx, args)
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	c.logger.Debug("command_failed", "args", args, "error", err)
	fmt.Fprintln(c.stderr, errorStyle.Render("error: "+describeError(err)))
	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(c.stderr)
		c.usage(c.stderr)
	}
	return 1
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.usage(c.stdout)
		return nil
	}

	group, rest := args[0], args[1:]
	switch group {
	case "help", "-h", "--help":
		c.usage(c.stdout)
		return nil
	case "discover":
		return c.runDiscover(ctx, rest)
	case "login":
		return c.runLogin(ctx, rest)
	case "logout":
		return c.runLogout(rest)
	case "whoami":
		return c.runWhoAmI(ctx, rest)
	case "docs":
		return c.runDocs(ctx, rest)
	case "queue":
		return c.runQueue(ctx, rest)
	case "check":
		return c.runCheck(ctx, rest)
	case "results":
		return c.runResults(ctx, rest)
	case "compare":
		return c.runCompare(ctx, rest)
	case "notifications":
		return c.runNotifications(ctx, rest)
	case "account":
		return c.runAccount(ctx, rest)
	default:
		return usageErrorf("unknown command %q", group)
	}
}

func (c *CLI) usage(w io.Writer) {
	fmt.Fprint(w, `Usage: plagctl <command> [flags]

Commands:
  discover                          refresh the backend URL from the discovery endpoint
  login -u USER [-p PASSWORD]       sign in and store the session
  logout                            forget the stored session
  whoami                            show the signed-in user
  docs list|upload FILE...|delete ID
  queue list|add REF...|remove REF|clear
  check [--all] [--tui] [--timeout D]
  results show [--view pairs|documents] [--sort bert|fasttext|lsa|filename] [--asc]
               [--filter all|positive|negative] [--min N] [--limit N]
  results export --out FILE.xlsx
  results clear
  compare FILE1 FILE2
  notifications list [--unread]|read ID|read-all|delete ID
  notifications settings --email=BOOL --push=BOOL
  account password [--old OLD --new NEW]
  account msv CODE
  account avatar IMAGE

List commands accept --format table|json|yaml.
`)
}

func subcommand(group string, args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, usageErrorf("%s: missing subcommand", group)
	}
	return args[0], args[1:], nil
}

func (c *CLI) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// parseArgs lets flags appear before or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, usageErrorf("%s: %v", fs.Name(), err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
