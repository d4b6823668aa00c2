package cli

import (
	"context"
	"fmt"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *CLI) runDocs(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("docs", args)
	if err != nil {
		return err
	}
	switch sub {
	case "list":
		return c.docsList(ctx, rest)
	case "upload":
		return c.docsUpload(ctx, rest)
	case "delete":
		return c.docsDelete(ctx, rest)
	default:
		return usageErrorf("docs: unknown subcommand %q", sub)
	}
}

func (c *CLI) docsList(ctx context.Context, args []string) error {
	fs := c.flagSet("docs list")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}

	docs, err := c.svc.Documents.List(ctx)
	if err != nil {
		return err
	}
	c.notice(docs.Source)

	queued := make(map[string]bool)
	for _, e := range c.svc.Queue.List() {
		queued[e.ID] = true
	}
	return emit(c.stdout, *format, docs.Value, func() {
		if len(docs.Value) == 0 {
			c.empty("no documents uploaded yet")
			return
		}
		rows := make([][]string, 0, len(docs.Value))
		for _, d := range docs.Value {
			uploaded := "-"
			if !d.UploadedAt.IsZero() {
				uploaded = d.UploadedAt.Format("2006-01-02 15:04")
			}
			mark := ""
			if queued[d.ID] {
				mark = "queued"
			}
			rows = append(rows, []string{d.ID, d.Filename, uploaded, mark})
		}
		renderTable(c.stdout, []string{"ID", "Filename", "Uploaded", ""}, rows)
	})
}

func (c *CLI) docsUpload(ctx context.Context, args []string) error {
	fs := c.flagSet("docs upload")
	paths, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return usageErrorf("docs upload: at least one file is required")
	}

	var failed int
	for _, path := range paths {
		uploaded, info, err := c.svc.Documents.Upload(ctx, path)
		if err != nil {
			failed++
			fmt.Fprintln(c.stderr, errorStyle.Render(fmt.Sprintf("%s: %s", path, describeError(err))))
			if domain.IsKind(err, domain.ErrUnauthorized) || domain.IsKind(err, domain.ErrNetwork) {
				return err
			}
			continue
		}
		c.success(fmt.Sprintf("uploaded %s (%d pages, id %s)", uploaded.Filename, info.Pages, uploaded.ID))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}

func (c *CLI) docsDelete(ctx context.Context, args []string) error {
	fs := c.flagSet("docs delete")
	ids, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return usageErrorf("docs delete: exactly one document id is required")
	}
	if err := c.svc.Documents.Delete(ctx, ids[0]); err != nil {
		return err
	}
	c.success("deleted " + ids[0])
	return nil
}

func (c *CLI) runQueue(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("queue", args)
	if err != nil {
		return err
	}
	fs := c.flagSet("queue " + sub)
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	refs, err := parseArgs(fs, rest)
	if err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}

	var queue []domain.QueueEntry
	switch sub {
	case "list":
		queue = c.svc.Queue.List()
	case "add":
		if queue, err = c.svc.Queue.Add(ctx, refs...); err != nil {
			return err
		}
	case "remove":
		if len(refs) != 1 {
			return usageErrorf("queue remove: exactly one document is required")
		}
		queue = c.svc.Queue.Remove(refs[0])
	case "clear":
		c.svc.Queue.Clear()
		c.success("queue cleared")
		return nil
	default:
		return usageErrorf("queue: unknown subcommand %q", sub)
	}

	return emit(c.stdout, *format, queue, func() {
		if len(queue) == 0 {
			c.empty("no documents queued")
			return
		}
		rows := make([][]string, 0, len(queue))
		for i, e := range queue {
			rows = append(rows, []string{fmt.Sprint(i + 1), e.ID, e.Filename})
		}
		renderTable(c.stdout, []string{"#", "ID", "Filename"}, rows)
	})
}
