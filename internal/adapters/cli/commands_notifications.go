package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *CLI) runNotifications(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("notifications", args)
	if err != nil {
		return err
	}
	switch sub {
	case "list":
		return c.notificationsList(ctx, rest)
	case "settings":
		return c.notificationSettings(ctx, rest)
	case "read-all":
		source, err := c.svc.Notifications.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		c.notice(source)
		c.success("all notifications marked as read")
		return nil
	case "read", "delete":
		fs := c.flagSet("notifications " + sub)
		ids, err := parseArgs(fs, rest)
		if err != nil {
			return err
		}
		if len(ids) != 1 {
			return usageErrorf("notifications %s: exactly one id is required", sub)
		}
		id, err := strconv.ParseInt(ids[0], 10, 64)
		if err != nil {
			return usageErrorf("notifications %s: id must be a number, got %q", sub, ids[0])
		}

		var source domain.DataSource
		if sub == "read" {
			source, err = c.svc.Notifications.MarkRead(ctx, id)
		} else {
			source, err = c.svc.Notifications.Delete(ctx, id)
		}
		if err != nil {
			return err
		}
		c.notice(source)
		if sub == "read" {
			c.success("marked " + ids[0] + " as read")
		} else {
			c.success("deleted notification " + ids[0])
		}
		return nil
	default:
		return usageErrorf("notifications: unknown subcommand %q", sub)
	}
}

func (c *CLI) notificationsList(ctx context.Context, args []string) error {
	fs := c.flagSet("notifications list")
	unread := fs.Bool("unread", false, "only unread notifications")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}

	items, err := c.svc.Notifications.List(ctx)
	if err != nil {
		return err
	}
	c.notice(items.Source)

	list := items.Value
	if *unread {
		filtered := make([]domain.Notification, 0, len(list))
		for _, n := range list {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		list = filtered
	}

	return emit(c.stdout, *format, list, func() {
		if len(list) == 0 {
			c.empty("no notifications")
			return
		}
		c.empty(strconv.Itoa(domain.UnreadCount(items.Value)) + " unread")
		rows := make([][]string, 0, len(list))
		for _, n := range list {
			state := ""
			if !n.Read {
				state = "new"
			}
			rows = append(rows, []string{
				strconv.FormatInt(n.ID, 10),
				n.Type.Title(),
				n.Message,
				n.Timestamp.Local().Format("2006-01-02 15:04"),
				state,
			})
		}
		renderTable(c.stdout, []string{"ID", "Type", "Message", "Time", ""}, rows)
	})
}

// notificationSettings replaces both preferences at once, so both flags
// must be given.
func (c *CLI) notificationSettings(ctx context.Context, args []string) error {
	fs := c.flagSet("notifications settings")
	email := fs.Bool("email", false, "email notifications on or off")
	push := fs.Bool("push", false, "push notifications on or off")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["email"] || !set["push"] {
		return usageErrorf("notifications settings: both --email and --push are required")
	}

	saved, err := c.svc.Notifications.UpdateSettings(ctx, domain.NotificationSettings{
		EmailNotifications: *email,
		PushNotifications:  *push,
	})
	if err != nil {
		return err
	}
	c.notice(saved.Source)
	c.success(fmt.Sprintf("notification settings saved: email %s, push %s",
		onOff(saved.Value.EmailNotifications), onOff(saved.Value.PushNotifications)))
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
