package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *CLI) runAccount(ctx context.Context, args []string) error {
	sub, rest, err := subcommand("account", args)
	if err != nil {
		return err
	}
	switch sub {
	case "password":
		return c.accountPassword(ctx, rest)
	case "msv":
		fs := c.flagSet("account msv")
		codes, err := parseArgs(fs, rest)
		if err != nil {
			return err
		}
		if len(codes) != 1 {
			return usageErrorf("account msv: exactly one student code is required")
		}
		if err := c.svc.Account.UpdateMSV(ctx, codes[0]); err != nil {
			return err
		}
		c.success("student code saved: " + strings.ToUpper(strings.TrimSpace(codes[0])))
		return nil
	case "avatar":
		fs := c.flagSet("account avatar")
		paths, err := parseArgs(fs, rest)
		if err != nil {
			return err
		}
		if len(paths) != 1 {
			return usageErrorf("account avatar: exactly one image file is required")
		}
		if err := c.svc.Account.UploadAvatar(ctx, paths[0]); err != nil {
			return err
		}
		c.success("avatar updated")
		return nil
	default:
		return usageErrorf("account: unknown subcommand %q", sub)
	}
}

// accountPassword reads missing passwords from stdin, old one first.
func (c *CLI) accountPassword(ctx context.Context, args []string) error {
	fs := c.flagSet("account password")
	oldPassword := fs.String("old", "", "current password (read from stdin when omitted)")
	newPassword := fs.String("new", "", "new password (read from stdin when omitted)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	reader := bufio.NewReader(c.stdin)
	prompt := func(label string, dst *string) {
		if *dst != "" {
			return
		}
		fmt.Fprint(c.stderr, label+": ")
		line, _ := reader.ReadString('\n')
		*dst = strings.TrimRight(line, "\r\n")
	}
	prompt("current password", oldPassword)
	prompt("new password", newPassword)

	msg, err := c.svc.Account.ChangePassword(ctx, domain.PasswordChange{OldPassword: *oldPassword, NewPassword: *newPassword})
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "password changed"
	}
	c.success(msg)
	return nil
}
