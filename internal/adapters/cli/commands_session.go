package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *CLI) runDiscover(ctx context.Context, args []string) error {
	fs := c.flagSet("discover")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	before := c.svc.Discovery.Endpoint()
	endpoint, discovered, err := c.svc.Discovery.Discover(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, warnStyle.Render("discovery failed: "+describeError(err)))
	}
	if discovered == "" {
		fmt.Fprintf(c.stdout, "using %s (%s)\n", endpoint.URL, endpoint.Source)
		return nil
	}
	if discovered != before.URL {
		c.success(fmt.Sprintf("backend URL updated: %s", discovered))
	}
	fmt.Fprintf(c.stdout, "using %s (%s)\n", endpoint.URL, endpoint.Source)
	return nil
}

func (c *CLI) runLogin(ctx context.Context, args []string) error {
	fs := c.flagSet("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (read from stdin when omitted)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	if *password == "" && *username != "" {
		fmt.Fprint(c.stderr, "password: ")
		line, err := bufio.NewReader(c.stdin).ReadString('\n')
		if err != nil && line == "" {
			return usageErrorf("login: password is required")
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	user, err := c.svc.Auth.Login(ctx, domain.Credentials{Username: strings.TrimSpace(*username), Password: *password})
	if err != nil {
		return err
	}
	role := string(user.Role)
	if role == "" {
		role = "unknown role"
	}
	c.success(fmt.Sprintf("signed in as %s (%s)", user.Username, role))
	return nil
}

func (c *CLI) runLogout(args []string) error {
	fs := c.flagSet("logout")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	c.svc.Auth.Logout()
	c.success("signed out")
	return nil
}

func (c *CLI) runWhoAmI(ctx context.Context, args []string) error {
	fs := c.flagSet("whoami")
	format := fs.String("format", formatTable, "output format: table, json or yaml")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := validFormat(*format); err != nil {
		return err
	}

	profile, err := c.svc.Auth.WhoAmI(ctx)
	if err != nil {
		return err
	}
	c.notice(profile.Source)
	user := profile.Value
	return emit(c.stdout, *format, user, func() {
		rows := [][]string{
			{"username", user.Username},
			{"role", string(user.Role)},
		}
		if user.FullName != "" {
			rows = append(rows, []string{"name", user.FullName})
		}
		if user.Email != "" {
			rows = append(rows, []string{"email", user.Email})
		}
		if user.MSV != "" {
			rows = append(rows, []string{"msv", user.MSV})
		}
		renderTable(c.stdout, []string{"Field", "Value"}, rows)
	})
}
