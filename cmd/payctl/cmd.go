package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/roster"
	"github.com/mmynk/paytrack/internal/service"
	"github.com/mmynk/paytrack/internal/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in, run: payctl login -username NAME")
)

type commandLine struct {
	console *service.Console
	sess    *session.Manager
	loc     *time.Location
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                        - log in, the password is prompted next")
	fmt.Fprintln(cli.out, "  logout                                          - forget the stored token")
	fmt.Fprintln(cli.out, "  groups                                          - list groups")
	fmt.Fprintln(cli.out, "  roster -group GROUP [-month MONTH -year YEAR]   - list a group's users and their status")
	fmt.Fprintln(cli.out, "  paid|unpaid -group GROUP -user ID -month MONTH -year YEAR")
	fmt.Fprintln(cli.out, "                                                  - mark a user paid or unpaid")
	fmt.Fprintln(cli.out, "  history -group GROUP -user ID                   - show a user's payment history")
	fmt.Fprintln(cli.out, "  send -group GROUP -text TEXT (-users ID,ID | -all)")
	fmt.Fprintln(cli.out, "                                                  - message users of a group")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch cmd := args[1]; cmd {
	case "login":
		return cli.runLogin(ctx, args[2:])
	case "logout":
		if err := cli.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Logged out")
		return nil
	case "groups":
		if err := cli.requireLogin(ctx); err != nil {
			return err
		}
		return cli.listGroups(ctx)
	case "roster":
		return cli.runRoster(ctx, args[2:])
	case "paid", "unpaid":
		return cli.runMark(ctx, cmd, args[2:])
	case "history":
		return cli.runHistory(ctx, args[2:])
	case "send":
		return cli.runSend(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runLogin(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("login")
	uname := fs.String("username", "", "The admin's username. The password will be prompted next.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *uname == "" {
		fs.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if err := cli.sess.Login(ctx, *uname, string(pwd)); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged in")
	return nil
}

func (cli *commandLine) runRoster(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("roster")
	group := fs.String("group", "", "Group ID or name.")
	month := fs.String("month", "", "Month name, e.g. March. Overrides every row's period.")
	year := fs.Int("year", 0, "Year, e.g. 2024.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *group == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.openGroup(ctx, *group); err != nil {
		return err
	}
	return cli.printRoster(roster.Period{Month: *month, Year: *year})
}

func (cli *commandLine) runMark(ctx context.Context, cmd string, args []string) error {
	fs := cli.newFlagSet(cmd)
	group := fs.String("group", "", "Group ID or name.")
	user := fs.String("user", "", "User ID.")
	month := fs.String("month", "", "Month name, e.g. March.")
	year := fs.Int("year", 0, "Year, e.g. 2024.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *group == "" || *user == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.openGroup(ctx, *group); err != nil {
		return err
	}

	period := roster.Period{Month: *month, Year: *year}
	mark := cli.console.MarkPaid
	if cmd == "unpaid" {
		mark = cli.console.MarkUnpaid
	}
	if err := mark(ctx, *user, period); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Marked %s %s for %s\n", *user, cmd, dates.MonthKey(period.Month, period.Year))
	return nil
}

func (cli *commandLine) runHistory(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("history")
	group := fs.String("group", "", "Group ID or name.")
	user := fs.String("user", "", "User ID.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *group == "" || *user == "" {
		fs.Usage()
		return errHelp
	}
	if err := cli.openGroup(ctx, *group); err != nil {
		return err
	}

	events, err := cli.console.History(ctx, *user)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(cli.out, "No payment history")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tSTATUS\tDATE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.MonthKey, e.Status, cli.formatDate(e.Date))
	}
	return w.Flush()
}

func (cli *commandLine) runSend(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("send")
	group := fs.String("group", "", "Group ID or name.")
	text := fs.String("text", "", "Message text. The greeting is added per recipient.")
	users := fs.String("users", "", "Comma-separated user IDs.")
	all := fs.Bool("all", false, "Send to every user of the group.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *group == "" || (*users == "" && !*all) {
		fs.Usage()
		return errHelp
	}
	if err := cli.openGroup(ctx, *group); err != nil {
		return err
	}

	var (
		result *service.BroadcastResult
		err    error
		done   = service.MsgSentToAll
	)
	if *all {
		result, err = cli.console.SendToAll(ctx, *text)
	} else {
		for _, id := range strings.Split(*users, ",") {
			if id = strings.TrimSpace(id); id == "" {
				continue
			}
			if _, err := cli.console.Toggle(id); err != nil {
				return err
			}
		}
		result, err = cli.console.SendMessage(ctx, *text)
		done = service.MsgMessageSent
	}
	if err != nil {
		return err
	}
	if !result.OK() {
		return errors.New(result.Summary())
	}
	fmt.Fprintln(cli.out, done)
	return nil
}

func (cli *commandLine) requireLogin(ctx context.Context) error {
	if !cli.sess.LoggedIn(ctx) {
		return errNotLoggedIn
	}
	return nil
}

func (cli *commandLine) listGroups(ctx context.Context) error {
	groups, err := cli.console.LoadGroups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(cli.out, service.MsgNoGroups)
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\n", g.ID, g.Name)
	}
	return w.Flush()
}

// openGroup loads the groups and selects the one whose ID or name matches ref.
func (cli *commandLine) openGroup(ctx context.Context, ref string) error {
	if err := cli.requireLogin(ctx); err != nil {
		return err
	}
	groups, err := cli.console.LoadGroups(ctx)
	if err != nil {
		return err
	}
	id := ""
	for _, g := range groups {
		if g.ID == ref || strings.EqualFold(g.Name, ref) {
			id = g.ID
			break
		}
	}
	if id == "" {
		return fmt.Errorf("%w: %s", service.ErrUnknownGroup, ref)
	}
	return cli.console.SelectGroup(ctx, id)
}

func (cli *commandLine) printRoster(period roster.Period) error {
	snap := cli.console.Snapshot(period)
	if len(snap.Rows) == 0 {
		fmt.Fprintln(cli.out, service.MsgNoGroupUsers)
		return nil
	}
	if !snap.PaymentsLoaded {
		fmt.Fprintln(cli.out, "warning: payments unavailable, every user is shown as unpaid")
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tNAME\tSURNAME\tPHONE\tPERIOD\tSTATUS")
	for _, r := range snap.Rows {
		p := dates.Placeholder
		if r.Period.Complete() {
			p = dates.MonthKey(r.Period.Month, r.Period.Year)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Index, r.UserID, r.Name, r.Surname, r.Phone, p, r.StatusLabel)
	}
	return w.Flush()
}

func (cli *commandLine) formatDate(ts models.Timestamp) string {
	if !ts.Valid {
		return dates.Placeholder
	}
	return dates.FormatDate(ts.Time.In(cli.loc))
}
