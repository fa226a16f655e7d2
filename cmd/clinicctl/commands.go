package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"clinic-booking/internal/config"
	"clinic-booking/internal/grpcfeed"
	"clinic-booking/internal/lifecycle"
	"clinic-booking/internal/model"
	"clinic-booking/internal/session"
)

var errUsage = errors.New("invalid arguments")

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CLINIC_PASSWORD"), "password (or CLINIC_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("%w: -email and -password are required", errUsage)
	}

	resp, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	view := "appointments (all doctors)"
	if resp.User.Role == model.RoleDoctor {
		view = "doctor dashboard (your appointments)"
	}
	fmt.Printf("logged in as %s (%s); landing on %s\n", resp.User.Name, resp.User.Role, view)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

// window prefers the server's slots and day range, falling back to the
// local catalog file when the server cannot be asked.
func (a *app) window(ctx context.Context, local lifecycle.Window) lifecycle.Window {
	info, err := a.api.Catalog(ctx)
	if err != nil {
		a.log.WithError(err).Debug("catalog fetch failed, using local window")
		return local
	}
	w := local
	if len(info.Slots) > 0 {
		w.Slots = info.Slots
	}
	if info.WindowDays > 0 {
		w.Days = info.WindowDays
	}
	return w
}

func runBook(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	var f lifecycle.Form
	fs.StringVar(&f.FullName, "name", "", "patient full name")
	fs.StringVar(&f.Email, "email", "", "patient email")
	fs.StringVar(&f.Mobile, "mobile", "", "patient mobile number")
	fs.IntVar(&f.Age, "age", 0, "patient age")
	fs.StringVar(&f.Gender, "gender", "", "patient gender")
	fs.StringVar(&f.Service, "service", "", "service to book")
	fs.StringVar(&f.Date, "date", "", "day, YYYY-MM-DD")
	fs.StringVar(&f.TimeSlot, "slot", "", "time slot")
	fs.StringVar(&f.Address, "address", "", "patient address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	catalog, local, err := config.LoadCatalog(os.Getenv("CATALOG_PATH"))
	if err != nil {
		return err
	}
	w := a.window(ctx, local)

	// the date picker and slot list only offer valid choices
	if f.TimeSlot != "" {
		if err := w.CheckSlot(f.TimeSlot); err != nil {
			return fmt.Errorf("%w (choose one of: %s)", err, strings.Join(w.Slots, "; "))
		}
	}
	if f.Date != "" {
		if err := w.CheckDateString(f.Date, time.Now()); err != nil {
			first, last := w.Bounds(time.Now())
			return fmt.Errorf("%w (pick a day from %s to %s)", err,
				first.Format(model.DateLayout), last.Format(model.DateLayout))
		}
	}

	appt, err := lifecycle.NewBooker(catalog, a.api, a.log).Book(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("booked %s with %s on %s, %s (status %s)\n",
		appt.ID, orDash(appt.Doctor), appt.Date, appt.TimeSlot, appt.Status)
	return nil
}

func (a *app) board(ctx context.Context) (*lifecycle.Board, error) {
	b := lifecycle.NewBoard(a.log)
	if _, err := b.Refresh(ctx, lifecycle.FetcherFunc(a.api.MyAppointments)); err != nil {
		return nil, err
	}
	return b, nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "only this status")
	query := fs.String("q", "", "search patient, service or doctor")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	list := lifecycle.Filter{Status: model.Status(*status), Search: *query}.Apply(b.Snapshot())

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSLOT\tPATIENT\tSERVICE\tDOCTOR\tSTATUS")
	for _, ap := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ap.ID, ap.Date, ap.TimeSlot, ap.PatientName, ap.Service, orDash(ap.Doctor), ap.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d of %d appointments\n", len(list), b.Len())
	return nil
}

func decide(ctx context.Context, a *app, args []string, to model.Status) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected one appointment id", errUsage)
	}
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	if err := b.SetStatus(ctx, a.api, args[0], to); err != nil {
		return err
	}
	fmt.Printf("appointment %s is now %s\n", args[0], to)
	return nil
}

func runAccept(ctx context.Context, a *app, args []string) error {
	return decide(ctx, a, args, model.StatusConfirmed)
}

func runReject(ctx context.Context, a *app, args []string) error {
	return decide(ctx, a, args, model.StatusCancelled)
}

// runWatch polls until interrupted. With CLINIC_GRPC_ADDR set it counts
// over the gRPC feed instead of downloading the list every tick.
func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", a.cfg.PollInterval, "poll interval")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, err := a.sess.Current(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return fmt.Errorf("not logged in")
		}
		return err
	}

	var src lifecycle.Counter
	if a.cfg.GRPCAddr != "" {
		feed, err := grpcfeed.Dial(a.cfg.GRPCAddr, a.sess)
		if err != nil {
			return err
		}
		defer feed.Close()
		src = feed.CounterFor(s.DoctorID)
	} else {
		src = lifecycle.BoardCounter(lifecycle.NewBoard(a.log), lifecycle.FetcherFunc(a.api.MyAppointments))
	}

	p := lifecycle.NewPoller(src, func(ev lifecycle.CountIncreased) {
		fmt.Printf("%s  new appointment received (%d -> %d)\n", ev.At.Format(time.Kitchen), ev.Old, ev.New)
	}, lifecycle.PollerConfig{Interval: *interval}, a.log)

	if err := p.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("watching every %s, press Ctrl-C to stop\n", *interval)
	<-ctx.Done()
	p.Stop()
	return nil
}

func runCatalog(ctx context.Context, a *app, _ []string) error {
	catalog, local, err := config.LoadCatalog(os.Getenv("CATALOG_PATH"))
	if err != nil {
		return err
	}
	w := a.window(ctx, local)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tDOCTOR")
	for _, svc := range catalog.Services() {
		fmt.Fprintf(tw, "%s\t%s\n", svc, orDash(catalog.Resolve(svc)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	first, last := w.Bounds(time.Now())
	fmt.Printf("\nslots: %s\nbookable days: %s to %s\n", strings.Join(w.Slots, "; "),
		first.Format(model.DateLayout), last.Format(model.DateLayout))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
