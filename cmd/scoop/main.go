// Command scoop prints the daily scoop, a month calendar or ground
// availability from a running PlayChrono API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/client"
	"playchrono/internal/config"
	"playchrono/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const usage = `usage: scoop <command> [flags]

commands:
  feed          notices and today's bookings
  calendar      month grid with bookable days marked
  availability  slot listing for a sport and date
  export        download the bookings workbook (admin)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("scoop: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()

	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("command is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "scoop").Logger()
	if os.Getenv("SCOOP_DEBUG") == "" {
		logger = logger.Level(zerolog.WarnLevel)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "feed":
		return runFeed(ctx, rest, out, &logger)
	case "calendar":
		return runCalendar(rest, out)
	case "availability":
		return runAvailability(ctx, rest, out, &logger)
	case "export":
		return runExport(ctx, rest, out, &logger)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newClient(baseURL string, logger *zerolog.Logger) *client.Client {
	c := client.New(baseURL, logger)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.UseRedisCache(repository.NewRedisClient(config.RedisConfig{Address: addr}), 10*time.Minute)
	}
	return c
}

func serverFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("PLAYCHRONO_URL")
	if def == "" {
		def = "http://localhost:8080"
	}
	return fs.String("server", def, "API base URL")
}

func runFeed(ctx context.Context, args []string, out io.Writer, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := newClient(*server, logger).Feed(ctx)
	if err != nil {
		return err
	}
	renderFeed(out, res)
	return nil
}

func runCalendar(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calendar", flag.ContinueOnError)
	month := fs.String("month", "", "month as YYYY-MM, current month when empty")
	window := fs.Int("window", 7, "bookable days starting today")
	if err := fs.Parse(args); err != nil {
		return err
	}

	today := calendar.Today(time.Now(), time.Local)
	year, m := today.Year, today.Month
	if *month != "" {
		t, err := time.Parse("2006-01", *month)
		if err != nil {
			return fmt.Errorf("invalid month %q: %w", *month, err)
		}
		year, m = t.Year(), t.Month()
	}

	cells, err := calendar.GenerateMonthGrid(year, m)
	if err != nil {
		return err
	}
	renderCalendar(out, year, m, cells, calendar.BookingWindow(today, *window))
	return nil
}

func runAvailability(ctx context.Context, args []string, out io.Writer, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("availability", flag.ContinueOnError)
	server := serverFlag(fs)
	sport := fs.String("sport", "", "sport type, e.g. football")
	date := fs.String("date", "", "date as YYYY-MM-DD, today when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*sport) == "" {
		return errors.New("-sport is required")
	}

	day := calendar.Today(time.Now(), time.Local)
	if *date != "" {
		parsed, err := calendar.ParseDate(*date)
		if err != nil {
			return err
		}
		day = parsed
	}

	view := client.NewAvailabilityView(newClient(*server, logger))
	defer view.Close()
	grounds, err := view.Load(ctx, client.Selection{Sport: *sport, Date: day})
	if err != nil {
		return err
	}
	renderAvailability(out, *sport, day, grounds)
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	server := serverFlag(fs)
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	dir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fromDate, err := calendar.ParseDate(*from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	toDate, err := calendar.ParseDate(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	email, password := os.Getenv("PLAYCHRONO_EMAIL"), os.Getenv("PLAYCHRONO_PASSWORD")
	if email == "" || password == "" {
		return errors.New("PLAYCHRONO_EMAIL and PLAYCHRONO_PASSWORD must be set")
	}

	session, err := newClient(*server, logger).Login(ctx, email, password)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Logout(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("logout")
		}
	}()

	data, err := session.ExportBookings(ctx, fromDate, toDate)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(*dir, exportFileName(fromDate, toDate))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %s (%d bytes)\n", path, len(data))
	return nil
}
