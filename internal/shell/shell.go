// Package shell is the interactive line interface to a facility.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/export"
	"parking-facility/internal/facility"
	"parking-facility/internal/parking"
	"parking-facility/internal/telemetry"
)

const (
	defaultHistoryLimit = 10
	defaultStatsDays    = 7
)

const helpText = `Commands:
  park <CAR|BIKE|TRUCK> <plate> [owner...]  park a vehicle
  leave <slot>                              release a slot and bill it
  status                                    list occupied slots
  find <plate>                              slot number of a parked vehicle
  history [n]                               last n closed sessions (default 10)
  stats [days]                              revenue and counts (default 7 days)
  export                                    history as CSV
  invoice <slot>                            provisional invoice for a parked vehicle
  reset                                     empty the facility and its history
  help                                      this text
  exit                                      quit
`

type Shell struct {
	facility *facility.Facility
	tracer   trace.Tracer
	scanner  *bufio.Scanner
	out      io.Writer
}

func New(f *facility.Facility, tp *telemetry.Provider, in io.Reader, out io.Writer) *Shell {
	if tp == nil {
		tp = telemetry.NewNoopProvider()
	}
	return &Shell{
		facility: f,
		tracer:   tp.Tracer(),
		scanner:  bufio.NewScanner(in),
		out:      out,
	}
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// Run reads commands until EOF, "exit" or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil && s.scanner.Scan() {
		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		cmdCtx, cmdSpan := s.tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.Execute(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

// Execute runs a single command line.
func (s *Shell) Execute(ctx context.Context, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("command.name", command))

	switch command {
	case "park":
		s.handlePark(ctx, parts)
	case "leave":
		s.handleLeave(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	case "find":
		s.handleFind(ctx, parts)
	case "history":
		s.handleHistory(ctx, parts)
	case "stats":
		s.handleStats(ctx, parts)
	case "export":
		s.handleExport(ctx)
	case "invoice":
		s.handleInvoice(ctx, parts)
	case "reset":
		s.handleReset(ctx)
	case "help":
		s.printf("%s", helpText)
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		s.printf("Unknown command: %s\n", command)
	}
}

// describe turns a domain error into the message shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, parking.ErrCapacityExhausted):
		return "Sorry, parking facility is full"
	case errors.Is(err, parking.ErrDuplicateVehicle):
		return "Vehicle is already parked"
	case errors.Is(err, parking.ErrUnknownSlot):
		return "No such slot"
	case errors.Is(err, parking.ErrInvalidState):
		return "Slot is already empty"
	case errors.Is(err, parking.ErrVehicleNotFound):
		return "Not found"
	case errors.Is(err, parking.ErrUnknownCategory):
		return "Unknown category, expected CAR, BIKE or TRUCK"
	case errors.Is(err, facility.ErrPersist):
		return "Could not save, nothing was changed"
	default:
		return "Error: " + err.Error()
	}
}

func (s *Shell) handlePark(ctx context.Context, parts []string) {
	if len(parts) < 3 {
		s.println("Usage: park <CAR|BIKE|TRUCK> <plate> [owner...]")
		return
	}

	category, err := parking.ParseCategory(parts[1])
	if err != nil {
		s.println(describe(err))
		return
	}
	owner := strings.Join(parts[3:], " ")

	slot, err := s.facility.Allocate(ctx, parking.NewVehicle(parts[2], owner, category))
	if err != nil {
		s.println(describe(err))
		return
	}

	s.printf("Allocated slot number: %d (%s)\n", slot.ID, slot.Category)
}

func (s *Shell) slotArg(parts []string, usage string) (int, bool) {
	if len(parts) != 2 {
		s.println("Usage: " + usage)
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		s.println("Invalid slot number")
		return 0, false
	}
	return id, true
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) {
	id, ok := s.slotArg(parts, "leave <slot>")
	if !ok {
		return
	}

	record, err := s.facility.Release(ctx, id)
	if err != nil {
		s.println(describe(err))
		return
	}

	s.printf("Slot number %d is free. Duration: %s, fee: %d\n",
		id, export.FormatDuration(record.Duration()), record.Fee)
}

func (s *Shell) handleStatus(ctx context.Context) {
	occupied := s.facility.Occupied(ctx)
	stats := s.facility.Occupancy(ctx)
	if len(occupied) == 0 {
		s.printf("Parking facility is empty (%d slots free)\n", stats.Free)
		return
	}

	now := s.facility.Now()
	fees := s.facility.Fees()

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Slot\tCategory\tPlate\tOwner\tElapsed\tFee")
	for _, slot := range occupied {
		elapsed := slot.Session.Elapsed(now)
		fee, _ := fees.ComputeFee(elapsed.Milliseconds())
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			slot.ID, slot.Category, slot.Session.VehiclePlate, slot.Session.OwnerName,
			export.FormatDuration(elapsed), fee)
	}
	tw.Flush()
	s.printf("%d of %d slots occupied\n", stats.Occupied, stats.Capacity)
}

func (s *Shell) handleFind(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.println("Usage: find <plate>")
		return
	}

	slot, err := s.facility.FindByPlate(ctx, parts[1])
	if err != nil {
		s.println(describe(err))
		return
	}
	s.printf("%d\n", slot.ID)
}

func (s *Shell) handleHistory(ctx context.Context, parts []string) {
	limit := defaultHistoryLimit
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			s.println("Usage: history [n]")
			return
		}
		limit = n
	}

	records := s.facility.LedgerSnapshot(ctx, limit)
	if len(records) == 0 {
		s.println("No history yet")
		return
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPlate\tCategory\tSlot\tExit\tDuration\tFee")
	for i, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%d\n",
			i, r.VehiclePlate, r.Category, r.SlotID,
			r.ExitTime.Format(export.TimeLayout), export.FormatDuration(r.Duration()), r.Fee)
	}
	tw.Flush()
}

func (s *Shell) handleStats(ctx context.Context, parts []string) {
	days := defaultStatsDays
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			s.println("Usage: stats [days]")
			return
		}
		days = n
	}

	summary, err := s.facility.Analytics(ctx, days)
	if err != nil {
		s.printf("Days must be between 1 and %d\n", parking.MaxDaysBack)
		return
	}

	s.printf("Total revenue: %d\n", summary.TotalRevenue)
	s.printf("Average stay: %s\n", export.FormatDuration(time.Duration(summary.AverageDurationMs) * time.Millisecond))
	s.printf("Vehicles today: %d\n", summary.VehiclesToday)
	s.printf("Occupied: %d of %d\n", summary.Occupancy.Occupied, summary.Occupancy.Capacity)
	for _, c := range parking.AllCategories {
		s.printf("%s: %d\n", c, summary.Counts[c])
	}
	for _, d := range summary.RevenueByDay {
		s.printf("%s  %d (%d vehicles)\n", d.Day.Format(time.DateOnly), d.Revenue, d.Vehicles)
	}
}

func (s *Shell) handleExport(ctx context.Context) {
	if err := export.WriteCSV(s.out, s.facility.LedgerSnapshot(ctx, 0)); err != nil {
		s.println(describe(err))
	}
}

func (s *Shell) handleInvoice(ctx context.Context, parts []string) {
	id, ok := s.slotArg(parts, "invoice <slot>")
	if !ok {
		return
	}

	q, err := s.facility.Quote(ctx, id)
	if err != nil {
		s.println(describe(err))
		return
	}
	_, _ = export.QuoteInvoice(q.Session, q.At, q.Fee).WriteTo(s.out)
}

func (s *Shell) handleReset(ctx context.Context) {
	if err := s.facility.Reset(ctx); err != nil {
		s.println(describe(err))
		return
	}
	s.println("Facility reset")
}
