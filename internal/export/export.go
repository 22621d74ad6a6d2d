// Package export renders ledger records for people: CSV for spreadsheets
// and a plain-text invoice per session.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"parking-facility/internal/parking"
)

const TimeLayout = "2006-01-02 15:04:05"

// Header is the fixed column order of every export.
var Header = []string{
	"Vehicle Number",
	"Owner",
	"Category",
	"Slot ID",
	"Entry Time",
	"Exit Time",
	"Duration",
	"Fee",
}

// FormatDuration renders whole minutes as "45m" or "1h 05m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func row(r parking.HistoryRecord) []string {
	return []string{
		r.VehiclePlate,
		r.OwnerName,
		r.Category.String(),
		strconv.Itoa(r.SlotID),
		r.EntryTime.Format(TimeLayout),
		r.ExitTime.Format(TimeLayout),
		FormatDuration(r.Duration()),
		strconv.FormatInt(r.Fee, 10),
	}
}

// WriteCSV writes the header and one row per record in the given order.
func WriteCSV(w io.Writer, records []parking.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Invoice is a printable bill. Provisional invoices are quotes for a
// session that is still parked.
type Invoice struct {
	Record      parking.HistoryRecord
	Provisional bool
}

func NewInvoice(r parking.HistoryRecord) Invoice {
	return Invoice{Record: r}
}

// QuoteInvoice bills a live session as if it left at now.
func QuoteInvoice(s parking.Session, now time.Time, fee int64) Invoice {
	d := s.Elapsed(now)
	return Invoice{
		Record: parking.HistoryRecord{
			VehiclePlate: s.VehiclePlate,
			OwnerName:    s.OwnerName,
			Category:     s.Category,
			SlotID:       s.SlotID,
			EntryTime:    s.EntryTime,
			ExitTime:     now,
			DurationMs:   d.Milliseconds(),
			Fee:          fee,
		},
		Provisional: true,
	}
}

func (inv Invoice) String() string {
	var b strings.Builder
	_, _ = inv.WriteTo(&b)
	return b.String()
}

func (inv Invoice) WriteTo(w io.Writer) (int64, error) {
	title := "PARKING INVOICE"
	if inv.Provisional {
		title = "PARKING INVOICE (PROVISIONAL)"
	}
	owner := inv.Record.OwnerName
	if owner == "" {
		owner = "-"
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n")
	values := row(inv.Record)
	values[1] = owner
	for i, label := range Header {
		fmt.Fprintf(&b, "%-15s %s\n", label+":", values[i])
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
