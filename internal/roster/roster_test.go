package roster

import (
	"testing"
	"time"

	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/reconcile"
)

func paidEvent(key string, date time.Time) models.PaymentEvent {
	ts := models.Timestamp{}
	if !date.IsZero() {
		ts = models.NewTimestamp(date)
	}
	return models.PaymentEvent{Status: models.StatusPaid, MonthKey: key, Date: ts}
}

func TestBuildSortsUnpaidFirst(t *testing.T) {
	users := []models.User{
		{ID: "1", Name: "A", GroupID: "g"},
		{ID: "2", Name: "B", GroupID: "g"},
		{ID: "3", Name: "C", GroupID: "g"},
	}
	status := reconcile.Reconcile(models.Payments{
		"1": {History: []models.PaymentEvent{paidEvent("March-2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))}},
	})

	rows := Build(users, status, nil, Options{GroupID: "g"})

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.UserID
	}
	want := []string{"2", "3", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row order = %v, want %v", got, want)
		}
	}
	for i, r := range rows {
		if r.Index != i+1 {
			t.Errorf("row %d index = %d", i, r.Index)
		}
	}
}

func TestBuildFiltersByGroup(t *testing.T) {
	users := []models.User{
		{ID: "1", GroupID: "g1"},
		{ID: "2", GroupID: "g2"},
		{ID: "3"},
		{ID: "4", GroupID: "g1"},
	}

	rows := Build(users, reconcile.Reconcile(nil), nil, Options{GroupID: "g1"})
	if len(rows) != 2 || rows[0].UserID != "1" || rows[1].UserID != "4" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if rows := Build(users, reconcile.Reconcile(nil), nil, Options{}); len(rows) != 0 {
		t.Errorf("expected no rows without a group, got %d", len(rows))
	}
}

func TestBuildPrefillsLatestPaidMonth(t *testing.T) {
	users := []models.User{{ID: "1", Name: "Ali", GroupID: "g"}}
	status := reconcile.Reconcile(models.Payments{
		"1": {History: []models.PaymentEvent{
			paidEvent("February-2024", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)),
			paidEvent("March-2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		}},
	})

	rows := Build(users, status, nil, Options{GroupID: "g"})
	row := rows[0]
	if row.Period != (Period{Month: "March", Year: 2024}) {
		t.Errorf("Period = %+v, want March 2024", row.Period)
	}
	if row.State != RowPaid || row.StatusLabel != "05/03/2024" {
		t.Errorf("status = %s %q, want paid 05/03/2024", row.State, row.StatusLabel)
	}
}

func TestBuildStatusLabels(t *testing.T) {
	users := []models.User{{ID: "1", GroupID: "g"}}
	status := reconcile.Reconcile(models.Payments{
		"1": {History: []models.PaymentEvent{
			paidEvent("March-2024", time.Time{}),
			{Status: models.StatusUnpaid, MonthKey: "April-2024"},
		}},
	})

	tests := []struct {
		name      string
		period    Period
		wantState RowState
		wantLabel string
	}{
		{"undated paid", Period{Month: "March", Year: 2024}, RowPaid, LabelPaid},
		{"explicit unpaid", Period{Month: "April", Year: 2024}, RowUnpaid, LabelUnpaid},
		{"never written", Period{Month: "May", Year: 2024}, RowUnpaid, LabelUnpaid},
		{"month only", Period{Month: "May"}, RowUnset, LabelUnset},
		{"year only", Period{Year: 2024}, RowUnset, LabelUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Build(users, status, nil, Options{GroupID: "g", Period: tt.period})
			if rows[0].State != tt.wantState || rows[0].StatusLabel != tt.wantLabel {
				t.Errorf("got %s %q, want %s %q", rows[0].State, rows[0].StatusLabel, tt.wantState, tt.wantLabel)
			}
			if rows[0].Period != tt.period {
				t.Errorf("Period = %+v, want %+v", rows[0].Period, tt.period)
			}
		})
	}
}

func TestBuildWithoutPaymentsIsUnpaid(t *testing.T) {
	users := []models.User{{ID: "1", GroupID: "g"}, {ID: "2", GroupID: "g"}}
	rows := Build(users, reconcile.Reconcile(nil), nil, Options{GroupID: "g"})
	for _, r := range rows {
		if r.Paid || r.State != RowUnpaid || r.StatusLabel != LabelUnpaid {
			t.Errorf("row %s: got paid=%v state=%s label=%q", r.UserID, r.Paid, r.State, r.StatusLabel)
		}
		if !r.Period.IsZero() {
			t.Errorf("row %s: expected unset selectors, got %+v", r.UserID, r.Period)
		}
	}
}

func TestBuildMarksSelection(t *testing.T) {
	users := []models.User{{ID: "1", GroupID: "g"}, {ID: "2", GroupID: "g"}}
	sel := NewSelection()
	sel.Set("2", true)

	rows := Build(users, reconcile.Reconcile(nil), sel, Options{GroupID: "g"})
	if rows[0].Selected || !rows[1].Selected {
		t.Errorf("unexpected selection: %v %v", rows[0].Selected, rows[1].Selected)
	}
}

func TestBuildFormatsInLocation(t *testing.T) {
	users := []models.User{{ID: "1", GroupID: "g"}}
	status := reconcile.Reconcile(models.Payments{
		"1": {History: []models.PaymentEvent{paidEvent("March-2024", time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC))}},
	})

	rows := Build(users, status, nil, Options{GroupID: "g", Location: time.FixedZone("UZT", 5*60*60)})
	if rows[0].StatusLabel != "05/03/2024" {
		t.Errorf("StatusLabel = %q, want 05/03/2024", rows[0].StatusLabel)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"901234567", "+998901234567"},
		{"+998901234567", "+998901234567"},
		{" 901234567 ", "+998901234567"},
		{"", "N/A"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if DisplayName("") != "-" || DisplayName("  ") != "-" {
		t.Error("expected placeholder for blank names")
	}
	if DisplayName("Ali") != "Ali" {
		t.Error("expected name to pass through")
	}
}
