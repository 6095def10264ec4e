package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/core"
	"pricewatch/internal/metrics"
	"pricewatch/internal/storage/memory"
)

func record(t *testing.T, l *Ledger, subject string, total float64, date string) core.InvoiceRecord {
	t.Helper()
	inv, err := l.RecordInvoice(Entry{Subject: subject, Total: total, Currency: "GBP", Date: date, Source: core.SourceRemote})
	require.NoError(t, err)
	return inv
}

func TestFirstOccurrence(t *testing.T) {
	l := New()
	inv := record(t, l, "Acme Foods", 42.5, "2024-01-05")

	assert.Equal(t, core.ChangeFirst, inv.Change.Kind)
	assert.Equal(t, "first occurrence", inv.Change.String())
	assert.Nil(t, inv.ChangePercent)
	assert.NotEmpty(t, inv.ID)

	rec, ok := l.Supplier("acme foods")
	require.True(t, ok)
	assert.Equal(t, 42.5, rec.TotalSpend)
	assert.Equal(t, 42.5, rec.LastInvoiceTotal)
	assert.Equal(t, 1, rec.InvoiceCount)
}

func TestAccumulation(t *testing.T) {
	l := New()
	totals := []float64{10.1, 20.2, 30.3, 0.07, 999.99}
	var want float64
	for _, v := range totals {
		record(t, l, "Brakes", v, "2024-01-01")
		want += v
	}

	rec, ok := l.Supplier("Brakes")
	require.True(t, ok)
	assert.InDelta(t, want, rec.TotalSpend, 1e-9)
	assert.Equal(t, 999.99, rec.LastInvoiceTotal)
	assert.GreaterOrEqual(t, rec.TotalSpend, rec.LastInvoiceTotal)
}

func TestNoChangeThreshold(t *testing.T) {
	t.Run("below one penny", func(t *testing.T) {
		l := New()
		record(t, l, "Bidfood", 100.00, "")
		inv := record(t, l, "Bidfood", 100.004, "")
		assert.Equal(t, core.ChangeNone, inv.Change.Kind)
		assert.Equal(t, "no change", inv.Change.String())
	})

	t.Run("two pence up", func(t *testing.T) {
		l := New()
		record(t, l, "Bidfood", 100.00, "")
		inv := record(t, l, "Bidfood", 100.02, "")
		assert.Equal(t, core.ChangeIncrease, inv.Change.Kind)
		assert.InDelta(t, 0.02, inv.Change.Delta, 1e-9)
		assert.Equal(t, "+£0.02", inv.Change.String())
		require.NotNil(t, inv.ChangePercent)
		assert.InDelta(t, 0.02, *inv.ChangePercent, 1e-9)
	})

	t.Run("decrease", func(t *testing.T) {
		l := New()
		record(t, l, "Bidfood", 50, "")
		inv := record(t, l, "Bidfood", 40, "")
		assert.Equal(t, core.ChangeDecrease, inv.Change.Kind)
		assert.Equal(t, "-£10.00", inv.Change.String())
		require.NotNil(t, inv.ChangePercent)
		assert.InDelta(t, -20, *inv.ChangePercent, 1e-9)
	})

	t.Run("zero decimal currency", func(t *testing.T) {
		l := New()
		_, err := l.RecordInvoice(Entry{Subject: "Tokyo Fish", Total: 1000, Currency: "JPY"})
		require.NoError(t, err)
		inv, err := l.RecordInvoice(Entry{Subject: "Tokyo Fish", Total: 1000.5, Currency: "JPY"})
		require.NoError(t, err)
		assert.Equal(t, core.ChangeNone, inv.Change.Kind)
	})
}

func TestChangePercentUndefinedForNonPositivePrior(t *testing.T) {
	l := New()
	record(t, l, "Refunds Ltd", 0, "")
	inv := record(t, l, "Refunds Ltd", 25, "")

	assert.Equal(t, core.ChangeIncrease, inv.Change.Kind)
	assert.Nil(t, inv.ChangePercent)

	record(t, l, "Credit Co", -10, "")
	inv = record(t, l, "Credit Co", 5, "")
	assert.Nil(t, inv.ChangePercent)
}

func TestDisplayNameKeepsFirstCasing(t *testing.T) {
	l := New()
	record(t, l, "ACME Foods", 1, "")
	inv := record(t, l, "  acme   foods ", 2, "")

	assert.Len(t, l.Subjects, 1)
	assert.Equal(t, "ACME Foods", inv.Subject)
	rec, _ := l.Supplier("Acme Foods")
	assert.Equal(t, "ACME Foods", rec.DisplayName)
}

func TestInvoicesAreNewestFirst(t *testing.T) {
	l := New()
	a := record(t, l, "A", 1, "2024-01-01")
	b := record(t, l, "B", 2, "2024-01-02")

	require.Len(t, l.Invoices, 2)
	assert.Equal(t, b.ID, l.Invoices[0].ID)
	assert.Equal(t, a.ID, l.Invoices[1].ID)
}

func TestRecordInvoiceGuards(t *testing.T) {
	l := New()
	_, err := l.RecordInvoice(Entry{Subject: "   ", Total: 1})
	assert.ErrorIs(t, err, core.ErrEmptySubject)

	_, err = l.RecordInvoice(Entry{Subject: "X", Total: math.Inf(1)})
	assert.ErrorIs(t, err, core.ErrInvalidTotal)
	assert.True(t, l.IsEmpty(), "rejected input must not touch the ledger")

	inv, err := l.RecordInvoice(Entry{Subject: "X", Total: 3, Currency: "??", Date: "yesterday"})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCurrency, inv.Currency)
	assert.Len(t, inv.Date, len("2006-01-02"))
	assert.Equal(t, core.SourcePlaceholder, inv.Source)
}

func TestLeaderboard(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		board := New().Leaderboard()
		assert.NotNil(t, board)
		assert.Empty(t, board)
		_, ok := New().TopSpender()
		assert.False(t, ok)
	})

	t.Run("descending by spend", func(t *testing.T) {
		l := New()
		record(t, l, "Thirty", 30, "")
		record(t, l, "Ten", 10, "")
		record(t, l, "Fifty", 50, "")

		board := l.Leaderboard()
		require.Len(t, board, 3)
		assert.Equal(t, []float64{50, 30, 10}, []float64{board[0].TotalSpend, board[1].TotalSpend, board[2].TotalSpend})

		top, ok := l.TopSpender()
		require.True(t, ok)
		assert.Equal(t, "Fifty", top.DisplayName)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		l := New()
		for _, name := range []string{"Zeta", "Alpha", "Mid", "Beta"} {
			record(t, l, name, 20, "")
		}
		record(t, l, "Mid", 5, "")

		board := l.Leaderboard()
		names := make([]string, len(board))
		for i, r := range board {
			names[i] = r.DisplayName
		}
		assert.Equal(t, []string{"Mid", "Zeta", "Alpha", "Beta"}, names)
	})
}

func TestMonthlyAggregate(t *testing.T) {
	l := New()
	record(t, l, "A", 10, "2024-01-05")
	record(t, l, "B", 5, "2024-01-20")
	record(t, l, "A", 7, "2024-02-01")

	assert.Equal(t, 15.0, l.MonthlyAggregate("2024-01"))
	assert.Equal(t, 7.0, l.MonthlyAggregate("2024-02"))
	assert.Equal(t, 0.0, l.MonthlyAggregate("2024-03"))
	assert.Len(t, l.InvoicesIn("2024-01"), 2)
}

func TestMonthOverMonthDelta(t *testing.T) {
	l := New()
	record(t, l, "A", 100, "2024-01-10")
	record(t, l, "A", 150, "2024-02-10")

	d, ok := l.MonthOverMonthDelta("2024-02", "2024-01")
	require.True(t, ok)
	assert.InDelta(t, 50, d, 1e-9)

	d, ok = l.MonthOverMonthDelta("2024-01", "2023-12")
	assert.False(t, ok)
	assert.False(t, math.IsNaN(d) || math.IsInf(d, 0))

	_, ok = New().MonthOverMonthDelta("2024-01", "2023-12")
	assert.False(t, ok)
}

func TestVATEstimate(t *testing.T) {
	assert.InDelta(t, 20, VATEstimate(120, DefaultVATRate), 1e-9)
	assert.InDelta(t, 0, VATEstimate(120, 0), 1e-9)
	assert.InDelta(t, 5, VATEstimate(105, 0.05), 1e-9)
	assert.Equal(t, 0.0, VATEstimate(100, -1))
}

func TestPreviousMonth(t *testing.T) {
	prev, err := PreviousMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", prev)

	prev, err = PreviousMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", prev)

	_, err = PreviousMonth("2024-13")
	assert.Error(t, err)
	assert.False(t, ValidMonth("January"))
}

func TestTopIncreaseAlert(t *testing.T) {
	items := func(price float64) []core.LineItem {
		return []core.LineItem{{Description: "Olive Oil 5L", UnitPrice: price}}
	}

	t.Run("line item tier wins over larger invoice increase", func(t *testing.T) {
		l := New()
		_, err := l.RecordInvoice(Entry{Subject: "Acme", Total: 100, Date: "2024-01-01", LineItems: items(10)})
		require.NoError(t, err)
		last, err := l.RecordInvoice(Entry{Subject: "Acme", Total: 200, Date: "2024-01-15", LineItems: items(11)})
		require.NoError(t, err)
		require.NotNil(t, last.ChangePercent)
		require.InDelta(t, 100, *last.ChangePercent, 1e-9)

		alert, ok := l.TopIncreaseAlert("")
		require.True(t, ok)
		assert.Equal(t, TierLineItem, alert.Tier)
		assert.Equal(t, "Olive Oil 5L", alert.Item)
		assert.InDelta(t, 10, alert.Percent, 1e-9)
		assert.Equal(t, 10.0, alert.OldPrice)
		assert.Equal(t, 11.0, alert.NewPrice)
		assert.Equal(t, last.ID, alert.InvoiceID)
	})

	t.Run("items match per supplier and case-insensitively", func(t *testing.T) {
		l := New()
		_, _ = l.RecordInvoice(Entry{Subject: "Acme", Total: 1, LineItems: []core.LineItem{{Description: "MILK", UnitPrice: 1}}})
		_, _ = l.RecordInvoice(Entry{Subject: "Other", Total: 1, LineItems: []core.LineItem{{Description: "milk", UnitPrice: 5}}})
		_, _ = l.RecordInvoice(Entry{Subject: "Acme", Total: 1, LineItems: []core.LineItem{{Description: "milk", UnitPrice: 1.5}}})

		alert, ok := l.TopIncreaseAlert("")
		require.True(t, ok)
		assert.Equal(t, TierLineItem, alert.Tier)
		assert.Equal(t, "Acme", alert.Subject)
		assert.InDelta(t, 50, alert.Percent, 1e-9)
	})

	t.Run("price compared to the most recent occurrence", func(t *testing.T) {
		l := New()
		for _, p := range []float64{10, 5, 6} {
			_, err := l.RecordInvoice(Entry{Subject: "Acme", Total: p, LineItems: items(p)})
			require.NoError(t, err)
		}
		alert, ok := l.TopIncreaseAlert("")
		require.True(t, ok)
		assert.Equal(t, TierLineItem, alert.Tier)
		assert.InDelta(t, 20, alert.Percent, 1e-9)
	})

	t.Run("invoice tier fallback", func(t *testing.T) {
		l := New()
		record(t, l, "A", 100, "2024-01-01")
		record(t, l, "B", 50, "2024-01-02")
		record(t, l, "A", 110, "2024-01-03")
		record(t, l, "B", 75, "2024-01-04")

		alert, ok := l.TopIncreaseAlert("")
		require.True(t, ok)
		assert.Equal(t, TierInvoice, alert.Tier)
		assert.Equal(t, "B", alert.Subject)
		assert.InDelta(t, 50, alert.Percent, 1e-9)
		assert.InDelta(t, 50, alert.OldPrice, 1e-9)
	})

	t.Run("invoice tier tie keeps the earliest", func(t *testing.T) {
		l := New()
		record(t, l, "A", 10, "2024-01-01")
		record(t, l, "B", 10, "2024-01-01")
		first := record(t, l, "A", 20, "2024-01-02")
		record(t, l, "B", 20, "2024-01-03")

		alert, ok := l.TopIncreaseAlert("")
		require.True(t, ok)
		assert.Equal(t, first.ID, alert.InvoiceID)
	})

	t.Run("scoped to month", func(t *testing.T) {
		l := New()
		record(t, l, "A", 10, "2024-01-01")
		record(t, l, "A", 20, "2024-02-01")

		_, ok := l.TopIncreaseAlert("2024-01")
		assert.False(t, ok)
		alert, ok := l.TopIncreaseAlert("2024-02")
		require.True(t, ok)
		assert.Equal(t, TierInvoice, alert.Tier)
	})

	t.Run("no increase", func(t *testing.T) {
		l := New()
		record(t, l, "A", 20, "")
		record(t, l, "A", 10, "")
		_, ok := l.TopIncreaseAlert("")
		assert.False(t, ok)
		_, ok = New().TopIncreaseAlert("")
		assert.False(t, ok)
	})
}

func TestSummarize(t *testing.T) {
	l := New()
	record(t, l, "A", 100, "2024-01-10")
	record(t, l, "B", 60, "2024-02-03")
	record(t, l, "A", 120, "2024-02-10")

	s := l.Summarize("2024-02", DefaultVATRate)
	assert.Equal(t, "2024-01", s.PreviousMonth)
	assert.Equal(t, 180.0, s.Spend)
	assert.Equal(t, 100.0, s.PreviousSpend)
	require.NotNil(t, s.DeltaPercent)
	assert.InDelta(t, 80, *s.DeltaPercent, 1e-9)
	assert.InDelta(t, 30, s.VAT, 1e-9)
	assert.Equal(t, 2, s.InvoiceCount)
	assert.Equal(t, "GBP", s.Currency)
	require.NotNil(t, s.TopSpender)
	assert.Equal(t, "A", s.TopSpender.DisplayName)
	require.NotNil(t, s.Alert)
	assert.Equal(t, "A", s.Alert.Subject)

	empty := New().Summarize("2024-02", DefaultVATRate)
	assert.Nil(t, empty.DeltaPercent)
	assert.Nil(t, empty.TopSpender)
	assert.Nil(t, empty.Alert)
	assert.Zero(t, empty.Spend)
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.NewStore(), nil, nil)

	l, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, l.IsEmpty())

	inv := record(t, l, "Acme", 12.5, "2024-01-05")
	_, err = l.RecordInvoice(Entry{Subject: "Acme", Total: 13, LineItems: []core.LineItem{{Description: "Eggs", UnitPrice: 2, Quantity: 6, Amount: 12}}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "alice", l))

	back, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, l.Leaderboard(), back.Leaderboard())
	got, ok := back.Invoice(inv.ID)
	require.True(t, ok)
	assert.Equal(t, inv, got)
	assert.True(t, back.Invoices[0].HasLineItems())

	other, err := repo.Load(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty(), "partitions must not leak")

	require.NoError(t, repo.Clear(ctx, "alice"))
	cleared, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
}

func TestRepositoryResetsCorruptState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.New()
	repo := NewRepository(store, nil, m)

	for _, payload := range []string{"{not json", `{"subjects":{"a":null}}`, `[]`} {
		require.NoError(t, store.Put(ctx, PartitionKey("guest"), []byte(payload)))
		l, err := repo.Load(ctx, "guest")
		require.NoError(t, err, payload)
		assert.True(t, l.IsEmpty(), payload)
		assert.NotNil(t, l.Subjects)
	}
}

func TestDecodeLegacyShape(t *testing.T) {
	l, err := Decode([]byte(`{"subjects":{"acme":{"display_name":"Acme","total_spend":5,"last_invoice_total":5}}}`))
	require.NoError(t, err)
	rec, ok := l.Supplier("ACME")
	require.True(t, ok)
	assert.Equal(t, "acme", rec.Key)
	assert.Equal(t, 5.0, rec.TotalSpend)
}
