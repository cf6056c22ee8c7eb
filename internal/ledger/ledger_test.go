package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DropsEmptyAndRepeatedCodes(t *testing.T) {
	l := New([]string{"AB12", "", "CD34", "AB12"})
	assert.Equal(t, []string{"AB12", "CD34"}, l.Codes())
	assert.Equal(t, 2, l.Len())

	_, ok := l.Pending()
	assert.False(t, ok)
}

func TestLedger_ConfirmFresh(t *testing.T) {
	l := New(nil)
	l.SetPending("AB12")

	code, err := l.Confirm()
	require.NoError(t, err)
	assert.Equal(t, "AB12", code)
	assert.Equal(t, []string{"AB12"}, l.Codes())

	_, ok := l.Pending()
	assert.False(t, ok, "pending should be cleared after confirm")
}

func TestLedger_ConfirmDuplicate(t *testing.T) {
	l := New([]string{"AB12"})
	l.SetPending("AB12")

	code, err := l.Confirm()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Contains(t, err.Error(), "AB12")
	assert.Empty(t, code)
	assert.Equal(t, []string{"AB12"}, l.Codes())

	pending, ok := l.Pending()
	assert.True(t, ok, "pending survives a duplicate confirm")
	assert.Equal(t, "AB12", pending)
}

func TestLedger_ConfirmWithoutCandidate(t *testing.T) {
	l := New([]string{"X"})
	_, err := l.Confirm()
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, []string{"X"}, l.Codes())
}

func TestLedger_SetPendingOverwritesAndClears(t *testing.T) {
	l := New(nil)
	l.SetPending("A1")
	l.SetPending("B2")

	p, ok := l.Pending()
	require.True(t, ok)
	assert.Equal(t, "B2", p)

	l.SetPending("")
	_, ok = l.Pending()
	assert.False(t, ok)
}

func TestLedger_Discard(t *testing.T) {
	l := New(nil)
	l.SetPending("A1")
	l.Discard()

	_, err := l.Confirm()
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Zero(t, l.Len())
}

func TestLedger_Delete(t *testing.T) {
	l := New([]string{"A1", "B2", "C3"})

	require.NoError(t, l.Delete("B2"))
	assert.Equal(t, []string{"A1", "C3"}, l.Codes())

	err := l.Delete("ZZ")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.Equal(t, []string{"A1", "C3"}, l.Codes())
}

func TestLedger_DeleteAll(t *testing.T) {
	l := New([]string{"A1", "B2"})
	assert.Equal(t, 2, l.DeleteAll())
	assert.Empty(t, l.Codes())
	assert.Equal(t, 0, l.DeleteAll())
}

func TestLedger_CodesReturnsCopy(t *testing.T) {
	l := New([]string{"A1"})
	codes := l.Codes()
	codes[0] = "mutated"
	assert.Equal(t, []string{"A1"}, l.Codes())
}

func TestFormatExport(t *testing.T) {
	assert.Equal(t, "Saved codes:\nA1\nB2", FormatExport([]string{"A1", "B2"}, ExportOptions{}))
	assert.Equal(t, "No saved codes.", FormatExport(nil, ExportOptions{}))

	opts := ExportOptions{Header: "Coupons", EmptyText: "none"}
	assert.Equal(t, "Coupons\nA1", FormatExport([]string{"A1"}, opts))
	assert.Equal(t, "none", FormatExport([]string{}, opts))
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "coupons_2024-03-07.txt", ExportFilename(ts))
}
