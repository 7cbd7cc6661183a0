package ledger_test

import (
	"strings"
	"testing"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_WritesCurrentSchema(t *testing.T) {
	data, err := ledger.Marshal([]model.ExpenseRecord{testutil.Record(0)})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,date,payer,description,currency,foreign_amount,rate,local_amount", lines[0])
	assert.Equal(t, "rec-000,2025-03-01,minji,item 0,USD,1,1385.5,1385", lines[1])

	records, version, err := ledger.Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, ledger.SchemaCurrent, version)
	testutil.AssertRecordsEqual(t, []model.ExpenseRecord{testutil.Record(0)}, records)
}

func TestDecode_LegacySingleUser(t *testing.T) {
	legacy := "날짜,항목,통화,외화금액,환율,한국돈(원)\n" +
		"2025-01-05,편의점,USD,10.0,1300.0,13000\n" +
		"2025-01-06,라멘,🇯🇵 JPY,1000.0,900.0,9000\n"

	records, version, err := ledger.Decode(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, ledger.SchemaLegacy, version)
	require.Len(t, records, 2)

	assert.Equal(t, "편의점", records[0].Description)
	assert.Equal(t, currency.USD, records[0].Currency)
	assert.Equal(t, "2025-01-05", records[0].DateString())
	assert.Equal(t, "10", records[0].ForeignAmount.String())
	assert.Equal(t, int64(13000), records[0].LocalAmount)
	assert.Empty(t, records[0].Payer)

	assert.Equal(t, currency.JPY, records[1].Currency)
	assert.Equal(t, int64(9000), records[1].LocalAmount)

	assert.True(t, strings.HasPrefix(records[0].ID, "legacy-"))
	assert.NotEqual(t, records[0].ID, records[1].ID)

	again, _, err := ledger.Decode(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, again[0].ID, "legacy IDs must be stable across reads")
}

func TestDecode_LegacyWithPayerAndBOM(t *testing.T) {
	legacy := "\ufeff" + "날짜,결제자,항목,통화,외화금액,환율,한국돈(원)\n" +
		"2025-01-05 00:00:00,지수,택시,EUR,12.5,1500.25,18753\n" +
		",,,,,,\n"

	records, version, err := ledger.Decode(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, ledger.SchemaLegacy, version)
	require.Len(t, records, 1, "blank rows are skipped")
	assert.Equal(t, "지수", records[0].Payer)
	assert.Equal(t, "2025-01-05", records[0].DateString())
	assert.Equal(t, currency.EUR, records[0].Currency)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing columns", data: "date,description\n2025-01-01,x\n"},
		{name: "bad date", data: "날짜,항목,통화,외화금액,환율,한국돈(원)\nyesterday,x,USD,1,1,1\n"},
		{name: "bad currency", data: "날짜,항목,통화,외화금액,환율,한국돈(원)\n2025-01-01,x,GBP,1,1,1\n"},
		{name: "bad amount", data: "날짜,항목,통화,외화금액,환율,한국돈(원)\n2025-01-01,x,USD,ten,1,1\n"},
		{name: "unterminated quote", data: "id,date\n\"oops\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ledger.Decode(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, ledger.ErrCorruptLedger)
		})
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	records, version, err := ledger.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, ledger.SchemaCurrent, version)
	assert.Empty(t, records)

	records, err = ledger.Unmarshal([]byte(strings.Join(ledger.Header, ",") + "\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
