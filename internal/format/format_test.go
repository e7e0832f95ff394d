package format

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zgpcy/omnicost/internal/provider"
)

var sample = []provider.CostRecord{
	{Date: "2025-04-01", Service: "Amazon EC2", Amount: 150.25, Currency: "USD", Region: "us-east-1"},
	{Date: "2025-04-01", Service: "Amazon S3", Amount: 67.8, Currency: "USD"},
}

func TestFormat_Empty(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			out, err := Render(nil, f)
			require.NoError(t, err)
			assert.Equal(t, "", out)

			out, err = Render([]provider.CostRecord{}, f)
			require.NoError(t, err)
			assert.Equal(t, "", out)
		})
	}
}

func TestFormat_TSV(t *testing.T) {
	out, err := Render(sample, TSV)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Date\tService\tAmount\tCurrency\tRegion",
		"2025-04-01\tAmazon EC2\t150.25\tUSD\tus-east-1",
		"2025-04-01\tAmazon S3\t67.80\tUSD\t",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestFormat_CSV(t *testing.T) {
	out, err := Render(sample, CSV)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Date,Service,Amount,Currency,Region",
		`2025-04-01,"Amazon EC2",150.25,USD,us-east-1`,
		`2025-04-01,"Amazon S3",67.80,USD,`,
	}, "\n")
	assert.Equal(t, want, out)
}

func TestFormat_CSVEscapesQuotes(t *testing.T) {
	out, err := Render([]provider.CostRecord{
		{Date: "2025-04-01", Service: `Say "hi"`, Amount: 1, Currency: "USD"},
	}, CSV)
	require.NoError(t, err)
	assert.Contains(t, out, `"Say ""hi"""`)
}

func TestFormat_Markdown(t *testing.T) {
	out, err := Render(sample, Markdown)
	require.NoError(t, err)

	want := strings.Join([]string{
		"| Date | Service | Amount | Currency | Region |",
		"|------|---------|--------|----------|--------|",
		"| 2025-04-01 | Amazon EC2 | 150.25 | USD | us-east-1 |",
		"| 2025-04-01 | Amazon S3 | 67.80 | USD |  |",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestFormat_Deterministic(t *testing.T) {
	for _, f := range Formats {
		first, err := Render(sample, f)
		require.NoError(t, err)
		second, err := Render(sample, f)
		require.NoError(t, err)
		assert.Equal(t, first, second, string(f))
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{150.25, "150.25"},
		{0, "0.00"},
		{1.005, "1.01"},
		{123.456, "123.46"},
		{42, "42.00"},
		{math.NaN(), "0.00"},
		{math.Inf(1), "0.00"},
		{math.Inf(-1), "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Amount(tt.in))
	}
}

func TestGet_Unsupported(t *testing.T) {
	_, err := Get(Format("xml"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported format: xml", err.Error())

	_, err = Render(sample, Format("pdf"))
	assert.Error(t, err)
}
