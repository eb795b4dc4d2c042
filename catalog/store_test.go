package catalog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The pgx store must satisfy every consumer-facing interface.
var (
	_ TypeStore  = (*Store)(nil)
	_ PriceStore = (*Store)(nil)
	_ MailStore  = (*Store)(nil)
	_ UserStore  = (*Store)(nil)
)

func TestMigrationsCoverEveryTable(t *testing.T) {
	joined := ""
	for _, stmt := range migrations {
		joined += stmt + "\n"
	}

	for _, table := range []string{
		"instance_family", "instance_list", "instance_pricing",
		"authorized_users", "inbound_email", "dmarc_records",
	} {
		assert.Contains(t, joined, table)
	}
}

// Needs a reachable Postgres; set TEST_DATABASE_URL to run.
func TestUpsertPriceKeepsNewestTimestamp(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	name := fmt.Sprintf("t%d.large", time.Now().UnixNano())
	newer := time.Now().UTC().Truncate(time.Microsecond)
	older := newer.Add(-time.Hour)

	require.NoError(t, store.UpsertPrice(ctx, name, PriceOnDemand, 0.10, newer))
	require.NoError(t, store.UpsertPrice(ctx, name, PriceOnDemand, 0.05, older))

	rows, err := store.ListPrices(ctx)
	require.NoError(t, err)

	var got *PriceObservation
	for i := range rows {
		if rows[i].InstanceType == name {
			require.Nil(t, got, "duplicate row for %s", name)
			got = &rows[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, 0.10, got.Price)
	assert.True(t, got.Timestamp.Equal(newer), "stale upsert clobbered %v with %v", newer, got.Timestamp)

	// Equal timestamps still take the incoming price.
	require.NoError(t, store.UpsertPrice(ctx, name, PriceOnDemand, 0.12, newer))
	rows, err = store.ListPrices(ctx)
	require.NoError(t, err)
	for _, row := range rows {
		if row.InstanceType == name {
			assert.Equal(t, 0.12, row.Price)
		}
	}
}

func TestPriceKindConstants(t *testing.T) {
	assert.Equal(t, "ondemand", PriceOnDemand)
	assert.Equal(t, "reserved", PriceReserved)
	assert.Equal(t, "spot", PriceSpot)
}
