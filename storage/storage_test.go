package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }
func floatPtr(f float64) *float64 { return &f }

func sampleRecords() []models.ListingRecord {
	return []models.ListingRecord{
		{
			Model:          "VW Golf 2.0 TSI GTI",
			Price:          12345.67,
			Mileage:        intPtr(84500),
			PowerHP:        intPtr(245),
			PowerMode:      "Benzin",
			ProductionDate: "03.2019",
			Consumption:    floatPtr(6.8),
			Transmission:   "Automat",
			URL:            "https://www.autoscout24.ch/de/d/vw-golf-12345",
		},
		{
			Model:          "Tesla Model 3, \"Long Range\"",
			Price:          38900,
			PowerMode:      "Elektro",
			ProductionDate: models.NewVehicle,
			Transmission:   models.Missing,
			URL:            "https://www.autoscout24.ch/de/d/tesla-model-3-67890",
		},
	}
}

func TestCSVSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	sink := NewCSVSink(path)
	want := sampleRecords()

	require.NoError(t, sink.Write(context.Background(), want))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0], got[0])
	assert.InDelta(t, 12345.67, got[0].Price, 1e-9)
	assert.Equal(t, 84500, *got[0].Mileage)

	// unresolved secondary fields come back as nil / N/A
	assert.Nil(t, got[1].Mileage)
	assert.Nil(t, got[1].Consumption)
	assert.Equal(t, models.Missing, got[1].Transmission)
	assert.Equal(t, want[1].Model, got[1].Model)
}

func TestCSVSink_AppendKeepsOneHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	sink := NewCSVSink(path)
	records := sampleRecords()

	require.NoError(t, sink.Write(context.Background(), records[:1]))
	require.NoError(t, sink.Write(context.Background(), records[1:]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), strings.Join(models.Columns, ",")))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCSVSink_EmptyWriteCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, NewCSVSink(path).Write(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(models.Columns, ",")+"\n", string(data))
}

func TestCSVSink_RefusesForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,price\nx,1\n"), 0o644))

	err := NewCSVSink(path).Write(context.Background(), sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadCSV_Missing(t *testing.T) {
	got, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSeenFromCSV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, NewCSVSink(path).Write(ctx, sampleRecords()))

	seen, err := SeenFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, seen.Len())

	ok, err := seen.Seen(ctx, "https://www.autoscout24.ch/de/d/vw-golf-12345")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = seen.Seen(ctx, "https://www.autoscout24.ch/de/d/other-1")
	assert.False(t, ok)
}

func TestMemorySeen(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeen("a")
	require.NoError(t, s.Add(ctx, "b", "c", "a"))
	assert.Equal(t, 3, s.Len())
	ok, _ := s.Seen(ctx, "c")
	assert.True(t, ok)
}

type fakeSink struct {
	name    string
	err     error
	written int
	closed  bool
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSink) Write(_ context.Context, records []models.ListingRecord) error {
	if f.err != nil {
		return f.err
	}
	f.written += len(records)
	return nil
}

var _ Sink = (*fakeSink)(nil)

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	records := sampleRecords()

	t.Run("all succeed", func(t *testing.T) {
		p, s := &fakeSink{name: "p"}, &fakeSink{name: "s"}
		require.NoError(t, NewMultiSink(p, s).Write(ctx, records))
		assert.Equal(t, 2, p.written)
		assert.Equal(t, 2, s.written)
	})

	t.Run("primary failure skips secondaries", func(t *testing.T) {
		p, s := &fakeSink{name: "p", err: errors.New("disk full")}, &fakeSink{name: "s"}
		err := NewMultiSink(p, s).Write(ctx, records)
		assert.True(t, models.IsKind(err, models.ErrKindStorage))
		assert.Zero(t, s.written)
	})

	t.Run("secondary failure still writes the rest", func(t *testing.T) {
		p := &fakeSink{name: "p"}
		bad, good := &fakeSink{name: "bad", err: errors.New("conn refused")}, &fakeSink{name: "good"}
		require.NoError(t, NewMultiSink(p, bad, good).Write(ctx, records))
		assert.Equal(t, 2, p.written)
		assert.Equal(t, 2, good.written)
	})

	t.Run("close reaches every sink", func(t *testing.T) {
		p, s := &fakeSink{name: "p"}, &fakeSink{name: "s"}
		require.NoError(t, NewMultiSink(p, s).Close())
		assert.True(t, p.closed)
		assert.True(t, s.closed)
	})
}

func TestMultiSeen(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemorySeen("x"), NewMemorySeen()
	ms := MultiSeen{a, b}

	ok, err := ms.Seen(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ms.Add(ctx, "y"))
	ok, _ = b.Seen(ctx, "y")
	assert.True(t, ok)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	stream := "autoscout_test_stream_" + time.Now().Format("150405.000000")
	seenKey := stream + ":seen"
	defer client.Del(ctx, stream, seenKey)

	store := newRedisStore(client, stream, seenKey)
	records := sampleRecords()
	require.NoError(t, store.Write(ctx, records))

	n, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	assert.Equal(t, records[0].URL, entries[0].Values["listing_url"])
	assert.Equal(t, "245", entries[0].Values["engine_power_hp"])

	ok, err := store.Seen(ctx, records[1].URL)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Seen(ctx, "https://www.autoscout24.ch/de/d/unknown-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresSink(t *testing.T) {
	dsn := os.Getenv("AUTOSCOUT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUTOSCOUT_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink, err := NewPostgresSink(ctx, dsn)
	require.NoError(t, err)
	defer sink.Close()

	records := sampleRecords()
	require.NoError(t, sink.Write(ctx, records))

	records[0].Price = 11000
	require.NoError(t, sink.Write(ctx, records[:1]), "second write upserts")

	var price float64
	err = sink.pool.QueryRow(ctx, `SELECT price_chf FROM listings WHERE listing_url = $1`, records[0].URL).Scan(&price)
	require.NoError(t, err)
	assert.Equal(t, 11000.0, price)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Nil(t, nullable(models.Missing))
	require.NotNil(t, nullable("Diesel"))
	assert.Equal(t, "Diesel", *nullable("Diesel"))
}

func TestMultiSinkName(t *testing.T) {
	m := NewMultiSink(NewCSVSink("x.csv"), &fakeSink{name: "redis"})
	assert.Equal(t, "csv+redis", m.Name())
}
