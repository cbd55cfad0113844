package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
  {"txn_id": "TXN0001", "date": "2025-12-23", "time": "18:18:44", "amount": 2941.82,
   "sender_last4": "2006", "receiver_account_no": "8812345678", "receiver_bank_name": "HDFC",
   "sender_bank_name": "SBI", "status": "PENDING", "description": "Transaction pending"},
  {"txn_id": "TXN0002", "date": "2025-12-22", "time": "09:00:00", "amount": 150,
   "sender_last4": "4321", "receiver_account_no": "8812345679", "receiver_bank_name": "AXIS",
   "sender_bank_name": "PNB", "status": "SUCCESS", "description": "Transaction completed successfully"}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func rec(id string) *models.TransactionRecord {
	return &models.TransactionRecord{
		ID:          id,
		Date:        "2025-12-23",
		Time:        "10:00:00",
		Amount:      decimal.NewFromInt(100),
		SenderLast4: "1234",
		Status:      models.StatusSuccess,
	}
}

// staticSource returns a configurable record set on every Load
type staticSource struct {
	mu      sync.Mutex
	records []*models.TransactionRecord
	err     error
	loads   int
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Load(ctx context.Context) ([]*models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *staticSource) set(records []*models.TransactionRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.err = err
}

func TestFileSource_LoadJSON(t *testing.T) {
	path := writeFile(t, "transactions.json", sampleJSON)

	records, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "TXN0001", records[0].ID)
	assert.True(t, records[0].Amount.Equal(decimal.RequireFromString("2941.82")))
	assert.Equal(t, models.StatusPending, records[0].Status)
	assert.Equal(t, "TXN0002", records[1].ID)
}

func TestFileSource_LoadCSV(t *testing.T) {
	content := strings.Join([]string{
		"txn_id,date,time,amount,sender_last4,receiver_account_no,receiver_bank_name,sender_bank_name,status,description",
		"TXN0001,2025-12-23,18:18:44,2941.82,2006,8812345678,HDFC,SBI,pending,Transaction pending",
		"TXN0002,2025-12-23,09:00,not-a-number,4321,8812345679,AXIS,PNB,SUCCESS,Transaction completed successfully",
	}, "\n")
	path := writeFile(t, "transactions.csv", content)

	records, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, models.StatusPending, records[0].Status)
	assert.Empty(t, records[0].FailureReason)
	assert.True(t, records[1].Amount.IsZero(), "unparseable amount should fail validation later")
}

func TestFileSource_CSVMissingColumns(t *testing.T) {
	path := writeFile(t, "transactions.csv", "txn_id,date\nTXN0001,2025-12-23\n")

	_, err := NewFileSource(path).Load(context.Background())
	require.Error(t, err)

	lookupErr, ok := errors.AsLookupError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSourceCorrupted, lookupErr.Code)
	assert.Contains(t, err.Error(), "amount")
}

func TestFileSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		code errors.ErrorCode
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
			code: errors.CodeSourceNotFound,
		},
		{
			name: "invalid json",
			path: func(t *testing.T) string { return writeFile(t, "broken.json", `[{"txn_id": `) },
			code: errors.CodeSourceCorrupted,
		},
		{
			name: "object instead of array",
			path: func(t *testing.T) string { return writeFile(t, "object.json", `{"txn_id": "TXN0001"}`) },
			code: errors.CodeSourceCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileSource(tt.path(t)).Load(context.Background())
			require.Error(t, err)

			lookupErr, ok := errors.AsLookupError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategorySource, lookupErr.Category)
			assert.Equal(t, tt.code, lookupErr.Code)
		})
	}
}

func TestFileSource_EmptyArray(t *testing.T) {
	path := writeFile(t, "empty.json", "[]")

	records, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	records := []*models.TransactionRecord{rec("TXN0001"), rec("TXN0002")}

	require.NoError(t, WriteJSON(path, records))

	loaded, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, loaded[0].Equals(records[0]))
}

func TestValidateRecords(t *testing.T) {
	invalid := rec("TXN0003")
	invalid.SenderLast4 = "12"

	input := []*models.TransactionRecord{
		rec("TXN0001"),
		invalid,
		rec("TXN0001"),
		nil,
		rec("TXN0002"),
	}

	valid, stats := validateRecords(input)

	require.Len(t, valid, 2)
	assert.Same(t, input[0], valid[0], "first record with an id wins")
	assert.Equal(t, "TXN0002", valid[1].ID)

	assert.Equal(t, 5, stats.RecordsRead)
	assert.Equal(t, 2, stats.RecordsValid)
	assert.Equal(t, 2, stats.InvalidCount)
	assert.Equal(t, 1, stats.DuplicateCount)
	assert.True(t, stats.HasErrors())
	require.NotNil(t, stats.Errors)
	assert.True(t, stats.Errors.HasCode(errors.CodeDuplicateRecord))
	assert.Len(t, stats.GetSampleErrors(), 3)
	assert.Equal(t, "Read 5 records (2 valid), 2 invalid, 1 duplicates", stats.String())
}

func TestStore_ReloadPublishesVersionedSnapshots(t *testing.T) {
	fixed := time.Date(2025, 12, 23, 10, 0, 0, 0, time.UTC)
	source := &staticSource{records: []*models.TransactionRecord{rec("TXN0001")}}
	store := NewStore(source, &StoreOptions{Now: func() time.Time { return fixed }})

	assert.Nil(t, store.Current())
	assert.Nil(t, store.Records())

	first, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, fixed, first.LoadedAt)
	assert.Equal(t, "static", first.Source)
	assert.Equal(t, 1, first.Count())

	source.set([]*models.TransactionRecord{rec("TXN0001"), rec("TXN0002")}, nil)
	second, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)
	assert.Same(t, second, store.Current())
	assert.Len(t, store.Records(), 2)
}

func TestStore_ReloadDigestsContent(t *testing.T) {
	source := &staticSource{records: []*models.TransactionRecord{rec("TXN0001")}}
	first, err := NewStore(source, nil).Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Digest, 64)

	// A second process loading the same records agrees on the digest
	other, err := NewStore(&staticSource{records: []*models.TransactionRecord{rec("TXN0001")}}, nil).
		Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Version, other.Version)
	assert.Equal(t, first.Digest, other.Digest)

	changed := rec("TXN0001")
	changed.Amount = decimal.NewFromInt(101)
	edited, err := NewStore(&staticSource{records: []*models.TransactionRecord{changed}}, nil).
		Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Version, edited.Version)
	assert.NotEqual(t, first.Digest, edited.Digest)
}

func TestDigest_OrderAndEmpty(t *testing.T) {
	a, b := rec("TXN0001"), rec("TXN0002")

	ab, err := Digest([]*models.TransactionRecord{a, b})
	require.NoError(t, err)
	ba, err := Digest([]*models.TransactionRecord{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)

	empty, err := Digest(nil)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", empty)
}

func TestStore_FailedReloadKeepsPreviousSnapshot(t *testing.T) {
	source := &staticSource{records: []*models.TransactionRecord{rec("TXN0001")}}
	store := NewStore(source, nil)

	first, err := store.Reload(context.Background())
	require.NoError(t, err)

	source.set(nil, fmt.Errorf("disk on fire"))
	_, err = store.Reload(context.Background())
	require.Error(t, err)

	lookupErr, ok := errors.AsLookupError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeReloadFailed, lookupErr.Code)
	assert.Same(t, first, store.Current())
}

func TestStore_ReloadKeepsSourceErrorCategory(t *testing.T) {
	store := NewStore(NewFileSource(filepath.Join(t.TempDir(), "absent.json")), nil)

	_, err := store.Reload(context.Background())
	require.Error(t, err)

	lookupErr, ok := errors.AsLookupError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSourceNotFound, lookupErr.Code)
	assert.Nil(t, store.Current())
}

func TestStore_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	small := []*models.TransactionRecord{rec("A1"), rec("A2")}
	large := []*models.TransactionRecord{rec("B1"), rec("B2"), rec("B3"), rec("B4"), rec("B5")}

	source := &staticSource{records: small}
	store := NewStore(source, nil)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		stop atomic.Bool
		bad  atomic.Int64
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				n := len(store.Records())
				if n != len(small) && n != len(large) {
					bad.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			source.set(large, nil)
		} else {
			source.set(small, nil)
		}
		_, err := store.Reload(context.Background())
		require.NoError(t, err)
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, bad.Load())
	assert.Equal(t, uint64(201), store.Current().Version)
}

func TestStore_WatchReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "transactions.json", sampleJSON)
	store := NewStore(NewFileSource(path), &StoreOptions{Debounce: 20 * time.Millisecond})
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Watch(ctx))

	require.NoError(t, WriteJSON(path, []*models.TransactionRecord{rec("TXN0009")}))

	require.Eventually(t, func() bool {
		snap := store.Current()
		return snap.Version >= 2 && snap.Count() == 1 && snap.Records[0].ID == "TXN0009"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStore_WatchRequiresFileSource(t *testing.T) {
	store := NewStore(&staticSource{}, nil)

	err := store.Watch(context.Background())
	require.Error(t, err)

	lookupErr, ok := errors.AsLookupError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfiguration, lookupErr.Category)
}

func TestStore_Schedule(t *testing.T) {
	source := &staticSource{records: []*models.TransactionRecord{rec("TXN0001")}}
	store := NewStore(source, nil)

	_, err := store.Schedule("not a cron spec")
	require.Error(t, err)

	stop, err := store.Schedule("@every 1s")
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		return store.Current() != nil
	}, 5*time.Second, 50*time.Millisecond)
}
