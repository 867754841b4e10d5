package sms

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/platform"
)

// fakeClock advances by step every time the inbox is read.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
}

type fakeInbox struct {
	mu       sync.Mutex
	clock    *fakeClock
	granted  bool
	messages []api.RawSms
	arrivals []api.RawSms
	errs     []error
	reads    int
	since    time.Time
	limit    int
}

func (f *fakeInbox) SmsPermission(context.Context) (bool, error) { return f.granted, nil }

func (f *fakeInbox) RequestSmsPermission(context.Context) (bool, error) { return f.granted, nil }

func (f *fakeInbox) ListSms(_ context.Context, since time.Time, limit int) ([]api.RawSms, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	f.since, f.limit = since, limit
	if f.clock != nil {
		f.clock.advance()
		for _, m := range f.arrivals {
			m.TimestampMs = f.clock.Now().Add(-time.Second).UnixMilli()
			f.messages = append([]api.RawSms{m}, f.messages...)
		}
		f.arrivals = nil
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]api.RawSms(nil), f.messages...), nil
}

// arrive makes m show up on the next read, stamped just before that read.
func (f *fakeInbox) arrive(m api.RawSms) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrivals = append(f.arrivals, m)
}

func (f *fakeInbox) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type collector struct {
	mu  sync.Mutex
	got []api.DetectedTransaction
}

func (c *collector) add(tx api.DetectedTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, tx)
}

func (c *collector) snapshot() []api.DetectedTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.DetectedTransaction(nil), c.got...)
}

func loadInbox(t *testing.T) []api.RawSms {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "inbox.json"))
	require.NoError(t, err)
	var msgs []api.RawSms
	require.NoError(t, json.Unmarshal(data, &msgs))
	return msgs
}

func TestScan(t *testing.T) {
	now := time.UnixMilli(1710080000000)
	inbox := &fakeInbox{granted: true, messages: loadInbox(t)}
	r := New(inbox, Config{Now: func() time.Time { return now }}, nil)

	got := r.Scan(context.Background(), ScanOptions{})

	require.Len(t, got, 2)
	assert.Equal(t, "SWIGGY", got[0].Merchant)
	assert.Equal(t, "1122", got[0].AccountNumber)
	assert.Equal(t, "HDFC Bank", got[1].BankName)
	assert.Equal(t, "123ABC456", got[1].ReferenceID)
	assert.Equal(t, now.Add(-DefaultScanLookback), inbox.since)
	assert.Equal(t, DefaultScanMaxCount, inbox.limit)
}

func TestScan_Options(t *testing.T) {
	now := time.UnixMilli(1710080000000)
	inbox := &fakeInbox{granted: true}
	r := New(inbox, Config{Now: func() time.Time { return now }}, nil)

	assert.Empty(t, r.Scan(context.Background(), ScanOptions{Lookback: time.Hour, MaxCount: 5}))
	assert.Equal(t, now.Add(-time.Hour), inbox.since)
	assert.Equal(t, 5, inbox.limit)
}

func TestScan_PlatformUnavailable(t *testing.T) {
	r := New(platform.Disabled{}, Config{}, nil)

	assert.False(t, r.CheckPermission(context.Background()))
	assert.False(t, r.RequestPermission(context.Background()))
	assert.Empty(t, r.Scan(context.Background(), ScanOptions{}))
	assert.False(t, r.StartWatching(context.Background(), func(api.DetectedTransaction) {}))
	assert.False(t, r.IsWatching())
}

func TestWatcher_DeliversOnlyMessagesAfterLastCheck(t *testing.T) {
	t0 := time.UnixMilli(1710080000000)
	clock := &fakeClock{now: t0, step: time.Minute}
	hdfc := "Rs.1,250.00 debited from A/c XX4321 on 05-Jan. Avl Bal Rs.8,750.00. Ref 123ABC456"
	inbox := &fakeInbox{
		clock:   clock,
		granted: true,
		messages: []api.RawSms{
			{ID: "2", SenderAddress: "AD-HDFCBK", Body: hdfc, TimestampMs: t0.Add(30 * time.Second).UnixMilli()},
			{ID: "1", SenderAddress: "AD-HDFCBK", Body: "Rs 99 debited from A/c XX4321", TimestampMs: t0.Add(-10 * time.Minute).UnixMilli()},
		},
	}
	r := New(inbox, Config{WatchInterval: 5 * time.Millisecond, Now: clock.Now}, nil)
	require.True(t, r.CheckPermission(context.Background()))

	c := &collector{}
	require.True(t, r.StartWatching(context.Background(), c.add))
	defer r.StopWatching()
	assert.True(t, r.IsWatching())

	require.Eventually(t, func() bool { return inbox.readCount() >= 3 }, time.Second, time.Millisecond)

	got := c.snapshot()
	require.Len(t, got, 1, "message at the previous watermark or earlier is never delivered")
	assert.Equal(t, "123ABC456", got[0].ReferenceID)

	inbox.arrive(api.RawSms{ID: "3", SenderAddress: "VM-ICICIB", Body: "INR 899.00 spent on ICICI Bank Card XX1122 at SWIGGY"})

	require.Eventually(t, func() bool { return len(c.snapshot()) == 2 }, time.Second, time.Millisecond)
	reads := inbox.readCount()
	require.Eventually(t, func() bool { return inbox.readCount() >= reads+2 }, time.Second, time.Millisecond)

	got = c.snapshot()
	require.Len(t, got, 2, "a delivered message is not delivered again")
	assert.Equal(t, "SWIGGY", got[1].Merchant)
}

func TestWatcher_FailedTickKeepsTicking(t *testing.T) {
	t0 := time.UnixMilli(1710080000000)
	clock := &fakeClock{now: t0, step: time.Minute}
	inbox := &fakeInbox{
		clock:   clock,
		granted: true,
		errs:    []error{errors.New("content provider crashed")},
		messages: []api.RawSms{
			{ID: "9", SenderAddress: "AD-HDFCBK", Body: "Rs 340 debited from A/c XX5678", TimestampMs: t0.Add(90 * time.Second).UnixMilli()},
		},
	}
	r := New(inbox, Config{WatchInterval: 5 * time.Millisecond, Now: clock.Now}, nil)
	r.CheckPermission(context.Background())

	c := &collector{}
	require.True(t, r.StartWatching(context.Background(), c.add))
	defer r.StopWatching()

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, inbox.readCount(), 2)
}

func TestWatcher_StopPreventsFurtherReads(t *testing.T) {
	inbox := &fakeInbox{granted: true}
	r := New(inbox, Config{WatchInterval: 10 * time.Millisecond}, nil)
	r.CheckPermission(context.Background())

	require.True(t, r.StartWatching(context.Background(), func(api.DetectedTransaction) {}))
	r.StopWatching()
	assert.False(t, r.IsWatching())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, inbox.readCount())

	r.StopWatching()
}

func TestProcess(t *testing.T) {
	msgs := loadInbox(t)

	_, ok := Process(msgs[1])
	assert.False(t, ok, "otp")
	_, ok = Process(msgs[2])
	assert.False(t, ok, "unknown sender")

	tx, ok := Process(msgs[3])
	require.True(t, ok)
	assert.Equal(t, api.SourceSms, tx.Source)
	assert.Equal(t, "AD-HDFCBK", tx.SourceApp)
	assert.Equal(t, api.KindExpense, tx.Kind)
	assert.Equal(t, msgs[3].Body, tx.RawText)
}
