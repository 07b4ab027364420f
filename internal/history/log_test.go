package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func collect(l *Log) *[]Notification {
	var got []Notification
	l.Subscribe(func(n Notification) { got = append(got, n) })
	return &got
}

func TestLog_NewDefaultsToRoot(t *testing.T) {
	l := NewLog()
	cur := l.Current()
	assert.Equal(t, 0, cur.Index)
	assert.Equal(t, ir.TokenRoot, cur.Token)
}

func TestLog_RecordIsSilent(t *testing.T) {
	l := NewLog()
	got := collect(l)

	e, v := l.RecordEntry("dash", Aux{Owner: "dash"})

	assert.Equal(t, 1, e.Index)
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, e, l.Current())
	assert.Empty(t, *got, "recording must not notify")
}

func TestLog_BackAndForwardNotify(t *testing.T) {
	l := NewLog()
	got := collect(l)
	l.RecordEntry("dash", Aux{})
	l.RecordEntry("dash/modal", Aux{Depth: 1, Flags: []ir.FlagID{"classModal"}})

	l.GoBack()
	l.GoForward()

	require.Len(t, *got, 2)
	assert.Equal(t, ir.Token("dash"), (*got)[0].Entry.Token)
	assert.Equal(t, ir.DirectionBack, (*got)[0].Direction)
	assert.Equal(t, ir.Token("dash/modal"), (*got)[1].Entry.Token)
	assert.Equal(t, []ir.FlagID{"classModal"}, (*got)[1].Entry.Aux.Flags, "aux survives traversal")
	assert.Equal(t, uint64(2), (*got)[1].Version)
}

func TestLog_TraversalAtEndsIsNoop(t *testing.T) {
	l := NewLog()
	got := collect(l)

	l.GoBack()
	l.GoForward()

	assert.Empty(t, *got)
	assert.Equal(t, 0, l.Current().Index)
}

func TestLog_RecordTruncatesForward(t *testing.T) {
	l := NewLog()
	l.RecordEntry("dash", Aux{})
	l.RecordEntry("dash/modal", Aux{})
	l.GoBack()

	e, _ := l.RecordEntry("admin", Aux{})

	assert.Equal(t, 2, e.Index)
	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, ir.Token("admin"), entries[2].Token)

	l.GoForward()
	assert.Equal(t, 2, l.Current().Index, "nothing left to go forward to")
}

func TestLog_ReplaceKeepsIndex(t *testing.T) {
	l := NewLog()
	l.RecordEntry("dash", Aux{})
	l.RecordEntry("dash/modal", Aux{Flags: []ir.FlagID{"classModal"}})

	e, v := l.ReplaceEntry("dash/modal", Aux{Flags: []ir.FlagID{"profileModal"}})

	assert.Equal(t, 2, e.Index)
	assert.Equal(t, uint64(3), v)
	assert.Len(t, l.Entries(), 3)
	assert.Equal(t, []ir.FlagID{"profileModal"}, l.Current().Aux.Flags)
}

func TestLog_Unsubscribe(t *testing.T) {
	l := NewLog("", "dash")
	var count int
	unsub := l.Subscribe(func(Notification) { count++ })

	l.GoBack()
	unsub()
	unsub()
	l.GoForward()

	assert.Equal(t, 1, count)
}

func TestLog_SubscribersInOrder(t *testing.T) {
	l := NewLog("", "dash")
	var order []string
	l.Subscribe(func(Notification) { order = append(order, "first") })
	l.Subscribe(func(Notification) { order = append(order, "second") })

	l.GoBack()

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestLog_HandlerMayReenter(t *testing.T) {
	l := NewLog("", "dash")
	var seen ir.Token
	l.Subscribe(func(n Notification) {
		seen = l.Current().Token
	})

	l.GoBack()

	assert.Equal(t, ir.TokenRoot, seen, "lock is released before handlers run")
}

func TestLog_ConcurrentUse(t *testing.T) {
	l := NewLog()
	l.Subscribe(func(Notification) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.RecordEntry("dash", Aux{})
				l.GoBack()
				_ = l.Current()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(400), l.Version())
}
