package vars

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetNotifiesSubscribers tests delivery of later writes
func TestSetNotifiesSubscribers(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Set("inhibit_cmd", "before"))

	a := m.Subscribe("inhibit_cmd")
	defer a.Close()
	b := m.Subscribe("inhibit_cmd")
	defer b.Close()

	require.NoError(t, m.Set("inhibit_cmd", "toggle"))
	require.NoError(t, m.Set("inhibit_cmd", ""))

	assert.Equal(t, "toggle", <-a.C())
	assert.Equal(t, "", <-a.C())
	assert.Equal(t, "toggle", <-b.C())
	assert.Equal(t, "", <-b.C())
	assert.Len(t, a.C(), 0)
}

// TestSubscribeIsolatedByName tests that subscribers only see their own variable
func TestSubscribeIsolatedByName(t *testing.T) {
	m := NewManager()

	sub := m.Subscribe("inhibit_info")
	defer sub.Close()

	require.NoError(t, m.Set("inhibit_cmd", "cycle"))
	assert.Len(t, sub.C(), 0)
}

// TestSetInvalidName tests name validation
func TestSetInvalidName(t *testing.T) {
	tests := []struct {
		name    string
		varName string
		wantErr bool
	}{
		{name: "plain", varName: "inhibit_cmd"},
		{name: "empty", varName: "", wantErr: true},
		{name: "namespaced", varName: "tray.items", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewManager().Set(tt.varName, "x")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestGetAndNames tests reading back stored values
func TestGetAndNames(t *testing.T) {
	m := NewManager()

	_, ok := m.Get("inhibit_info")
	assert.False(t, ok)

	m.Subscribe("never_set").Close()
	require.NoError(t, m.Set("inhibit_info", "{}"))
	require.NoError(t, m.Set("inhibit_cmd", ""))

	v, ok := m.Get("inhibit_info")
	assert.True(t, ok)
	assert.Equal(t, "{}", v)

	v, ok = m.Get("inhibit_cmd")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	assert.Equal(t, []string{"inhibit_cmd", "inhibit_info"}, m.Names())
}

// TestConcurrentSetOrder tests that the last notified value is the stored one
func TestConcurrentSetOrder(t *testing.T) {
	for round := 0; round < 50; round++ {
		m := NewManager()
		sub := m.Subscribe("inhibit_cmd")

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			w := w
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					_ = m.Set("inhibit_cmd", fmt.Sprintf("%d-%d", w, i))
				}
			}()
		}
		wg.Wait()

		var last string
		for len(sub.C()) > 0 {
			last = <-sub.C()
		}

		stored, ok := m.Get("inhibit_cmd")
		require.True(t, ok)
		require.Equal(t, stored, last, "round %d", round)
		sub.Close()
	}
}
