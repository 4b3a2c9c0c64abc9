package suite

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/syncbridge/internal/runner"
)

func TestRunInDeclarationOrder(t *testing.T) {
	fw := NewFramework()
	it := fw.Interface("it")
	before := fw.Interface("before")

	var order []string
	before.Register("setup", func(done runner.Done) {
		order = append(order, "setup")
		done(nil)
	})
	it.Register("works", func(done runner.Done) {
		order = append(order, "works")
		go done(nil)
	})
	it.Register("breaks", func(done runner.Done) {
		done(errors.New("boom"))
	})
	it.Register("pending", nil)
	it.Skip("skipped", func(done runner.Done) {
		t.Error("skipped body ran")
	})

	outcomes := fw.Run(time.Second)
	require.Len(t, outcomes, 5)
	assert.Equal(t, []string{"setup", "works"}, order)

	assert.Equal(t, "before", outcomes[0].Kind)
	assert.False(t, outcomes[1].Failed)
	assert.True(t, outcomes[2].Failed)
	assert.EqualError(t, outcomes[2].Err, "boom")
	assert.True(t, outcomes[3].Pending)
	assert.True(t, outcomes[4].Pending)
}

func TestFailReportsCurrentRegistration(t *testing.T) {
	fw := NewFramework()
	hooks := fw.Interface("before")
	hooks.Register("fails", func(done runner.Done) {
		hooks.Fail(errors.New("hook broke"))
	})

	outcomes := fw.Run(time.Second)
	require.Len(t, outcomes, 1)
	assert.EqualError(t, outcomes[0].Err, "hook broke")
	require.Len(t, fw.Failures(), 1)
}

func TestRunTimeout(t *testing.T) {
	fw := NewFramework()
	fw.Interface("it").Register("hangs", func(done runner.Done) {})

	outcomes := fw.Run(20 * time.Millisecond)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed)
	assert.Contains(t, outcomes[0].Err.Error(), "timed out")
}

func TestInterfaceWithoutFail(t *testing.T) {
	fw := NewFramework()
	iface := fw.InterfaceWithoutFail("it")
	assert.Nil(t, iface.Fail)
	assert.NotNil(t, iface.Register)

	iface.Only("focused", func(done runner.Done) { done(nil) })
	regs := fw.Registrations()
	require.Len(t, regs, 1)
	assert.True(t, regs[0].Only)
}

func TestRunOnlyFocusedRegistrations(t *testing.T) {
	fw := NewFramework()
	it := fw.Interface("it")
	before := fw.Interface("before")

	ran := map[string]bool{}
	body := func(name string) runner.Callback {
		return func(done runner.Done) {
			ran[name] = true
			done(nil)
		}
	}
	before.Register("setup", body("setup"))
	it.Register("a", body("a"))
	it.Only("b", body("b"))
	it.Register("c", body("c"))

	outcomes := fw.Run(time.Second)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "setup", outcomes[0].Title)
	assert.Equal(t, "b", outcomes[1].Title)
	assert.Equal(t, map[string]bool{"setup": true, "b": true}, ran)
}
