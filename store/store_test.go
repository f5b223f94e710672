package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/store"
)

func counter(state any, msg *types.Message) any {
	n, _ := state.(int)
	if msg.Type == "INC" {
		return n + 1
	}
	return n
}

func TestNew_ReducesInit(t *testing.T) {
	var seen []string
	st := store.New(func(state any, msg *types.Message) any {
		seen = append(seen, msg.Type)
		return state
	}, "initial")

	assert.Equal(t, []string{types.InitType}, seen)
	assert.Equal(t, "initial", st.GetState())
}

func TestDispatch_ReturnsMessage(t *testing.T) {
	st := store.New(counter, 0)
	msg := &types.Message{Type: "INC"}
	assert.Same(t, msg, st.Dispatch(msg))
	st.Dispatch(&types.Message{Type: "INC"})
	st.Dispatch(&types.Message{Type: "OTHER"})
	assert.Equal(t, 2, st.GetState())
	assert.Nil(t, st.Dispatch(nil))
}

// tagger records the middleware order and rewrites nothing.
func tagger(name string, order *[]string) types.Middleware {
	return func(api types.StoreAPI) func(next types.Dispatch) types.Dispatch {
		return func(next types.Dispatch) types.Dispatch {
			return func(msg *types.Message) any {
				*order = append(*order, name+":"+msg.Type)
				return next(msg)
			}
		}
	}
}

func TestMiddleware_Order(t *testing.T) {
	var order []string
	st := store.New(counter, 0, tagger("outer", &order), tagger("inner", &order))

	st.Dispatch(&types.Message{Type: "INC"})
	assert.Equal(t, []string{"outer:INC", "inner:INC"}, order)
	assert.Equal(t, 1, st.GetState())
}

func TestMiddleware_ShortCircuit(t *testing.T) {
	swallow := func(api types.StoreAPI) func(next types.Dispatch) types.Dispatch {
		return func(next types.Dispatch) types.Dispatch {
			return func(msg *types.Message) any {
				if msg.Type == "DROP" {
					return "dropped"
				}
				return next(msg)
			}
		}
	}
	st := store.New(counter, 0, swallow)
	assert.Equal(t, "dropped", st.Dispatch(&types.Message{Type: "DROP"}))
	assert.Equal(t, 0, st.GetState())
}

func TestMiddleware_APIDispatchRunsWholeChain(t *testing.T) {
	var order []string
	var api types.StoreAPI
	capture := func(a types.StoreAPI) func(next types.Dispatch) types.Dispatch {
		api = a
		return func(next types.Dispatch) types.Dispatch { return next }
	}
	st := store.New(counter, 0, tagger("outer", &order), capture)
	require.NotNil(t, api)

	api.Dispatch(&types.Message{Type: "INC"})
	assert.Equal(t, []string{"outer:INC"}, order)
	assert.Equal(t, 1, api.GetState())
	assert.Equal(t, 1, st.GetState())
}

func TestSubscribe(t *testing.T) {
	st := store.New(counter, 0)
	var states []any
	unsubscribe := st.Subscribe(func() { states = append(states, st.GetState()) })

	st.Dispatch(&types.Message{Type: "INC"})
	st.Dispatch(&types.Message{Type: "INC"})
	unsubscribe()
	unsubscribe()
	st.Dispatch(&types.Message{Type: "INC"})

	assert.Equal(t, []any{1, 2}, states)
	assert.Equal(t, 3, st.GetState())
}

func TestSubscribe_DispatchFromSubscriber(t *testing.T) {
	st := store.New(counter, 0)
	st.Subscribe(func() {
		if st.GetState() == 1 {
			st.Dispatch(&types.Message{Type: "INC"})
		}
	})

	st.Dispatch(&types.Message{Type: "INC"})
	assert.Equal(t, 2, st.GetState())
}

func TestDispatch_NilDuringConstruction(t *testing.T) {
	var early any = "unset"
	eager := func(api types.StoreAPI) func(next types.Dispatch) types.Dispatch {
		early = api.Dispatch(nil)
		api.Dispatch(&types.Message{Type: "INC"})
		return func(next types.Dispatch) types.Dispatch { return next }
	}

	var st *store.Store
	require.NotPanics(t, func() { st = store.New(counter, 0, eager) })
	assert.Nil(t, early)
	assert.Equal(t, 1, st.GetState(), "construction-time dispatch reaches the reducer only")
}
