package types

// Dispatch hands a message to the next stage of the pipeline and returns that stage's result.
type Dispatch func(msg *Message) any

// StoreAPI is the view of the store a Middleware receives on installation.
//
// Dispatch must run the full middleware chain, so messages emitted through it are
// observed by every middleware, including the one that captured it.
type StoreAPI interface {
	Dispatch(msg *Message) any
	GetState() any
}

// Middleware wraps the store's dispatch pipeline: (storeAPI) -> (next) -> (message) -> result.
type Middleware func(api StoreAPI) func(next Dispatch) Dispatch
