// Package notify implements the event-triggered templated notification
// engine: condition evaluation, data mapping, dispatch, and the manual
// send/bulk/preview entry points.
//
// The engine layer contains all dispatch business logic. It depends on the
// repository and delivery interfaces defined in this package and should never
// import from api/.
//
// Repository implementations live in store/dynamo and store/memory; the
// delivery implementation lives in internal/ses.
package notify
