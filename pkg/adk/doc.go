// Package adk runs a user algorithm under the hosting protocol.
//
// A Runtime is built once from an apply function and an optional load
// function. Init runs the load phase, prints the readiness line and then
// serves requests: a single in-process call in local mode, or one JSON
// request per stdin line with responses appended to the output pipe in
// server mode. The mode is picked at construction from whether the pipe
// path exists.
//
// Apply receives a string for text requests, []byte for binary requests and
// the decoded value for json requests. JSON numbers are json.Number, not
// float64, so integers beyond 2^53 survive an echo unchanged; call Int64 or
// Float64 on them as needed. Init may be called once per Runtime.
//
//	rt, err := adk.New(apply, adk.WithLoad(load))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := rt.Init(ctx, "Algorithmia", nil); err != nil {
//		log.Fatal(err)
//	}
package adk
