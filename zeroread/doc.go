// Package zeroread guards httpx request bodies against zero-length read
// storms.
//
// A zero-length read storm is a fault below the stream layer where every
// read of a body returns no bytes, no error and no end-of-stream. A handler
// looping on such a body never blocks and never finishes, pinning its
// goroutine at full CPU. A single (0, nil) read is legitimate; only a
// sustained run is treated as a fault.
//
// The Watchdog decorates a request's httpx.Conduit. After every forwarded
// read it feeds the observed count to State.Observe:
//
//   - a productive read (n > 0), or the very first read, records the time
//     and resets the run;
//   - a zero read extends the run and fires once the last productive read
//     is older than Config.Timeout, or, with Config.CheckCount, once the
//     run exceeds Config.MaxZeroReadCount;
//   - end-of-stream leaves the state untouched.
//
// When the policy fires the watchdog logs the event, terminates reads on
// the wrapped conduit and closes the connection. The close is attempted
// even when terminating reads fails; failures of either step are logged
// and returned as a *TerminationError.
//
// Guard ties this to a server: Deploy installs a handler that adds the
// watchdog to every request whose body is not yet fully received.
//
//	g := &zeroread.Guard{Config: zeroread.DefaultConfig(), Logger: logger}
//	g.Deploy(srv)
package zeroread
