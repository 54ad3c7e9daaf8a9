// Package supervisor keeps the telemetry listener alive.
//
// A Supervisor runs one cycle at a time: bring the network link up, open a
// listener, serve on it while a watchdog polls the link. Any failure in that
// cycle (an error, a panic, a dropped link, or the server simply returning)
// tears the listener down and starts the cycle again after a backoff delay.
// Only cancelling the context ends Run.
//
// Example usage:
//
//	sup := supervisor.New(supervisor.Config{
//	    Name:         "telemetry",
//	    RestartDelay: 5 * time.Second,
//	}, station, supervisor.TCPListen(":80"), server)
//	sup.SetLogger(log)
//
//	err := sup.Run(ctx) // returns ctx.Err() on shutdown
package supervisor
