// Package agent is the remote side of shellcast: a process that connects to
// the gateway, runs the commands it is sent, and reports what happened.
//
// # Protocol
//
// The agent dials the gateway's /ws endpoint and exchanges JSON command
// records over text frames. There is no handshake. Every message the gateway
// sends is either a Pending command to execute or a terminal outcome that
// some agent (possibly this one) already reported.
//
//	{"id":"...","cmd":"uptime","status":"Pending"}
//	{"id":"...","cmd":"uptime","status":{"Completed":" 10:02 up 3 days\n"}}
//	{"id":"...","cmd":"false","status":{"Failed":"exit status 1"}}
//
// # Client
//
//	c := agent.NewClient(executor.New(executor.Options{}), nil, agent.Options{
//	    URL:         "ws://localhost:3030/ws",
//	    Parallelism: 4,
//	    Output:      os.Stdout,
//	}, logger)
//	defer c.Close() // releases the dedupe cache created for a nil seen
//	err := c.RunWithRetry(ctx, time.Second, 30*time.Second)
//
// Pending commands run concurrently, at most Parallelism at a time. When the
// pool is full the client stops reading, which pushes back on the gateway's
// per-agent buffer rather than queueing without bound.
//
// Each Pending ID is executed at most once per process, tracked in a
// dedupe.Cache. Terminal outcomes are printed to Output and never executed.
//
// # Connection
//
// Connection owns the socket. Results from concurrent executions go through
// Send into an outbox drained by a single writer goroutine, since a
// websocket.Conn supports only one concurrent writer.
package agent
