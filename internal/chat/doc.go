/*
Package chat implements the streaming chat transport.

A Session owns one WebSocket to the backend agent endpoint. Inbound text
is either a JSON control object ({"type":"error"|"connected"}) or a chunk
of the line protocol:

	<code>:<payload>\n

where code is a single character and payload is usually JSON. Lines are
reassembled across chunks, decoded, and applied to the chat and workspace
stores.

# Concurrency

All state lives on one event-loop goroutine: the reconnect Machine, the
line Splitter, the tool-name map and every store write. Socket readers,
dialers and timers only post events to it, so frames are applied in
arrival order.

# Reconnection

Machine is the reconnect policy as a pure transition function. An
unexpected close schedules a new dial after ReconnectDelay until
MaxReconnects consecutive attempts have been spent; Stop suppresses it.
*/
package chat
