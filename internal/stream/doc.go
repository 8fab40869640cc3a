// Package stream maintains a WebSocket connection to the partner market
// event feed. The client decodes every frame into the feed's envelope shape
// and delivers typed events; staleness is enforced through read deadlines
// that server pings keep extending. Reconnecting is the caller's job, driven
// off the Errors channel.
package stream
