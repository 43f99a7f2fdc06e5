// Package presence implements the presence and fan-out engine.
//
// An Engine owns one device registry and one alarm history and is the only
// component allowed to mutate them. Devices connect, ping, send alarms and
// poll for alarms fired by others; fan-out is pull-based, so recipients learn
// about an alarm on their next poll.
package presence
