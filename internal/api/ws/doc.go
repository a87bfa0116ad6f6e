/*
Package ws serves terminal surfaces over WebSocket.

Each connection becomes a Panel: JSON {type, data} frames in both
directions, a write pump with keepalive pings and a read pump feeding the
session. A client that closes with a normal closure code ends its session;
any other disconnect detaches it so it can be restored with ?restore=<id>.
*/
package ws
