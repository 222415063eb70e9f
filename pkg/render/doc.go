// Package render produces HTML from a flattened node tree. The server uses
// it for the initial page response before the websocket attaches; nodes
// carry their numeric IDs as data attributes so the client script can route
// events back to the right handler.
package render
