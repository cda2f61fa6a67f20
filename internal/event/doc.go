// Package event defines the inbound message space of pagetrail and the bus
// that routes messages to handlers.
//
// Every message the browser extension can send is a distinct Go type that
// implements Message. Browser events (navigation, network headers and tab
// lifecycle) come from the extension's background context. Content messages
// (clicks, copies, scrolls, metadata) come from page context and carry the
// sender's tab. Control messages ask the daemon to do something now.
//
// Decode turns a JSON envelope of the form {"type": "...", ...} into the
// matching variant. Bus delivers a decoded message to one exclusive handler
// and any number of listeners.
package event
