// Package notifications delivers compression events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-event config flags suppress categories the user does not care about,
// and a dedup window swallows repeats of the same message so a crash-looping
// job cannot flood a phone.
//
// Extend this package if you need alternative transports; all daemon code
// depends only on the Service interface.
package notifications
