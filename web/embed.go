// Package web embeds the browser tracker served at /analytics.js.
package web

import _ "embed"

// AnalyticsScript is the raw tracker source. The server substitutes the
// __OPEN_PULSE_DEFAULTS__ placeholder before serving it.
//
//go:embed analytics.js
var AnalyticsScript string
