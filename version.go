package arbor

// Version is the library version reported by the CLI and the HTTP surface.
var Version = "0.1.0"
