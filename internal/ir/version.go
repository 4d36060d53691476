package ir

// ToolVersion is the gisdoc version reported by the CLI.
const ToolVersion = "0.1.0"
