package observability

var AttachDebuggerWithEnv = attachDebugger
