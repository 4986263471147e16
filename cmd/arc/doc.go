// Command arc is the terminal client for the Arc workspace.
//
// It chats with the pipeline agent over the streaming socket, lists and
// manages pipeline runs, follows run status, validates samplesheets, keeps
// the theme and API token in the user config directory, and can run a
// local mock backend for development:
//
//	arc serve-mock --port 8000 &
//	ARC_ORIGIN=http://localhost:8000 arc chat
//	arc runs list --status running
//	arc watch run-running
package main
